package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

func testSnapshot(season int) Snapshot {
	return Snapshot{
		Season:    season,
		Drivers:   []timing.Driver{"VER", "PER", "HAM"},
		Races:     []timing.Race{"Bahrain Grand Prix", "Saudi Arabia Grand Prix"},
		CreatedAt: time.Date(season, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.Len() != 0 {
		t.Errorf("New store should be empty, got %d snapshots", store.Len())
	}
}

func TestMemoryStore_Put_Get(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		wantErr  bool
	}{
		{
			name:     "valid snapshot",
			snapshot: testSnapshot(2024),
			wantErr:  false,
		},
		{
			name:     "zero season",
			snapshot: Snapshot{Drivers: []timing.Driver{"VER"}},
			wantErr:  true,
		},
		{
			name:     "empty lists",
			snapshot: Snapshot{Season: 2020},
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()

			err := store.Put(context.Background(), tt.snapshot)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			got, found, err := store.Get(context.Background(), tt.snapshot.Season)
			if err != nil {
				t.Fatalf("Get() unexpected error = %v", err)
			}
			if !found {
				t.Fatal("Get() found = false, want true")
			}
			if len(got.Drivers) != len(tt.snapshot.Drivers) || len(got.Races) != len(tt.snapshot.Races) {
				t.Errorf("Get() = %+v, want %+v", got, tt.snapshot)
			}
			if !got.CreatedAt.Equal(tt.snapshot.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, tt.snapshot.CreatedAt)
			}
		})
	}
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, found, err := store.Get(context.Background(), 1999)
	if err != nil {
		t.Errorf("Get() unexpected error = %v", err)
	}
	if found {
		t.Error("Get() found = true for missing season")
	}
}

func TestMemoryStore_Put_Replaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := testSnapshot(2023)
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Put: %v", err)
	}

	second := Snapshot{
		Season:    2023,
		Drivers:   []timing.Driver{"NOR"},
		Races:     []timing.Race{"Monaco Grand Prix"},
		CreatedAt: first.CreatedAt.Add(time.Hour),
	}
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, _, _ := store.Get(ctx, 2023)
	if len(got.Drivers) != 1 || got.Drivers[0] != "NOR" || got.Races[0] != "Monaco Grand Prix" {
		t.Errorf("Get() = %+v, want replaced snapshot", got)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryStore_IsolatedFromCaller(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	snap := testSnapshot(2022)
	if err := store.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}
	snap.Drivers[0] = "XXX"

	got, _, _ := store.Get(ctx, 2022)
	if got.Drivers[0] != "VER" {
		t.Errorf("stored snapshot changed through caller slice: %v", got.Drivers)
	}

	got.Races[0] = "YYY"
	again, _, _ := store.Get(ctx, 2022)
	if again.Races[0] != "Bahrain Grand Prix" {
		t.Errorf("stored snapshot changed through returned slice: %v", again.Races)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, testSnapshot(2024)); err != context.Canceled {
		t.Errorf("Put() error = %v, want %v", err, context.Canceled)
	}
	if _, _, err := store.Get(ctx, 2024); err != context.Canceled {
		t.Errorf("Get() error = %v, want %v", err, context.Canceled)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(season int) {
			defer wg.Done()
			if err := store.Put(ctx, testSnapshot(season)); err != nil {
				t.Errorf("Put(%d): %v", season, err)
			}
		}(2000 + i%5)
		go func(season int) {
			defer wg.Done()
			if _, _, err := store.Get(ctx, season); err != nil {
				t.Errorf("Get(%d): %v", season, err)
			}
		}(2000 + i%5)
	}
	wg.Wait()

	if store.Len() != 5 {
		t.Errorf("Len() = %d, want 5", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, season := range []int{2021, 2022} {
		if err := store.Put(ctx, testSnapshot(season)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if !store.Delete(2021) {
		t.Error("Delete(2021) = false, want true")
	}
	if store.Delete(2021) {
		t.Error("second Delete(2021) = true, want false")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if _, found, _ := store.Get(ctx, 2022); !found {
		t.Error("season 2022 should survive deletion of another")
	}
}

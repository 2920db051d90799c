package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

func TestNewFileStore_EmptyDir(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestFileStore_PutGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "ref"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	snap := testSnapshot(2023)
	if err := store.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := store.Get(ctx, 2023)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Get() found = false")
	}
	if len(got.Drivers) != 3 || got.Drivers[2] != "HAM" {
		t.Errorf("Drivers = %v", got.Drivers)
	}
	if len(got.Races) != 2 || got.Races[1] != "Saudi Arabia Grand Prix" {
		t.Errorf("Races = %v", got.Races)
	}
	if !got.CreatedAt.Equal(snap.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, snap.CreatedAt)
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Put(context.Background(), testSnapshot(2024)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	drivers, err := os.ReadFile(filepath.Join(dir, "drivers-2024.txt"))
	if err != nil {
		t.Fatalf("read drivers file: %v", err)
	}
	if string(drivers) != "VER\nPER\nHAM\n" {
		t.Errorf("drivers file = %q", drivers)
	}

	races, err := os.ReadFile(filepath.Join(dir, "races-2024.txt"))
	if err != nil {
		t.Fatalf("read races file: %v", err)
	}
	if string(races) != "Bahrain Grand Prix\nSaudi Arabia Grand Prix\n" {
		t.Errorf("races file = %q", races)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected only the two snapshot files, got %d entries", len(entries))
	}
}

func TestFileStore_MissingFileIsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)

	if err := os.WriteFile(filepath.Join(dir, "drivers-2021.txt"), []byte("VER\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, found, err := store.Get(context.Background(), 2021)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("snapshot with races file missing should not be found")
	}
}

func TestFileStore_ReadsHandWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)

	os.WriteFile(filepath.Join(dir, "drivers-2022.txt"), []byte("VER\r\n\nLEC\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "races-2022.txt"), []byte("Bahrain Grand Prix\n"), 0o644)

	older := time.Date(2022, time.January, 5, 0, 0, 0, 0, time.UTC)
	os.Chtimes(filepath.Join(dir, "races-2022.txt"), older, older)

	got, found, err := store.Get(context.Background(), 2022)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if len(got.Drivers) != 2 || got.Drivers[0] != "VER" || got.Drivers[1] != "LEC" {
		t.Errorf("Drivers = %q", got.Drivers)
	}
	if !got.CreatedAt.Equal(older) {
		t.Errorf("CreatedAt = %v, want the older file time %v", got.CreatedAt, older)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, testSnapshot(2023)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	next := Snapshot{
		Season:    2023,
		Drivers:   []timing.Driver{"PIA"},
		Races:     []timing.Race{"Qatar Grand Prix"},
		CreatedAt: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Put(ctx, next); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, _, _ := store.Get(ctx, 2023)
	if len(got.Drivers) != 1 || got.Drivers[0] != "PIA" {
		t.Errorf("Drivers = %v, want [PIA]", got.Drivers)
	}
	if got.CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v, want year 2024", got.CreatedAt)
	}
}

func TestFileStore_InvalidSeason(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())

	if err := store.Put(context.Background(), Snapshot{}); err == nil {
		t.Error("Put() with zero season should fail")
	}
	if _, _, err := store.Get(context.Background(), -1); err == nil {
		t.Error("Get() with negative season should fail")
	}
}

package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore implements an in-memory store for reference snapshots.
// It is safe for concurrent use by multiple goroutines.
//
// Snapshots are lost on restart, so every process start triggers one rebuild
// per season. Use FileStore or RedisStore to keep them across restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[int]Snapshot
}

// NewMemoryStore creates a new, empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[int]Snapshot),
	}
}

// Put stores a snapshot for its season, replacing any existing snapshot.
// The stored lists are copies, so later changes by the caller are not visible.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if err := validSeason(snapshot.Season); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	snapshot.Drivers = slices.Clone(snapshot.Drivers)
	snapshot.Races = slices.Clone(snapshot.Races)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.Season] = snapshot
	return nil
}

// Get retrieves the snapshot of a season.
//
// Returns:
//   - snapshot: The stored snapshot (zero value if not found)
//   - found: true if a snapshot exists for this season, false otherwise
//   - error: Context error if context is canceled, nil otherwise
func (s *MemoryStore) Get(ctx context.Context, season int) (Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return Snapshot{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, found := s.snapshots[season]
	if !found {
		return Snapshot{}, false, nil
	}
	snapshot.Drivers = slices.Clone(snapshot.Drivers)
	snapshot.Races = slices.Clone(snapshot.Races)
	return snapshot, true, nil
}

// Len returns the number of snapshots currently stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Delete removes the snapshot of a season.
// Returns true if a snapshot was deleted, false if none existed.
func (s *MemoryStore) Delete(season int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.snapshots[season]
	delete(s.snapshots, season)
	return existed
}

// Package storage provides season reference snapshot storage implementations.
//
// A snapshot is the (drivers, races) pair of one season plus the time it was
// built. Stores only persist and return snapshots; deciding whether a snapshot
// is still fresh is the job of package reference.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// Snapshot is the cached reference data of one season.
type Snapshot struct {
	Season    int             `json:"season"`
	Drivers   []timing.Driver `json:"drivers"`
	Races     []timing.Race   `json:"races"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store persists one snapshot per season. Put replaces any previous snapshot
// of the same season as a whole; readers never observe a mix of old and new lists.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	Get(ctx context.Context, season int) (Snapshot, bool, error)
}

var errInvalidSeason = errors.New("season must be a positive year")

func validSeason(season int) error {
	if season <= 0 {
		return errInvalidSeason
	}
	return nil
}

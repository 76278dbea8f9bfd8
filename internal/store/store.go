// Package store is the persistence gateway for the grid server. It
// exposes two independent capabilities: a last-write-wins key holding
// the serialized current grid, and an append-only history log scored
// by timestamp. A snapshot save and a history append are separate
// calls with no transactional coupling; a crash between them is
// accepted.
package store

import "context"

// SnapshotStore persists the serialized current grid under a single
// last-write-wins key.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, data []byte) error
	// LoadSnapshot returns the stored snapshot, or ok=false when none
	// has ever been saved.
	LoadSnapshot(ctx context.Context) (data []byte, ok bool, err error)
}

// HistoryLog is an append-only log of serialized history entries
// ordered by timestamp score. Entries sharing a timestamp keep their
// append order.
type HistoryLog interface {
	Append(ctx context.Context, timestamp int64, data []byte) error
	// All returns every entry in ascending timestamp order.
	All(ctx context.Context) ([][]byte, error)
	// LastAtOrBefore returns the most recent entry whose timestamp is
	// not after the given one, or ok=false when no entry qualifies.
	LastAtOrBefore(ctx context.Context, timestamp int64) (data []byte, ok bool, err error)
}

// Store bundles both gateway capabilities behind one backend.
type Store interface {
	SnapshotStore
	HistoryLog
}

// Package journal derives immutable history entries from accepted
// writes and answers time-travel queries against the backing log.
package journal

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Rayyan-Shk/Gamitar/server/internal/sim"
	"github.com/Rayyan-Shk/Gamitar/server/internal/store"
)

// Ledger persists one entry per accepted write, keyed by the write's
// timestamp as the log score. Entries are never mutated or deleted.
type Ledger struct {
	log store.HistoryLog
}

func New(log store.HistoryLog) *Ledger {
	return &Ledger{log: log}
}

// Record builds a history entry from the post-write snapshot and
// appends it to the log. The grid argument is passed by value, so the
// stored entry can never alias the live grid.
func (l *Ledger) Record(ctx context.Context, grid sim.Grid, onlinePlayers int, update sim.CellUpdate) (sim.HistoryEntry, error) {
	entry := sim.HistoryEntry{
		Timestamp:     update.Timestamp,
		State:         grid,
		OnlinePlayers: onlinePlayers,
		Updates:       []sim.CellUpdate{update},
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return sim.HistoryEntry{}, errors.Wrap(err, "encode history entry")
	}
	if err := l.log.Append(ctx, entry.Timestamp, data); err != nil {
		return sim.HistoryEntry{}, err
	}
	return entry, nil
}

// All returns every entry in ascending timestamp order, ties in
// append order.
func (l *Ledger) All(ctx context.Context) ([]sim.HistoryEntry, error) {
	raw, err := l.log.All(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]sim.HistoryEntry, 0, len(raw))
	for _, data := range raw {
		var entry sim.HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, errors.Wrap(err, "decode history entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AtOrBefore returns the most recent entry whose timestamp is not
// after the given one. ok is false when the timestamp predates the
// first recorded write.
func (l *Ledger) AtOrBefore(ctx context.Context, timestamp int64) (sim.HistoryEntry, bool, error) {
	data, ok, err := l.log.LastAtOrBefore(ctx, timestamp)
	if err != nil || !ok {
		return sim.HistoryEntry{}, false, err
	}
	var entry sim.HistoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return sim.HistoryEntry{}, false, errors.Wrap(err, "decode history entry")
	}
	return entry, true, nil
}

package sim

import (
	"strings"
	"unicode/utf8"
)

// GridSize fixes both dimensions of the shared grid.
const GridSize = 10

// Rejection reasons returned by Validate and Apply.
const (
	RejectOutOfBounds  = "out_of_bounds"
	RejectBlankValue   = "blank_value"
	RejectValueTooLong = "value_too_long"
	RejectCellFilled   = "cell_filled"
	RejectCooldown     = "cooldown"
)

// Cell is a single grid slot. A cell is empty until the first accepted
// write and permanently filled afterwards.
type Cell struct {
	Value       string `json:"value"`
	LastUpdated int64  `json:"lastUpdated"`
	UpdatedBy   string `json:"updatedBy"`
}

// Grid is the canonical 10x10 matrix. It is a value type on purpose:
// assigning a Grid copies every cell, so snapshots never alias the
// live state.
type Grid [GridSize][GridSize]Cell

// GridState is the shape broadcast to clients. It is always derived
// from the grid plus the current session count, never stored.
type GridState struct {
	Cells         Grid `json:"cells"`
	OnlinePlayers int  `json:"onlinePlayers"`
}

// CellUpdate is a client's candidate mutation. Only its accepted effect
// is persisted.
type CellUpdate struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Value     string `json:"value"`
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

// HistoryEntry records one accepted write together with the full grid
// snapshot taken immediately after it. Entries are immutable once
// recorded.
type HistoryEntry struct {
	Timestamp     int64        `json:"timestamp"`
	State         Grid         `json:"state"`
	OnlinePlayers int          `json:"onlinePlayers"`
	Updates       []CellUpdate `json:"updates"`
}

// Validate checks an update against the grid without mutating it.
// Returns false and a rejection reason for out-of-bounds coordinates,
// blank or multi-rune values, and already-filled cells.
func (g *Grid) Validate(update CellUpdate) (bool, string) {
	if update.Row < 0 || update.Row >= GridSize || update.Col < 0 || update.Col >= GridSize {
		return false, RejectOutOfBounds
	}
	if strings.TrimSpace(update.Value) == "" {
		return false, RejectBlankValue
	}
	if utf8.RuneCountInString(update.Value) > 1 {
		return false, RejectValueTooLong
	}
	if g[update.Row][update.Col].Value != "" {
		return false, RejectCellFilled
	}
	return true, ""
}

// Apply validates the update and, on acceptance, fills the target cell
// in place. Once filled a cell's value, lastUpdated, and updatedBy
// never change again.
func (g *Grid) Apply(update CellUpdate) (bool, string) {
	if ok, reason := g.Validate(update); !ok {
		return false, reason
	}
	g[update.Row][update.Col] = Cell{
		Value:       update.Value,
		LastUpdated: update.Timestamp,
		UpdatedBy:   update.PlayerID,
	}
	return true, ""
}

// Snapshot returns a structural copy of the grid.
func (g *Grid) Snapshot() Grid {
	return *g
}

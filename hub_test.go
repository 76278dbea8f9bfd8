package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Rayyan-Shk/Gamitar/server/internal/journal"
	"github.com/Rayyan-Shk/Gamitar/server/internal/sim"
	"github.com/Rayyan-Shk/Gamitar/server/internal/store"
)

// recordingConn captures every frame the hub writes so tests can assert
// on broadcast behavior without a real websocket.
type recordingConn struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	closed     bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errWriteFailed
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) frameTypes(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.frames))
	for _, frame := range c.frames {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("unreadable frame: %v", err)
		}
		types = append(types, envelope.Type)
	}
	return types
}

type stubWriteError struct{}

func (stubWriteError) Error() string { return "write failed" }

var errWriteFailed = stubWriteError{}

func newTestHub(cooldown time.Duration) (*Hub, *store.Memory) {
	backend := store.NewMemory()
	return NewHub(HubConfig{
		Snapshots: backend,
		Ledger:    journal.New(backend),
		Cooldown:  cooldown,
	}), backend
}

func TestSubscribeDisconnectCounts(t *testing.T) {
	hub, _ := newTestHub(0)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, _, state := hub.subscribe(&recordingConn{})
		if state.OnlinePlayers != i+1 {
			t.Fatalf("expected %d online, got %d", i+1, state.OnlinePlayers)
		}
		ids = append(ids, id)
	}

	hub.Disconnect(ids[0])
	if got := hub.PlayerCount(); got != 2 {
		t.Fatalf("expected 2 online after disconnect, got %d", got)
	}

	// A second disconnect for the same session must not decrement again.
	hub.Disconnect(ids[0])
	if got := hub.PlayerCount(); got != 2 {
		t.Fatalf("duplicate disconnect changed the count to %d", got)
	}
}

func TestSubscribeBroadcastsCount(t *testing.T) {
	hub, _ := newTestHub(0)

	first := &recordingConn{}
	hub.subscribe(first)
	hub.subscribe(&recordingConn{})

	types := first.frameTypes(t)
	if len(types) == 0 {
		t.Fatalf("first session received no frames")
	}
	for _, frameType := range types {
		if frameType != "playerCount" {
			t.Fatalf("expected only playerCount frames, got %v", types)
		}
	}
}

func TestUpdateCellFillOnce(t *testing.T) {
	hub, _ := newTestHub(0)
	ctx := context.Background()

	state, ok, reason := hub.UpdateCell(ctx, sim.CellUpdate{Row: 1, Col: 1, Value: "A", PlayerID: "p1", Timestamp: 1000})
	if !ok {
		t.Fatalf("first write rejected: %s", reason)
	}
	if state.Cells[1][1].Value != "A" {
		t.Fatalf("state does not reflect the write: %+v", state.Cells[1][1])
	}

	_, ok, reason = hub.UpdateCell(ctx, sim.CellUpdate{Row: 1, Col: 1, Value: "B", PlayerID: "p2", Timestamp: 2000})
	if ok {
		t.Fatalf("second write to the same cell should be rejected")
	}
	if reason != sim.RejectCellFilled {
		t.Fatalf("expected %q, got %q", sim.RejectCellFilled, reason)
	}
	if got := hub.CurrentState().Cells[1][1]; got.Value != "A" || got.UpdatedBy != "p1" {
		t.Fatalf("losing write altered the cell: %+v", got)
	}
}

func TestUpdateCellCooldown(t *testing.T) {
	hub, _ := newTestHub(time.Minute)
	ctx := context.Background()

	if _, ok, reason := hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 0, Value: "A", PlayerID: "p1", Timestamp: 1000}); !ok {
		t.Fatalf("first write rejected: %s", reason)
	}
	_, ok, reason := hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 1, Value: "B", PlayerID: "p1", Timestamp: 1001})
	if ok {
		t.Fatalf("write inside the cooldown window should be rejected")
	}
	if reason != sim.RejectCooldown {
		t.Fatalf("expected %q, got %q", sim.RejectCooldown, reason)
	}

	// Other players are unaffected.
	if _, ok, reason := hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 1, Value: "B", PlayerID: "p2", Timestamp: 1002}); !ok {
		t.Fatalf("second player rejected: %s", reason)
	}
}

func TestRejectedIntentDoesNotConsumeCooldown(t *testing.T) {
	hub, _ := newTestHub(time.Minute)
	ctx := context.Background()

	if _, ok, _ := hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 0, Value: "A", PlayerID: "p1", Timestamp: 1000}); !ok {
		t.Fatalf("seed write rejected")
	}
	// p2 loses the race for the filled cell; that rejection must not
	// start p2's cooldown.
	if _, ok, _ := hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 0, Value: "B", PlayerID: "p2", Timestamp: 1001}); ok {
		t.Fatalf("filled cell accepted a second write")
	}
	if _, ok, reason := hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 1, Value: "B", PlayerID: "p2", Timestamp: 1002}); !ok {
		t.Fatalf("p2's first accepted write rejected: %s", reason)
	}
}

func TestRejectedUpdateNotBroadcast(t *testing.T) {
	hub, _ := newTestHub(0)
	ctx := context.Background()

	conn := &recordingConn{}
	hub.subscribe(conn)

	hub.UpdateCell(ctx, sim.CellUpdate{Row: -1, Col: 0, Value: "A", PlayerID: "p1", Timestamp: 1000})

	for _, frameType := range conn.frameTypes(t) {
		if frameType == "gridUpdate" {
			t.Fatalf("rejected intent must not trigger a grid broadcast")
		}
	}
}

func TestAcceptedUpdateBroadcastToAllSessions(t *testing.T) {
	hub, _ := newTestHub(0)
	ctx := context.Background()

	a := &recordingConn{}
	b := &recordingConn{}
	hub.subscribe(a)
	hub.subscribe(b)

	hub.UpdateCell(ctx, sim.CellUpdate{Row: 2, Col: 2, Value: "X", PlayerID: "p1", Timestamp: 1000})

	for _, conn := range []*recordingConn{a, b} {
		found := false
		for _, frameType := range conn.frameTypes(t) {
			if frameType == "gridUpdate" {
				found = true
			}
		}
		if !found {
			t.Fatalf("session did not receive the grid broadcast")
		}
	}
}

func TestBroadcastDropsFailedWriter(t *testing.T) {
	hub, _ := newTestHub(0)

	healthy := &recordingConn{}
	broken := &recordingConn{failWrites: true}
	hub.subscribe(healthy)
	hub.subscribe(broken)

	hub.BroadcastCount()

	if got := hub.PlayerCount(); got != 1 {
		t.Fatalf("expected failed writer to be dropped, count=%d", got)
	}
	broken.mu.Lock()
	closed := broken.closed
	broken.mu.Unlock()
	if !closed {
		t.Fatalf("dropped connection was not closed")
	}
}

func TestUpdateCellRecordsHistory(t *testing.T) {
	hub, _ := newTestHub(0)
	ctx := context.Background()

	hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 0, Value: "A", PlayerID: "p1", Timestamp: 1000})
	hub.UpdateCell(ctx, sim.CellUpdate{Row: 0, Col: 1, Value: "B", PlayerID: "p2", Timestamp: 2000})

	entries, err := hub.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}

	entry, ok, err := hub.StateAt(ctx, 1500)
	if err != nil || !ok {
		t.Fatalf("state at 1500: ok=%v err=%v", ok, err)
	}
	if entry.Timestamp != 1000 || entry.State[0][1].Value != "" {
		t.Fatalf("state at 1500 must be the 1000 entry: %+v", entry)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	hub, backend := newTestHub(0)
	ctx := context.Background()

	hub.UpdateCell(ctx, sim.CellUpdate{Row: 7, Col: 7, Value: "R", PlayerID: "p1", Timestamp: 1000})

	restored := NewHub(HubConfig{Snapshots: backend, Ledger: journal.New(backend)})
	restored.RestoreSnapshot(ctx)

	if got := restored.CurrentState().Cells[7][7]; got.Value != "R" || got.UpdatedBy != "p1" {
		t.Fatalf("restored grid missing the persisted write: %+v", got)
	}
}

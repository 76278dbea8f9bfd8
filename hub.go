package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Rayyan-Shk/Gamitar/server/internal/journal"
	"github.com/Rayyan-Shk/Gamitar/server/internal/net/proto"
	"github.com/Rayyan-Shk/Gamitar/server/internal/sim"
	"github.com/Rayyan-Shk/Gamitar/server/internal/store"
	"github.com/Rayyan-Shk/Gamitar/server/logging"
	"github.com/Rayyan-Shk/Gamitar/server/logging/gridevents"
)

// Hub owns the canonical grid, the live session set, and the online
// counter. Every grid read and mutation happens under its mutex, so
// two intents racing for the same empty cell serialize and the
// fill-once check plus the mutation are atomic.
type Hub struct {
	mu          sync.Mutex
	grid        sim.Grid
	online      int
	subscribers map[string]*subscriber
	limiters    map[string]*rate.Limiter

	snapshots store.SnapshotStore
	ledger    *journal.Ledger
	cooldown  time.Duration
	publisher logging.Publisher
	logger    *log.Logger
}

// subscriberConn is the subset of *websocket.Conn the hub uses.
type subscriberConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	conn subscriberConn
	mu   sync.Mutex
}

// WriteMessage serializes writes to the underlying connection and
// applies the hub's write deadline.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// HubConfig wires the hub's collaborators. Zero-value fields fall back
// to safe defaults: no persistence, no ledger, nop publisher.
type HubConfig struct {
	Snapshots store.SnapshotStore
	Ledger    *journal.Ledger
	Cooldown  time.Duration
	Publisher logging.Publisher
	Logger    *log.Logger
}

func DefaultHubConfig() HubConfig {
	return HubConfig{Cooldown: defaultCooldown}
}

func NewHub(cfg HubConfig) *Hub {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		limiters:    make(map[string]*rate.Limiter),
		snapshots:   cfg.Snapshots,
		ledger:      cfg.Ledger,
		cooldown:    cfg.Cooldown,
		publisher:   publisher,
		logger:      logger,
	}
}

// RestoreSnapshot adopts the last saved grid from the gateway, if any.
// Failures are logged and leave the grid empty; the server still comes
// up.
func (h *Hub) RestoreSnapshot(ctx context.Context) {
	if h.snapshots == nil {
		return
	}
	data, ok, err := h.snapshots.LoadSnapshot(ctx)
	if err != nil {
		h.logger.Printf("failed to load grid snapshot: %v", err)
		return
	}
	if !ok {
		return
	}
	var grid sim.Grid
	if err := json.Unmarshal(data, &grid); err != nil {
		h.logger.Printf("discarding unreadable grid snapshot: %v", err)
		return
	}
	h.mu.Lock()
	h.grid = grid
	h.mu.Unlock()
}

// Subscribe registers a websocket session, counts it online, and fans
// the new count out to every session. The returned state is the
// snapshot the caller must deliver to the new session.
func (h *Hub) Subscribe(conn *websocket.Conn) (string, *subscriber, sim.GridState) {
	return h.subscribe(conn)
}

func (h *Hub) subscribe(conn subscriberConn) (string, *subscriber, sim.GridState) {
	id := uuid.NewString()
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.online++
	state := sim.GridState{Cells: h.grid.Snapshot(), OnlinePlayers: h.online}
	h.mu.Unlock()

	gridevents.SessionJoined(context.Background(), h.publisher, id, gridevents.SessionPayload{OnlinePlayers: state.OnlinePlayers})
	h.BroadcastCount()
	return id, sub, state
}

// Disconnect removes a session, closes its connection, and fans the
// updated count out. Unknown ids are ignored so a session that was
// already dropped by a failed broadcast cannot decrement twice.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		h.online--
	}
	online := h.online
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.conn.Close()
	gridevents.SessionLeft(context.Background(), h.publisher, id, gridevents.SessionPayload{OnlinePlayers: online})
	h.BroadcastCount()
}

// UpdateCell runs the full write pipeline: validate, cooldown, mutate,
// persist, broadcast. Rejected intents produce no state change and no
// broadcast. Persistence failures are logged and do not roll back the
// in-memory grid; the live view is allowed to run ahead of the store.
func (h *Hub) UpdateCell(ctx context.Context, update sim.CellUpdate) (sim.GridState, bool, string) {
	h.mu.Lock()
	if ok, reason := h.grid.Validate(update); !ok {
		h.mu.Unlock()
		gridevents.UpdateRejected(ctx, h.publisher, update.PlayerID, gridevents.CellPayload{Row: update.Row, Col: update.Col, Reason: reason})
		return sim.GridState{}, false, reason
	}
	if h.cooldown > 0 && !h.limiterLocked(update.PlayerID).Allow() {
		h.mu.Unlock()
		gridevents.UpdateRejected(ctx, h.publisher, update.PlayerID, gridevents.CellPayload{Row: update.Row, Col: update.Col, Reason: sim.RejectCooldown})
		return sim.GridState{}, false, sim.RejectCooldown
	}
	h.grid.Apply(update)
	state := sim.GridState{Cells: h.grid.Snapshot(), OnlinePlayers: h.online}
	h.mu.Unlock()

	if h.snapshots != nil {
		if data, err := json.Marshal(state.Cells); err != nil {
			h.logger.Printf("failed to encode grid snapshot: %v", err)
		} else if err := h.snapshots.SaveSnapshot(ctx, data); err != nil {
			gridevents.SnapshotPersistFailed(ctx, h.publisher, err)
		}
	}
	if h.ledger != nil {
		if _, err := h.ledger.Record(ctx, state.Cells, state.OnlinePlayers, update); err != nil {
			gridevents.HistoryPersistFailed(ctx, h.publisher, err)
		}
	}

	gridevents.CellFilled(ctx, h.publisher, update.PlayerID, gridevents.CellPayload{Row: update.Row, Col: update.Col, Value: update.Value, Timestamp: update.Timestamp})
	h.BroadcastState(state)
	return state, true, ""
}

// CurrentState returns the live grid plus the online count.
func (h *Hub) CurrentState() sim.GridState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sim.GridState{Cells: h.grid.Snapshot(), OnlinePlayers: h.online}
}

func (h *Hub) PlayerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

// History returns the full ordered ledger.
func (h *Hub) History(ctx context.Context) ([]sim.HistoryEntry, error) {
	if h.ledger == nil {
		return nil, nil
	}
	return h.ledger.All(ctx)
}

// StateAt returns the newest history entry at or before the timestamp.
func (h *Hub) StateAt(ctx context.Context, timestamp int64) (sim.HistoryEntry, bool, error) {
	if h.ledger == nil {
		return sim.HistoryEntry{}, false, nil
	}
	return h.ledger.AtOrBefore(ctx, timestamp)
}

// BroadcastState sends a gridUpdate frame to every session.
func (h *Hub) BroadcastState(state sim.GridState) {
	data, err := proto.EncodeGridUpdate(state, time.Now().UnixMilli())
	if err != nil {
		h.logger.Printf("failed to marshal grid update: %v", err)
		return
	}
	h.broadcast(data)
}

// BroadcastCount sends a playerCount frame to every session.
func (h *Hub) BroadcastCount() {
	data, err := proto.EncodePlayerCount(h.PlayerCount())
	if err != nil {
		h.logger.Printf("failed to marshal player count: %v", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send update to %s: %v", id, err)
			h.Disconnect(id)
		}
	}
}

// Diagnostics exposes counters for the diagnostics endpoint. The
// online counter and the session map can diverge in theory (the
// counter has no floor); showing both makes that visible.
func (h *Hub) Diagnostics() (online, sessions int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online, len(h.subscribers)
}

func (h *Hub) limiterLocked(playerID string) *rate.Limiter {
	lim, ok := h.limiters[playerID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(h.cooldown), 1)
		h.limiters[playerID] = lim
	}
	return lim
}

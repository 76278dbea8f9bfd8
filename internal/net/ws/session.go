// Package ws runs the per-session websocket read loop.
package ws

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rayyan-Shk/Gamitar/server"
	"github.com/Rayyan-Shk/Gamitar/server/internal/net/proto"
)

// Handler coordinates one websocket session against the hub.
type Handler struct {
	hub    *server.Hub
	logger *log.Logger
}

// NewHandler constructs a websocket session handler for the given hub.
func NewHandler(hub *server.Hub, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{hub: hub, logger: logger}
}

// Serve registers the connection with the hub, delivers the initial
// grid state, and then handles client events until the connection
// drops. Every inbound event is handled independently; there is no
// per-session sequencing.
func (h *Handler) Serve(conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	ctx := context.Background()
	id, sub, state := h.hub.Subscribe(conn)

	data, err := proto.EncodeGridUpdate(state, time.Now().UnixMilli())
	if err != nil {
		h.logger.Printf("failed to marshal initial state for %s: %v", id, err)
		h.hub.Disconnect(id)
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		h.hub.Disconnect(id)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(id)
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", id, err)
			continue
		}

		// reply sends a frame to this session only; a failed write
		// tears the session down.
		reply := func(data []byte) bool {
			if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.Disconnect(id)
				return false
			}
			return true
		}

		switch msg.Type {
		case proto.TypeRequestInitialState:
			data, err := proto.EncodeGridUpdate(h.hub.CurrentState(), time.Now().UnixMilli())
			if err != nil {
				h.logger.Printf("failed to marshal state for %s: %v", id, err)
				continue
			}
			if !reply(data) {
				return
			}
		case proto.TypeRequestHistory:
			entries, err := h.hub.History(ctx)
			if err != nil {
				h.logger.Printf("failed to load history for %s: %v", id, err)
				continue
			}
			data, err := proto.EncodeHistoricalUpdates(entries)
			if err != nil {
				h.logger.Printf("failed to marshal history for %s: %v", id, err)
				continue
			}
			if !reply(data) {
				return
			}
		case proto.TypeRequestStateAtTimestamp:
			entry, ok, err := h.hub.StateAt(ctx, msg.Timestamp)
			if err != nil {
				h.logger.Printf("failed to load state at %d for %s: %v", msg.Timestamp, id, err)
				continue
			}
			if !ok {
				// No entry at or before the requested time: no reply.
				continue
			}
			data, err := proto.EncodeHistoricalState(entry)
			if err != nil {
				h.logger.Printf("failed to marshal historical state for %s: %v", id, err)
				continue
			}
			if !reply(data) {
				return
			}
		case proto.TypeUpdateCell:
			// Rejections are silent; the client reads "no state
			// change" as the rejection signal.
			h.hub.UpdateCell(ctx, proto.CellUpdate(msg))
		case proto.TypeRequestPlayerCount:
			h.hub.BroadcastCount()
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, id)
		}
	}
}

// Package gridevents holds the structured event constructors published
// by the grid server.
package gridevents

import (
	"context"

	"github.com/Rayyan-Shk/Gamitar/server/logging"
)

const (
	// EventCellFilled is emitted for every accepted write.
	EventCellFilled logging.EventType = "grid.cell_filled"
	// EventUpdateRejected is emitted when a write intent fails validation or cooldown.
	EventUpdateRejected logging.EventType = "grid.update_rejected"
	// EventSnapshotPersistFailed is emitted when saving the grid snapshot fails.
	EventSnapshotPersistFailed logging.EventType = "persistence.snapshot_failed"
	// EventHistoryPersistFailed is emitted when appending a history entry fails.
	EventHistoryPersistFailed logging.EventType = "persistence.history_failed"
	// EventSessionJoined is emitted when a websocket session connects.
	EventSessionJoined logging.EventType = "session.joined"
	// EventSessionLeft is emitted when a websocket session disconnects.
	EventSessionLeft logging.EventType = "session.left"
)

// CellPayload captures the coordinates and value of a write intent.
type CellPayload struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Value     string `json:"value,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SessionPayload captures the online count after a lifecycle change.
type SessionPayload struct {
	OnlinePlayers int `json:"onlinePlayers"`
}

// ErrorPayload carries a persistence failure message.
type ErrorPayload struct {
	Error string `json:"error"`
}

// CellFilled publishes an info event for an accepted write.
func CellFilled(ctx context.Context, pub logging.Publisher, playerID string, payload CellPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCellFilled,
		Actor:    logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// UpdateRejected publishes a debug event for a dropped write intent.
func UpdateRejected(ctx context.Context, pub logging.Publisher, playerID string, payload CellPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUpdateRejected,
		Actor:    logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// SnapshotPersistFailed publishes an error event when the snapshot save fails.
func SnapshotPersistFailed(ctx context.Context, pub logging.Publisher, err error) {
	if pub == nil || err == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotPersistFailed,
		Actor:    logging.EntityRef{Kind: logging.EntityKindGrid},
		Severity: logging.SeverityError,
		Category: logging.CategoryPersistence,
		Payload:  ErrorPayload{Error: err.Error()},
	})
}

// HistoryPersistFailed publishes an error event when the history append fails.
func HistoryPersistFailed(ctx context.Context, pub logging.Publisher, err error) {
	if pub == nil || err == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHistoryPersistFailed,
		Actor:    logging.EntityRef{Kind: logging.EntityKindGrid},
		Severity: logging.SeverityError,
		Category: logging.CategoryPersistence,
		Payload:  ErrorPayload{Error: err.Error()},
	})
}

// SessionJoined publishes an info event when a session connects.
func SessionJoined(ctx context.Context, pub logging.Publisher, sessionID string, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionJoined,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SessionLeft publishes an info event when a session disconnects.
func SessionLeft(ctx context.Context, pub logging.Publisher, sessionID string, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionLeft,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// Package proto defines the websocket wire protocol. Field names match
// the layout the browser client already speaks: cells carry value,
// lastUpdated, and updatedBy; intents carry playerId and timestamp.
package proto

import (
	"encoding/json"

	"github.com/Rayyan-Shk/Gamitar/server/internal/sim"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypeRequestInitialState     = "requestInitialState"
	TypeRequestHistory          = "requestHistory"
	TypeRequestStateAtTimestamp = "requestStateAtTimestamp"
	TypeUpdateCell              = "updateCell"
	TypeRequestPlayerCount      = "requestPlayerCount"
)

// Server message type identifiers.
const (
	TypeGridUpdate        = "gridUpdate"
	TypePlayerCount       = "playerCount"
	TypeHistoricalUpdates = "historicalUpdates"
	TypeHistoricalState   = "historicalState"
)

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver       int    `json:"ver,omitempty"`
	Type      string `json:"type"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Value     string `json:"value"`
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

// DecodeClientMessage converts raw websocket payloads into a structured
// message. The inbound ver field is informational only; frames from
// clients speaking another revision are still handled.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	return msg, nil
}

// CellUpdate extracts the write intent carried by an updateCell message.
func CellUpdate(msg ClientMessage) sim.CellUpdate {
	return sim.CellUpdate{
		Row:       msg.Row,
		Col:       msg.Col,
		Value:     msg.Value,
		PlayerID:  msg.PlayerID,
		Timestamp: msg.Timestamp,
	}
}

// GridUpdate is the canonical live state broadcast to every session.
type GridUpdate struct {
	Ver           int      `json:"ver"`
	Type          string   `json:"type"`
	Cells         sim.Grid `json:"cells"`
	OnlinePlayers int      `json:"onlinePlayers"`
	ServerTime    int64    `json:"serverTime"`
}

// EncodeGridUpdate renders a gridUpdate frame.
func EncodeGridUpdate(state sim.GridState, serverTime int64) ([]byte, error) {
	return json.Marshal(GridUpdate{
		Ver:           Version,
		Type:          TypeGridUpdate,
		Cells:         state.Cells,
		OnlinePlayers: state.OnlinePlayers,
		ServerTime:    serverTime,
	})
}

// PlayerCount carries the live online count.
type PlayerCount struct {
	Ver   int    `json:"ver"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// EncodePlayerCount renders a playerCount frame.
func EncodePlayerCount(count int) ([]byte, error) {
	return json.Marshal(PlayerCount{Ver: Version, Type: TypePlayerCount, Count: count})
}

// HistoricalUpdates carries the full ordered history.
type HistoricalUpdates struct {
	Ver     int                `json:"ver"`
	Type    string             `json:"type"`
	Entries []sim.HistoryEntry `json:"entries"`
}

// EncodeHistoricalUpdates renders a historicalUpdates frame.
func EncodeHistoricalUpdates(entries []sim.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []sim.HistoryEntry{}
	}
	return json.Marshal(HistoricalUpdates{Ver: Version, Type: TypeHistoricalUpdates, Entries: entries})
}

// HistoricalState is the grid as of a requested timestamp.
type HistoricalState struct {
	Ver           int      `json:"ver"`
	Type          string   `json:"type"`
	Cells         sim.Grid `json:"cells"`
	OnlinePlayers int      `json:"onlinePlayers"`
	Timestamp     int64    `json:"timestamp"`
}

// EncodeHistoricalState renders a historicalState frame from a ledger
// entry. The online count reported is the count stored with the entry.
func EncodeHistoricalState(entry sim.HistoryEntry) ([]byte, error) {
	return json.Marshal(HistoricalState{
		Ver:           Version,
		Type:          TypeHistoricalState,
		Cells:         entry.State,
		OnlinePlayers: entry.OnlinePlayers,
		Timestamp:     entry.Timestamp,
	})
}

package proto

import (
	"encoding/json"
	"testing"
)

func TestDecodeClientMessageDefaultsVersion(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"requestInitialState"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Ver != Version {
		t.Fatalf("expected version %d, got %d", Version, msg.Ver)
	}
}

func TestDecodeClientMessageToleratesOtherVersions(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"ver":99,"type":"updateCell"}`))
	if err != nil {
		t.Fatalf("inbound ver must not reject the frame: %v", err)
	}
	if msg.Ver != 99 || msg.Type != TypeUpdateCell {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestDecodeClientMessageUpdateCell(t *testing.T) {
	payload := []byte(`{"type":"updateCell","row":3,"col":4,"value":"A","playerId":"p1","timestamp":1000}`)
	msg, err := DecodeClientMessage(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	update := CellUpdate(msg)
	if update.Row != 3 || update.Col != 4 || update.Value != "A" || update.PlayerID != "p1" || update.Timestamp != 1000 {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestEncodeHistoricalUpdatesEmptyHistory(t *testing.T) {
	data, err := EncodeHistoricalUpdates(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var frame struct {
		Type    string            `json:"type"`
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != TypeHistoricalUpdates {
		t.Fatalf("unexpected type %q", frame.Type)
	}
	if frame.Entries == nil {
		t.Fatalf("empty history must encode as [], not null")
	}
}

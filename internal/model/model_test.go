package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChatMessageConversionKeepsNulls(t *testing.T) {
	m := BufferedMessage{ID: 42, RoomID: "r1", SenderID: "alice", Kind: MessageKindText, Content: "hi", Ts: 1000}
	e := NewChatMessage(m)

	if e.MediaType != nil || e.MediaURL != nil {
		t.Fatalf("empty media fields must be stored as NULL")
	}
	if e.Content == nil || *e.Content != "hi" {
		t.Fatalf("content lost")
	}
	if back := e.Buffered(); back != m {
		t.Fatalf("expected %+v, got %+v", m, back)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf("") != MessageKindText || KindOf("/f/a.png") != MessageKindMedia {
		t.Fatalf("unexpected kind mapping")
	}
}

func TestBufferedMessageIDEncodedAsString(t *testing.T) {
	raw, err := json.Marshal(BufferedMessage{ID: 1234567890123456789, RoomID: "r"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"id":"1234567890123456789"`) {
		t.Fatalf("expected string id, got %s", raw)
	}
}

func TestDispatchStatus(t *testing.T) {
	if DispatchStatusPending.IsTerminal() {
		t.Fatalf("PENDING is not terminal")
	}
	if !DispatchStatusSent.IsTerminal() || !DispatchStatusCancelled.IsTerminal() {
		t.Fatalf("SENT and CANCELLED are terminal")
	}
	if DispatchType("SMS").Valid() || !DispatchTypeEmail.Valid() {
		t.Fatalf("unexpected type validity")
	}
}

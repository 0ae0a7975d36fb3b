package redis

import (
	"encoding/json"
	"testing"

	"chat_relay_server/internal/model"
)

func TestDecodeMessagesSkipsCorruptEntries(t *testing.T) {
	good, _ := json.Marshal(model.BufferedMessage{ID: 1, RoomID: "r1", SenderID: "a", Content: "hi", Ts: 5})
	out := decodeMessages("chat:room:r1", []string{string(good), "{not json"})

	if len(out) != 1 || out[0].Content != "hi" || out[0].ID != 1 {
		t.Fatalf("unexpected decode result %+v", out)
	}
}

func TestRoomKey(t *testing.T) {
	s := NewRoomStore(nil)
	if got := s.key("lobby"); got != "chat:room:lobby" {
		t.Fatalf("unexpected key %q", got)
	}
}

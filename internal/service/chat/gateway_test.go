package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"chat_relay_server/internal/dto/respond"
	"chat_relay_server/internal/model"
	"chat_relay_server/internal/service/buffer"
)

type memPersister struct {
	mu    sync.Mutex
	saved []model.BufferedMessage
}

func (p *memPersister) SaveBatch(_ context.Context, msgs []model.BufferedMessage) error {
	p.mu.Lock()
	p.saved = append(p.saved, msgs...)
	p.mu.Unlock()
	return nil
}

func (p *memPersister) FindRecentByRoom(context.Context, string, int) ([]model.BufferedMessage, error) {
	return nil, nil
}

// inlineTasks 同步执行提交的任务
type inlineTasks struct {
	mu        sync.Mutex
	submitted int
}

func (t *inlineTasks) TrySubmit(task func()) bool {
	t.mu.Lock()
	t.submitted++
	t.mu.Unlock()
	task()
	return true
}

func newTestGateway() (*Gateway, *buffer.Buffer, *memPersister, *inlineTasks) {
	p := &memPersister{}
	b := buffer.New(buffer.NewMemoryStore(), p)
	tasks := &inlineTasks{}
	return NewGateway(NewRegistry(nil), b, tasks), b, p, tasks
}

func lastFrame(t *testing.T, c *fakeConn) map[string]any {
	t.Helper()
	frames := c.received()
	if len(frames) == 0 {
		t.Fatalf("conn %s received nothing", c.id)
	}
	var out map[string]any
	if err := json.Unmarshal(frames[len(frames)-1], &out); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return out
}

func TestSendBroadcastsAndBuffers(t *testing.T) {
	g, buf, persister, _ := newTestGateway()
	a, b := newFakeConn("A-conn"), newFakeConn("B-conn")
	_ = g.Registry().Register(a, "A")
	_ = g.Registry().Register(b, "B")

	g.HandleFrame(a, []byte(`{"type":"chat.join","roomId":"r1"}`))
	g.HandleFrame(b, []byte(`{"type":"chat.join","roomId":"r1"}`))
	g.HandleFrame(a, []byte(`{"type":"chat.send","roomId":"r1","content":"hi","senderId":"mallory"}`))

	var got respond.ChatMessageFrame
	frames := b.received()
	if len(frames) != 1 {
		t.Fatalf("B expected 1 frame, got %d", len(frames))
	}
	if err := json.Unmarshal(frames[0], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "chat.message" || got.RoomID != "r1" || got.SenderID != "A" || got.Content != "hi" || got.Ts <= 0 {
		t.Fatalf("unexpected frame %+v", got)
	}
	if got.Kind != string(model.MessageKindText) {
		t.Fatalf("expected TEXT kind, got %s", got.Kind)
	}

	ctx := context.Background()
	pending, _ := buf.Peek(ctx, "r1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 buffered message, got %d", len(pending))
	}
	if err := buf.FlushRoom(ctx, "r1"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if pending, _ = buf.Peek(ctx, "r1"); len(pending) != 0 {
		t.Fatalf("buffer should be empty after flush")
	}
	if len(persister.saved) != 1 || persister.saved[0].RoomID != "r1" {
		t.Fatalf("expected one durable entry for r1, got %+v", persister.saved)
	}
}

func TestPingRepliesPong(t *testing.T) {
	g, _, _, _ := newTestGateway()
	c := newFakeConn("c")
	_ = g.Registry().Register(c, "u")
	g.HandleFrame(c, []byte(`{"type":"ping"}`))
	f := lastFrame(t, c)
	if f["type"] != "pong" {
		t.Fatalf("expected pong, got %v", f)
	}
	if ts, _ := f["ts"].(float64); ts <= 0 {
		t.Fatalf("pong must carry ts, got %v", f["ts"])
	}
}

func TestInvalidFramesOnlyReachSender(t *testing.T) {
	g, buf, _, _ := newTestGateway()
	a, b := newFakeConn("a"), newFakeConn("b")
	_ = g.Registry().Register(a, "A")
	_ = g.Registry().Register(b, "B")
	g.HandleFrame(b, []byte(`{"type":"chat.join","roomId":"r1"}`))

	cases := []string{
		`not json`,
		`{"type":"chat.send","roomId":"r1"}`,
		`{"type":"chat.send","content":"no room"}`,
		`{"type":"chat.send","roomId":"r1","mediaUrl":"http://x/1.png"}`,
		`{"type":"chat.join"}`,
	}
	for _, raw := range cases {
		before := len(a.received())
		g.HandleFrame(a, []byte(raw))
		if len(a.received()) != before+1 {
			t.Fatalf("%s: expected an error frame", raw)
		}
		if f := lastFrame(t, a); f["type"] != "error" {
			t.Fatalf("%s: expected error frame, got %v", raw, f)
		}
	}
	if len(b.received()) != 0 {
		t.Fatalf("other members must not see rejected frames")
	}
	if pending, _ := buf.Peek(context.Background(), "r1"); len(pending) != 0 {
		t.Fatalf("rejected sends must not be buffered")
	}
}

func TestMediaSendAndUnknownType(t *testing.T) {
	g, _, _, _ := newTestGateway()
	a := newFakeConn("a")
	_ = g.Registry().Register(a, "A")
	g.HandleFrame(a, []byte(`{"type":"chat.join","roomId":"r1"}`))

	g.HandleFrame(a, []byte(`{"type":"typing","roomId":"r1"}`))
	if len(a.received()) != 0 {
		t.Fatalf("unknown type must be ignored")
	}

	g.HandleFrame(a, []byte(`{"type":"chat.send","roomId":"r1","mediaType":"image","mediaUrl":"http://x/1.png"}`))
	f := lastFrame(t, a)
	if f["kind"] != string(model.MessageKindMedia) || f["mediaUrl"] != "http://x/1.png" {
		t.Fatalf("unexpected media frame %v", f)
	}
}

func TestAnonymousSenderGetsGuestID(t *testing.T) {
	g, _, _, _ := newTestGateway()
	c := newFakeConn("c9")
	_ = g.Registry().Register(c, "")
	g.HandleFrame(c, []byte(`{"type":"chat.join","roomId":"lobby"}`))
	g.HandleFrame(c, []byte(`{"type":"chat.send","roomId":"lobby","content":"hello"}`))
	f := lastFrame(t, c)
	if sender, _ := f["senderId"].(string); !strings.HasPrefix(sender, "guest:") {
		t.Fatalf("expected guest sender, got %v", f["senderId"])
	}
}

func TestLastLeaveFlushesRoom(t *testing.T) {
	g, _, persister, tasks := newTestGateway()
	a, b := newFakeConn("a"), newFakeConn("b")
	_ = g.Registry().Register(a, "A")
	_ = g.Registry().Register(b, "B")
	g.HandleFrame(a, []byte(`{"type":"chat.join","roomId":"r1"}`))
	g.HandleFrame(b, []byte(`{"type":"chat.join","roomId":"r1"}`))
	g.HandleFrame(a, []byte(`{"type":"chat.send","roomId":"r1","content":"bye"}`))

	g.HandleFrame(a, []byte(`{"type":"chat.leave","roomId":"r1"}`))
	if tasks.submitted != 0 || len(persister.saved) != 0 {
		t.Fatalf("room still has a member, must not flush")
	}

	rooms := g.Disconnect(b)
	if len(rooms) != 1 || rooms[0] != "r1" {
		t.Fatalf("expected [r1], got %v", rooms)
	}
	if tasks.submitted != 1 || len(persister.saved) != 1 {
		t.Fatalf("last leave must flush r1, submitted=%d saved=%d", tasks.submitted, len(persister.saved))
	}
}

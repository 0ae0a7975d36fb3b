package chat

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn 记录收到的帧
type fakeConn struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	closed  atomic.Bool
	sendErr error
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string   { return c.id }
func (c *fakeConn) IsOpen() bool { return !c.closed.Load() }

func (c *fakeConn) Send(frame []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// countingPresence 记录每个用户的净连接数
type countingPresence struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingPresence() *countingPresence {
	return &countingPresence{counts: make(map[string]int)}
}

func (p *countingPresence) MarkOnline(userID string) {
	p.mu.Lock()
	p.counts[userID]++
	p.mu.Unlock()
}

func (p *countingPresence) MarkOffline(userID string) {
	p.mu.Lock()
	p.counts[userID]--
	p.mu.Unlock()
}

func (p *countingPresence) count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID]
}

// gatedPresence MarkOnline 阻塞到 release 关闭，并记录调用顺序
type gatedPresence struct {
	mu      sync.Mutex
	calls   []string
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPresence) MarkOnline(userID string) {
	p.record("online:" + userID)
	close(p.entered)
	<-p.release
}

func (p *gatedPresence) MarkOffline(userID string) { p.record("offline:" + userID) }

func (p *gatedPresence) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func TestUnregisterDuringRegisterKeepsPresenceOrder(t *testing.T) {
	presence := &gatedPresence{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRegistry(presence)
	c := newFakeConn("c1")

	registered := make(chan error, 1)
	go func() { registered <- r.Register(c, "alice") }()
	<-presence.entered

	unregistered := make(chan []string, 1)
	go func() { unregistered <- r.Unregister(c) }()
	// 给 Unregister 足够时间抢在 MarkOnline 返回前执行
	time.Sleep(50 * time.Millisecond)
	close(presence.release)

	if err := <-registered; err != nil {
		t.Fatalf("register: %v", err)
	}
	<-unregistered

	want := []string{"online:alice", "offline:alice"}
	if !reflect.DeepEqual(presence.calls, want) {
		t.Fatalf("presence calls = %v, want %v", presence.calls, want)
	}
	if r.ConnectionCount() != 0 {
		t.Fatalf("expected no connections, got %d", r.ConnectionCount())
	}
}

func TestRegisterUnregisterReturnsJoinedRooms(t *testing.T) {
	presence := newCountingPresence()
	r := NewRegistry(presence)
	c := newFakeConn("c1")

	if err := r.Register(c, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if presence.count("alice") != 1 {
		t.Fatalf("expected markOnline on register")
	}
	for _, room := range []string{"b", "a", "c"} {
		if err := r.JoinRoom(c, room); err != nil {
			t.Fatalf("join %s: %v", room, err)
		}
	}
	r.LeaveRoom(c, "c")

	rooms := r.Unregister(c)
	if !reflect.DeepEqual(rooms, []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", rooms)
	}
	for _, room := range []string{"a", "b", "c"} {
		if n := r.RoomSize(room); n != 0 {
			t.Fatalf("room %s still has %d members", room, n)
		}
	}
	if presence.count("alice") != 0 {
		t.Fatalf("expected markOffline on unregister")
	}
	if r.ConnectionCount() != 0 {
		t.Fatalf("expected no connections, got %d", r.ConnectionCount())
	}
	if again := r.Unregister(c); again != nil {
		t.Fatalf("second unregister must be a no-op, got %v", again)
	}
	if presence.count("alice") != 0 {
		t.Fatalf("second unregister must not markOffline again")
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	r := NewRegistry(nil)
	c := newFakeConn("c1")
	if err := r.Register(c, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(c, "alice"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestAnonymousConnectionSkipsPresence(t *testing.T) {
	presence := newCountingPresence()
	r := NewRegistry(presence)
	c := newFakeConn("guest")
	_ = r.Register(c, "")
	if _, ok := r.Identity(c); ok {
		t.Fatalf("anonymous connection must have no identity")
	}
	r.Unregister(c)
	if len(presence.counts) != 0 {
		t.Fatalf("presence must not be touched, got %v", presence.counts)
	}
}

func TestJoinIsIdempotentAndLeaveCollectsEmptyRoom(t *testing.T) {
	r := NewRegistry(nil)
	a, b := newFakeConn("a"), newFakeConn("b")
	_ = r.Register(a, "ua")
	_ = r.Register(b, "ub")

	_ = r.JoinRoom(a, "r1")
	_ = r.JoinRoom(a, "r1")
	_ = r.JoinRoom(b, "r1")
	if n := r.RoomSize("r1"); n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}

	r.LeaveRoom(a, "r1")
	r.LeaveRoom(a, "r1")
	if n := r.RoomSize("r1"); n != 1 {
		t.Fatalf("expected 1 member, got %d", n)
	}
	r.LeaveRoom(b, "r1")
	if n := r.RoomSize("r1"); n != 0 {
		t.Fatalf("expected empty room, got %d", n)
	}
	if rooms := r.Rooms(b); len(rooms) != 0 {
		t.Fatalf("connection should have no rooms, got %v", rooms)
	}
}

func TestJoinAfterUnregisterFails(t *testing.T) {
	r := NewRegistry(nil)
	c := newFakeConn("c1")
	if err := r.JoinRoom(c, "r1"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("join before register: expected ErrNotRegistered, got %v", err)
	}
	_ = r.Register(c, "alice")
	r.Unregister(c)
	if err := r.JoinRoom(c, "r1"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("join after unregister: expected ErrNotRegistered, got %v", err)
	}
	if n := r.RoomSize("r1"); n != 0 {
		t.Fatalf("closed connection must not appear in room, got %d", n)
	}
}

func TestBroadcastSwallowsRecipientFailures(t *testing.T) {
	r := NewRegistry(nil)
	ok1, ok2 := newFakeConn("ok1"), newFakeConn("ok2")
	broken := newFakeConn("broken")
	broken.sendErr = ErrSendBufferFull
	closed := newFakeConn("closed")

	for _, c := range []*fakeConn{ok1, broken, closed, ok2} {
		_ = r.Register(c, c.id)
		_ = r.JoinRoom(c, "r1")
	}
	closed.closed.Store(true)

	if n := r.Broadcast("r1", []byte(`{"x":1}`)); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(ok1.received()) != 1 || len(ok2.received()) != 1 {
		t.Fatalf("healthy peers must receive the frame")
	}
	if len(closed.received()) != 0 {
		t.Fatalf("closed connection must be skipped")
	}
	if n := r.Broadcast("empty", []byte("x")); n != 0 {
		t.Fatalf("broadcast to unknown room delivered %d", n)
	}
}

func TestConcurrentMembershipStaysConsistent(t *testing.T) {
	presence := newCountingPresence()
	r := NewRegistry(presence)

	const conns, rooms = 50, 8
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i))
			user := fmt.Sprintf("u%d", i%5)
			_ = r.Register(c, user)
			for j := 0; j < 100; j++ {
				room := fmt.Sprintf("room-%d", (i+j)%rooms)
				if j%3 == 0 {
					r.LeaveRoom(c, room)
				} else {
					_ = r.JoinRoom(c, room)
				}
				r.Broadcast(room, []byte("ping"))
			}
			joined := r.Rooms(c)
			got := r.Unregister(c)
			if !reflect.DeepEqual(joined, got) {
				t.Errorf("conn %s: Rooms %v != Unregister %v", c.id, joined, got)
			}
		}(i)
	}
	wg.Wait()

	for j := 0; j < rooms; j++ {
		if n := r.RoomSize(fmt.Sprintf("room-%d", j)); n != 0 {
			t.Fatalf("room-%d still has %d members", j, n)
		}
	}
	for u := 0; u < 5; u++ {
		if n := presence.count(fmt.Sprintf("u%d", u)); n != 0 {
			t.Fatalf("user u%d net connections %d", u, n)
		}
	}
}

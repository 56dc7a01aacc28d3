package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	handlers  map[int]func(wire.Event)
	nextID    int
	emitted   []wire.Outbound
	emitErr   error
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{connected: connected, handlers: map[int]func(wire.Event){}}
}

func (f *fakeTransport) Emit(_ context.Context, event wire.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeTransport) Subscribe(handler func(wire.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) deliver(event wire.Event) {
	f.mu.Lock()
	handlers := make([]func(wire.Event), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
}

func (f *fakeTransport) connect() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.deliver(wire.Connected{})
}

func (f *fakeTransport) disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.deliver(wire.Disconnected{Reason: "test"})
}

func (f *fakeTransport) setEmitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitErr = err
}

func (f *fakeTransport) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeTransport) events() []wire.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.Outbound(nil), f.emitted...)
}

func (f *fakeTransport) names() []string {
	events := f.events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventName()
	}
	return out
}

type fakeLoader struct {
	mu         sync.Mutex
	history    []domain.Message
	room       domain.Room
	historyErr error
	roomErr    error
	gate       chan struct{}
	roomGate   chan struct{}
	roomCalls  atomic.Int32
}

func (f *fakeLoader) FetchHistory(ctx context.Context, roomID string) ([]domain.Message, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]domain.Message(nil), f.history...), nil
}

// FetchRoom snapshots the roster before waiting on roomGate, so a gated
// fetch returns the membership as it was when the request started.
func (f *fakeLoader) FetchRoom(ctx context.Context, roomID string) (domain.Room, error) {
	f.roomCalls.Add(1)
	f.mu.Lock()
	gate, roomErr := f.roomGate, f.roomErr
	room := f.room
	room.ID = roomID
	room.Participants = append([]domain.Participant(nil), f.room.Participants...)
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Room{}, ctx.Err()
		}
	}
	if roomErr != nil {
		return domain.Room{}, roomErr
	}
	return room, nil
}

func (f *fakeLoader) set(fn func(l *fakeLoader)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func startSession(t *testing.T, transport Transport, loader RoomLoader, cfg Config) *Session {
	t.Helper()
	if cfg.UserID == "" {
		cfg.UserID = "u1"
	}
	if cfg.Logf == nil {
		cfg.Logf = t.Logf
	}
	s, err := NewSession(transport, loader, cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// flush waits until every operation queued before it has run.
func flush(t *testing.T, s *Session) {
	t.Helper()
	if err := s.call(testContext(t), func() error { return nil }); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, s *Session, want domain.SessionState) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return s.State().State == want })
}

func waitNotice(t *testing.T, s *Session) Notice {
	t.Helper()
	select {
	case n := <-s.Notices():
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notice")
		return Notice{}
	}
}

// joinRoom drives a session to Joined through the server acknowledgement.
func joinRoom(t *testing.T, s *Session, transport *fakeTransport, roomID string) {
	t.Helper()
	if err := s.Join(testContext(t), roomID); err != nil {
		t.Fatalf("join: %v", err)
	}
	transport.deliver(wire.JoinedRoom{ChatRoomID: roomID})
	waitState(t, s, domain.StateJoined)
}

// Package app implements the room session: the state machine that joins a
// room over the shared transport, merges its timeline and tracks its roster.
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/text/message"

	apperrors "github.com/louisbranch/roomsync/internal/platform/errors"
	"github.com/louisbranch/roomsync/internal/platform/i18n/catalog"
	"github.com/louisbranch/roomsync/internal/platform/id"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/wire"
)

const (
	maxMessageBodyRunes = 2000
	queueSize           = 64
	noticeBufferSize    = 32
)

var (
	// ErrNotReady rejects sends while the session is not joined or the
	// transport is down. It is expected to clear on its own.
	ErrNotReady = apperrors.New(apperrors.CodeNotReady, "room session not ready")
	// ErrSessionClosed rejects commands once the session reached Left.
	ErrSessionClosed = errors.New("room session closed")
	// ErrAlreadyJoined rejects joining a second room with one session.
	ErrAlreadyJoined = errors.New("room session already bound to a room")
	// ErrInvalidRoom rejects an empty room id.
	ErrInvalidRoom = errors.New("room id is required")
	// ErrEmptyContent rejects blank messages.
	ErrEmptyContent = errors.New("message content is required")
	// ErrContentTooLong rejects messages over the body limit.
	ErrContentTooLong = errors.New("message content is too long")
	// ErrEmitFailed wraps a transport failure while emitting a send. The
	// message stays pending.
	ErrEmitFailed = errors.New("emit failed")
	// ErrSessionStopped is returned when Run has exited.
	ErrSessionStopped = errors.New("room session stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("room session already running")
)

// Transport is the shared realtime connection. Handlers are invoked in
// delivery order from a single goroutine.
type Transport interface {
	Emit(ctx context.Context, event wire.Outbound) error
	Subscribe(handler func(wire.Event)) (unsubscribe func())
	Connected() bool
}

// RoomLoader fetches authoritative room state.
type RoomLoader interface {
	FetchHistory(ctx context.Context, roomID string) ([]domain.Message, error)
	FetchRoom(ctx context.Context, roomID string) (domain.Room, error)
}

// Config configures a Session.
type Config struct {
	// UserID identifies the local user on the transport.
	UserID string
	// Sender is attached to optimistic messages.
	Sender domain.SenderMeta
	// Locale selects the language of system notices.
	Locale string
	// RefreshInterval refetches the roster while joined. Zero disables it.
	RefreshInterval time.Duration
	// NewID generates temp ids. Defaults to id.MustNewID.
	NewID func() string
	// Now defaults to time.Now.
	Now func() time.Time
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Notice is a condition the user must see.
type Notice struct {
	RoomID string
	Err    *apperrors.Error
	// Text is the notice localized for the session locale.
	Text string
}

// Fatal reports whether the notice ends the session, requiring the UI to
// navigate away.
func (n Notice) Fatal() bool {
	return n.Err != nil && n.Err.Code.Fatal()
}

// View is a read-only copy of what the UI renders.
type View struct {
	Status       domain.Status
	Messages     []domain.Message
	Participants []domain.Participant
}

// Session coordinates one user's membership in one room.
//
// All state is owned by the goroutine running Run; commands, transport
// events and fetch results are serialized through a single queue.
type Session struct {
	transport Transport
	loader    RoomLoader
	cfg       Config
	printer   *message.Printer

	queue   chan func()
	done    chan struct{}
	running atomic.Bool
	updates chan struct{}
	notices chan Notice

	// Owned by the loop.
	runCtx      context.Context
	wg          sync.WaitGroup
	state       domain.SessionState
	roomID      string
	roomDeleted bool
	ready       bool
	conn        ConnectionState
	reconciler  *Reconciler
	tracker     *Tracker
	unsubscribe func()
	loadGen     uint64

	// Roster refresh in flight, and whether another was requested meanwhile.
	refreshing   bool
	refreshDirty bool

	mu   sync.RWMutex
	view View
}

// NewSession builds an idle session. Run must be started before commands
// are issued.
func NewSession(transport Transport, loader RoomLoader, cfg Config) (*Session, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if loader == nil {
		return nil, errors.New("room loader is required")
	}
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	if cfg.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if cfg.NewID == nil {
		cfg.NewID = id.MustNewID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	s := &Session{
		transport: transport,
		loader:    loader,
		cfg:       cfg,
		printer:   catalog.Printer(cfg.Locale),
		queue:     make(chan func(), queueSize),
		done:      make(chan struct{}),
		updates:   make(chan struct{}, 1),
		notices:   make(chan Notice, noticeBufferSize),
		tracker:   NewTracker(),
	}
	s.view = View{Status: domain.Status{State: domain.StateIdle, Disconnected: true}}
	return s, nil
}

// Run processes the session queue until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.runCtx = ctx
	defer close(s.done)
	defer func() {
		cancel()
		s.teardown()
	}()

	var tick <-chan time.Time
	if s.cfg.RefreshInterval > 0 {
		ticker := time.NewTicker(s.cfg.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-s.queue:
			op()
		case <-tick:
			if s.state == domain.StateJoined {
				s.refreshMembership("interval")
			}
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Updates signals after any visible change. Signals are coalesced.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Notices delivers user-visible conditions.
func (s *Session) Notices() <-chan Notice {
	return s.notices
}

// State returns the current status.
func (s *Session) State() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Status
}

// View returns copies of the timeline and roster.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Status:       s.view.Status,
		Messages:     append([]domain.Message(nil), s.view.Messages...),
		Participants: append([]domain.Participant(nil), s.view.Participants...),
	}
}

// Join binds the session to roomID. When the transport is down the intent is
// kept and the join is emitted on the next connect. Calling Join again for
// the same room while still joining re-emits the join request.
func (s *Session) Join(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrInvalidRoom
	}
	return s.call(ctx, func() error { return s.join(roomID) })
}

// Send appends an optimistic message and emits it. It returns the temp id of
// the pending message. When the emit fails the message stays pending and the
// returned error wraps ErrEmitFailed.
func (s *Session) Send(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxMessageBodyRunes {
		return "", ErrContentTooLong
	}
	var tempID string
	err := s.call(ctx, func() error {
		var err error
		tempID, err = s.send(content)
		return err
	})
	return tempID, err
}

// Leave leaves the room without waiting for the server.
func (s *Session) Leave(ctx context.Context) error {
	return s.call(ctx, func() error {
		s.leave()
		return nil
	})
}

// call runs op on the loop and waits for its result.
func (s *Session) call(ctx context.Context, op func() error) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, func() { reply <- op() }); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues op for the loop.
func (s *Session) post(ctx context.Context, op func()) error {
	select {
	case <-s.done:
		return ErrSessionStopped
	default:
	}
	select {
	case s.queue <- op:
		return nil
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn on a helper goroutine tracked for teardown.
func (s *Session) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.runCtx)
	}()
}

func (s *Session) teardown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.wg.Wait()
}

// publish copies loop state for readers and signals an update.
func (s *Session) publish() {
	view := View{
		Status: domain.Status{
			State:        s.state,
			RoomID:       s.roomID,
			Disconnected: !s.conn.IsConnected(),
			Ready:        s.ready,
			RoomDeleted:  s.roomDeleted,
		},
		Participants: s.tracker.Snapshot(),
	}
	if s.reconciler != nil {
		view.Messages = s.reconciler.Snapshot()
	}
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()

	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Session) notify(code apperrors.Code, message string, cause error, args ...any) {
	n := Notice{
		RoomID: s.roomID,
		Err:    apperrors.Wrap(code, message, cause),
		Text:   s.printer.Sprintf("notice."+string(code), args...),
	}
	s.logf("notice room=%q code=%s retryable=%t", s.roomID, code, code.Retryable())
	select {
	case s.notices <- n:
	default:
		s.cfg.Logf("roomsession: notice dropped room=%q code=%s", s.roomID, code)
	}
}

func (s *Session) logf(format string, args ...any) {
	s.cfg.Logf("roomsession: "+format, args...)
}

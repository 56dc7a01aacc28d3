// Package transport provides the shared realtime socket used by room
// sessions: a websocket client that redials with exponential backoff and
// fans decoded events out to subscribers.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/net/websocket"

	"github.com/louisbranch/roomsync/internal/platform/timeouts"
	"github.com/louisbranch/roomsync/internal/services/roomsession/wire"
)

const maxFramePayloadBytes = 64 * 1024

var (
	// ErrNotConnected is returned by Emit while the socket is down.
	ErrNotConnected = errors.New("socket not connected")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("socket already running")
)

// Config configures a Socket.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Origin defaults to the URL with an http scheme.
	Origin string
	// Token is sent as a bearer Authorization header when set.
	Token string

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration

	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

type subscription struct {
	id      uint64
	handler func(wire.Event)
}

// Socket is a reconnecting websocket client. Handlers run on the reader
// goroutine, one event at a time, in delivery order.
type Socket struct {
	cfg     Config
	running atomic.Bool

	connMu sync.Mutex
	conn   *websocket.Conn

	// writeMu serializes frames on the current connection.
	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   []subscription
	nextID uint64
}

// New validates cfg and returns an idle socket. Call Run to connect.
func New(cfg Config) (*Socket, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return nil, fmt.Errorf("socket url must use ws or wss: %q", cfg.URL)
	}
	if cfg.Origin == "" {
		cfg.Origin = "http" + strings.TrimPrefix(cfg.URL, "ws")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = timeouts.ReconnectInitial
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = timeouts.ReconnectMax
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = timeouts.WSDial
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = timeouts.WSWrite
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Socket{cfg: cfg}, nil
}

// Run dials and redials until ctx is cancelled.
func (s *Socket) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialBackoff
	bo.MaxInterval = s.cfg.MaxBackoff
	bo.Reset()

	for {
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := bo.NextBackOff()
			s.cfg.Logf("transport: dial failed url=%q retry_in=%s err=%v", s.cfg.URL, delay, err)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}
		bo.Reset()

		s.attach(conn)
		s.cfg.Logf("transport: connected url=%q", s.cfg.URL)
		s.dispatch(wire.Connected{})

		reason := s.readLoop(ctx, conn)

		s.detach(conn)
		s.cfg.Logf("transport: disconnected url=%q reason=%q", s.cfg.URL, reason)
		s.dispatch(wire.Disconnected{Reason: reason})

		if ctx.Err() != nil {
			return nil
		}
		if !sleep(ctx, bo.NextBackOff()) {
			return nil
		}
	}
}

// Connected reports whether a connection is currently attached.
func (s *Socket) Connected() bool {
	return s.current() != nil
}

// Subscribe registers handler for every inbound event and returns a func
// that removes it.
func (s *Socket) Subscribe(handler func(wire.Event)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit writes one outbound event on the current connection.
func (s *Socket) Emit(ctx context.Context, event wire.Outbound) error {
	frame, err := wire.Encode(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn := s.current()
	if conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("emit %s: %w", frame.Type, err)
	}
	if err := websocket.JSON.Send(conn, frame); err != nil {
		return fmt.Errorf("emit %s: %w", frame.Type, err)
	}
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	wsConfig, err := websocket.NewConfig(s.cfg.URL, s.cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("socket config: %w", err)
	}
	if s.cfg.Token != "" {
		wsConfig.Header = make(http.Header)
		wsConfig.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()
	return wsConfig.DialContext(dialCtx)
}

// readLoop decodes frames until the connection fails or ctx ends, and
// returns the reason.
func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) string {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if ctx.Err() != nil {
				return "shutdown"
			}
			if errors.Is(err, io.EOF) {
				return "closed by server"
			}
			return err.Error()
		}
		if len(data) > maxFramePayloadBytes {
			s.cfg.Logf("transport: dropping oversized frame bytes=%d", len(data))
			continue
		}
		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.cfg.Logf("transport: dropping malformed frame err=%v", err)
			continue
		}
		event, err := wire.Decode(frame)
		if err != nil {
			s.cfg.Logf("transport: dropping frame type=%q err=%v", frame.Type, err)
			continue
		}
		s.dispatch(event)
	}
}

func (s *Socket) attach(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn = conn
}

func (s *Socket) detach(conn *websocket.Conn) {
	s.connMu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.connMu.Unlock()
	_ = conn.Close()
}

func (s *Socket) current() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Socket) dispatch(event wire.Event) {
	s.subsMu.Lock()
	handlers := make([]func(wire.Event), len(s.subs))
	for i, sub := range s.subs {
		handlers[i] = sub.handler
	}
	s.subsMu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

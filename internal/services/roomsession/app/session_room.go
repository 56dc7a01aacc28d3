package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/roomsync/internal/platform/errors"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/wire"
)

func (s *Session) join(roomID string) error {
	switch s.state {
	case domain.StateLeaving, domain.StateLeft:
		return ErrSessionClosed
	case domain.StateJoined:
		if roomID != s.roomID {
			return ErrAlreadyJoined
		}
		return nil
	case domain.StateJoining:
		if roomID != s.roomID {
			return ErrAlreadyJoined
		}
		if s.conn.IsConnected() {
			s.emitJoin()
		}
		return nil
	}

	s.roomID = roomID
	s.reconciler = NewReconciler(roomID, s.cfg.NewID, s.cfg.Now)
	s.tracker = NewTracker()
	s.state = domain.StateJoining
	s.unsubscribe = s.transport.Subscribe(s.onTransportEvent)
	// Subscribe before sampling so a connect racing the subscription is
	// either observed here or queued as an event.
	if s.transport.Connected() {
		s.conn.OnConnect()
	}
	if s.conn.IsConnected() {
		s.emitJoin()
	} else {
		s.logf("join deferred until connect room=%q", roomID)
	}
	s.publish()
	return nil
}

func (s *Session) send(content string) (string, error) {
	if s.state == domain.StateLeft {
		return "", ErrSessionClosed
	}
	if s.state != domain.StateJoined || !s.conn.IsConnected() {
		return "", ErrNotReady
	}
	tempID := s.reconciler.AddPending(content, s.cfg.UserID, s.cfg.Sender)
	s.publish()

	err := s.emit(wire.SendMessage{
		TempID:      tempID,
		Content:     content,
		ChatRoomID:  s.roomID,
		MessageType: wire.MessageTypeText,
	})
	if err != nil {
		s.logf("send emit failed room=%q temp_id=%q err=%v", s.roomID, tempID, err)
		return tempID, fmt.Errorf("%w: %v", ErrEmitFailed, err)
	}
	return tempID, nil
}

func (s *Session) leave() {
	switch s.state {
	case domain.StateLeft:
		return
	case domain.StateIdle:
		s.state = domain.StateLeft
		s.publish()
		return
	}

	s.state = domain.StateLeaving
	s.publish()
	if s.conn.IsConnected() {
		if err := s.emit(wire.LeaveRoom{ChatRoomID: s.roomID}); err != nil {
			s.logf("leave emit failed room=%q err=%v", s.roomID, err)
		}
	}
	s.closeRoom()
	s.publish()
}

// closeRoom moves the session to Left and stops listening to the room.
func (s *Session) closeRoom() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.loadGen++
	s.ready = false
	s.state = domain.StateLeft
}

func (s *Session) emitJoin() {
	if err := s.emit(wire.Authenticate{UserID: s.cfg.UserID}); err != nil {
		s.logf("authenticate emit failed room=%q err=%v", s.roomID, err)
		return
	}
	if err := s.emit(wire.JoinGroupChatRoom{ChatRoomID: s.roomID}); err != nil {
		s.logf("join emit failed room=%q err=%v", s.roomID, err)
	}
}

func (s *Session) emit(event wire.Outbound) error {
	return s.transport.Emit(s.runCtx, event)
}

func (s *Session) onTransportEvent(event wire.Event) {
	_ = s.post(context.Background(), func() { s.handleEvent(event) })
}

func (s *Session) handleEvent(event wire.Event) {
	switch e := event.(type) {
	case wire.Connected:
		s.onConnect()
		return
	case wire.Disconnected:
		s.onDisconnect(e.Reason)
		return
	}

	if s.state != domain.StateJoining && s.state != domain.StateJoined {
		return
	}
	if scoped, ok := event.(wire.RoomScoped); ok {
		if roomID := scoped.RoomID(); roomID != "" && roomID != s.roomID {
			s.logf("ignoring %s for room=%q current=%q", event.EventName(), roomID, s.roomID)
			return
		}
	}

	switch e := event.(type) {
	case wire.JoinedRoom:
		// A repeated ack while Joined would reload history over pending sends.
		if s.state != domain.StateJoining {
			s.logf("ignoring joinedRoom room=%q state=%s", s.roomID, s.state)
			return
		}
		s.startLoad()
	case wire.RoomDeleted:
		s.roomDeleted = true
		s.closeRoom()
		s.publish()
		s.notify(apperrors.CodeRoomDeleted, "room deleted", nil)
	case wire.NewMessage:
		outcome := s.reconciler.Confirm(e.Message)
		if outcome == ConfirmAppended && e.Message.TempID != "" {
			s.logf("confirm without pending match room=%q id=%q temp_id=%q", s.roomID, e.Message.ID, e.Message.TempID)
		}
		s.publish()
	case wire.UserJoinedRoom:
		s.reconciler.AddSystemNotice(s.printer.Sprintf("notice.user_joined", s.displayName(e.UserName)))
		s.publish()
		s.refreshMembership(e.EventName())
	case wire.UserLeftRoom:
		s.reconciler.AddSystemNotice(s.printer.Sprintf("notice.user_left", s.displayName(e.UserName)))
		s.publish()
		s.refreshMembership(e.EventName())
	case wire.UserOnline:
		if s.tracker.ApplyPresence(e.UserID, true) {
			s.publish()
		}
		s.refreshMembership(e.EventName())
	case wire.UserOffline:
		if s.tracker.ApplyPresence(e.UserID, false) {
			s.publish()
		}
		s.refreshMembership(e.EventName())
	case wire.ParticipantsUpdated:
		s.tracker.SetAll(e.Participants)
		s.publish()
	case wire.Authenticated:
		if !e.Success {
			s.notify(apperrors.CodeAuthRejected, "authenticate rejected", nil)
		}
	case wire.ServerError:
		s.notify(apperrors.CodeTransportError, e.Message, nil, e.Message)
	}
}

func (s *Session) onConnect() {
	if !s.conn.OnConnect() {
		return
	}
	if s.state == domain.StateJoined {
		// Re-enter Joining; results of a load started before the drop are stale.
		s.state = domain.StateJoining
		s.loadGen++
	}
	if s.state == domain.StateJoining {
		s.logf("connected, joining room=%q", s.roomID)
		s.emitJoin()
	}
	s.publish()
}

func (s *Session) onDisconnect(reason string) {
	if !s.conn.OnDisconnect() {
		return
	}
	pending := 0
	if s.reconciler != nil {
		pending = s.reconciler.PendingCount()
	}
	s.logf("disconnected room=%q state=%s pending=%d reason=%q", s.roomID, s.state, pending, reason)
	s.publish()
}

func (s *Session) displayName(name string) string {
	if name == "" {
		return s.printer.Sprintf("notice.someone")
	}
	return name
}

// startLoad fetches history and room detail off the loop and posts the
// result back tagged with the current load generation.
func (s *Session) startLoad() {
	s.loadGen++
	gen, roomID := s.loadGen, s.roomID
	s.spawn(func(ctx context.Context) {
		history, room, err := s.fetchRoomState(ctx, roomID)
		_ = s.post(ctx, func() { s.applyLoad(gen, history, room, err) })
	})
}

func (s *Session) fetchRoomState(ctx context.Context, roomID string) ([]domain.Message, domain.Room, error) {
	var (
		history []domain.Message
		room    domain.Room
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.loader.FetchHistory(gctx, roomID)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		room, err = s.loader.FetchRoom(gctx, roomID)
		if err != nil {
			return fmt.Errorf("fetch room: %w", err)
		}
		return nil
	})
	err := g.Wait()
	return history, room, err
}

func (s *Session) applyLoad(gen uint64, history []domain.Message, room domain.Room, err error) {
	if gen != s.loadGen || (s.state != domain.StateJoining && s.state != domain.StateJoined) {
		return
	}
	if err != nil {
		s.logf("join load failed room=%q err=%v", s.roomID, err)
		s.notify(apperrors.CodeJoinFetchFailed, "load room", err)
		return
	}
	s.reconciler.LoadHistory(history)
	s.tracker.SetAll(room.Participants)
	s.state = domain.StateJoined
	s.ready = true
	s.logf("joined room=%q messages=%d participants=%d online=%d", s.roomID, s.reconciler.Len(), s.tracker.Count(), s.tracker.OnlineCount())
	s.publish()
}

// refreshMembership refetches the roster. At most one fetch runs at a time;
// a request arriving while one is in flight is replayed once it lands, since
// the running fetch may predate the change that triggered the request.
func (s *Session) refreshMembership(reason string) {
	if s.state != domain.StateJoined {
		return
	}
	if s.refreshing {
		s.refreshDirty = true
		return
	}
	s.refreshing = true
	gen, roomID := s.loadGen, s.roomID
	s.spawn(func(ctx context.Context) {
		room, err := s.loader.FetchRoom(ctx, roomID)
		_ = s.post(ctx, func() { s.applyRefresh(gen, reason, room, err) })
	})
}

func (s *Session) applyRefresh(gen uint64, reason string, room domain.Room, err error) {
	s.refreshing = false
	defer func() {
		if s.refreshDirty {
			s.refreshDirty = false
			s.refreshMembership("replay")
		}
	}()
	if gen != s.loadGen || s.state != domain.StateJoined {
		return
	}
	if err != nil {
		s.logf("membership refresh failed room=%q reason=%s err=%v", s.roomID, reason, err)
		return
	}
	s.tracker.SetAll(room.Participants)
	s.publish()
}

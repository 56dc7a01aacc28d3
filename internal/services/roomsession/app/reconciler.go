package app

import (
	"sort"
	"time"

	"github.com/louisbranch/roomsync/internal/platform/id"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
)

// Confirmation reports how Confirm merged a server message.
type Confirmation int

const (
	// ConfirmDuplicate means an entry with the same server id was refreshed.
	ConfirmDuplicate Confirmation = iota
	// ConfirmByTempID means a pending entry with the echoed temp id was replaced.
	ConfirmByTempID
	// ConfirmByContent means a pending entry from the same sender with the
	// same content was replaced.
	ConfirmByContent
	// ConfirmAppended means the message was new and appended.
	ConfirmAppended
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmDuplicate:
		return "duplicate"
	case ConfirmByTempID:
		return "temp_id"
	case ConfirmByContent:
		return "content"
	case ConfirmAppended:
		return "appended"
	default:
		return "unknown"
	}
}

// Reconciler keeps one room's timeline.
//
// Entries are only appended or replaced in place; LoadHistory is the one
// operation that reorders, and it replaces the whole timeline. A Reconciler
// is not safe for concurrent use.
type Reconciler struct {
	roomID   string
	messages []domain.Message
	newID    func() string
	now      func() time.Time
}

// NewReconciler returns an empty timeline for roomID. A nil newID or now
// falls back to id.MustNewID and time.Now.
func NewReconciler(roomID string, newID func() string, now func() time.Time) *Reconciler {
	if newID == nil {
		newID = id.MustNewID
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{roomID: roomID, newID: newID, now: now}
}

// RoomID returns the room this timeline belongs to.
func (r *Reconciler) RoomID() string {
	return r.roomID
}

// LoadHistory replaces the timeline with messages ordered by CreatedAt.
// Pending entries are dropped.
func (r *Reconciler) LoadHistory(messages []domain.Message) {
	loaded := make([]domain.Message, len(messages))
	copy(loaded, messages)
	for i := range loaded {
		loaded[i].Pending = false
		if loaded[i].RoomID == "" {
			loaded[i].RoomID = r.roomID
		}
	}
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
	})
	r.messages = loaded
}

// AddPending appends an unconfirmed text message and returns its temp id.
func (r *Reconciler) AddPending(content, senderID string, sender domain.SenderMeta) string {
	tempID := r.newID()
	r.messages = append(r.messages, domain.Message{
		ID:                tempID,
		TempID:            tempID,
		RoomID:            r.roomID,
		SenderID:          senderID,
		SenderDisplayName: sender.DisplayName,
		SenderAvatarRef:   sender.AvatarRef,
		Content:           content,
		Kind:              domain.KindText,
		CreatedAt:         r.now(),
		Pending:           true,
	})
	return tempID
}

// Confirm merges a server message into the timeline. Matching is tried in
// order: same server id, pending with the same temp id, pending with the same
// sender and content. Anything unmatched is appended.
func (r *Reconciler) Confirm(msg domain.Message) Confirmation {
	msg.Pending = false
	if msg.RoomID == "" {
		msg.RoomID = r.roomID
	}
	if msg.Kind == "" {
		msg.Kind = domain.KindText
	}

	for i := range r.messages {
		if msg.ID != "" && !r.messages[i].Pending && r.messages[i].ID == msg.ID {
			if msg.TempID == "" {
				msg.TempID = r.messages[i].TempID
			}
			r.messages[i] = msg
			return ConfirmDuplicate
		}
	}
	if msg.TempID != "" {
		for i := range r.messages {
			if r.messages[i].Pending && r.messages[i].TempID == msg.TempID {
				r.messages[i] = msg
				return ConfirmByTempID
			}
		}
	}
	for i := range r.messages {
		m := r.messages[i]
		if m.Pending && m.SenderID == msg.SenderID && m.Content == msg.Content {
			msg.TempID = m.TempID
			r.messages[i] = msg
			return ConfirmByContent
		}
	}
	r.messages = append(r.messages, msg)
	return ConfirmAppended
}

// AddSystemNotice appends a locally generated notice. Notices are never
// matched by Confirm.
func (r *Reconciler) AddSystemNotice(text string) domain.Message {
	notice := domain.Message{
		ID:        "system-" + r.newID(),
		RoomID:    r.roomID,
		Content:   text,
		Kind:      domain.KindSystem,
		CreatedAt: r.now(),
	}
	r.messages = append(r.messages, notice)
	return notice
}

// Snapshot returns a copy of the timeline in order.
func (r *Reconciler) Snapshot() []domain.Message {
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the number of timeline entries.
func (r *Reconciler) Len() int {
	return len(r.messages)
}

// PendingCount returns the number of unconfirmed sends.
func (r *Reconciler) PendingCount() int {
	n := 0
	for _, m := range r.messages {
		if m.Pending {
			n++
		}
	}
	return n
}

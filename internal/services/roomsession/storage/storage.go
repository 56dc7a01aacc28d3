// Package storage defines the transcript archive contract for room sessions.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
)

// RoomSummary describes one archived room.
type RoomSummary struct {
	RoomID        string
	MessageCount  int
	LastMessageAt time.Time
}

// TranscriptStore persists confirmed messages per room.
type TranscriptStore interface {
	// SaveMessages upserts the server-confirmed messages of roomID. Pending
	// messages and local notices are skipped. It returns how many rows were
	// written.
	SaveMessages(ctx context.Context, roomID string, messages []domain.Message) (int, error)
	// RecentMessages returns up to limit of the newest archived messages of
	// roomID, oldest first.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	// ListRooms lists archived rooms, most recently active first.
	ListRooms(ctx context.Context) ([]RoomSummary, error)
}

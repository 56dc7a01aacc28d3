// Package sqlite archives room transcripts in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	sqlitemigrate "github.com/louisbranch/roomsync/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/storage"
	"github.com/louisbranch/roomsync/internal/services/roomsession/storage/sqlite/migrations"
)

var errNotConfigured = errors.New("storage is not configured")

// Store provides SQLite-backed transcript persistence.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.TranscriptStore = (*Store)(nil)

// Open opens the transcript database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveMessages upserts the server-confirmed messages of roomID.
func (s *Store) SaveMessages(ctx context.Context, roomID string, messages []domain.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, errNotConfigured
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return 0, errors.New("room id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save messages: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO transcript_messages (
	id,
	room_id,
	sender_id,
	sender_name,
	sender_avatar,
	content,
	kind,
	created_at,
	archived_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(room_id, id) DO UPDATE SET
	sender_name = excluded.sender_name,
	sender_avatar = excluded.sender_avatar,
	content = excluded.content,
	kind = excluded.kind,
	created_at = excluded.created_at
`)
	if err != nil {
		return 0, fmt.Errorf("prepare save messages: %w", err)
	}
	defer stmt.Close()

	archivedAt := s.now().UTC().UnixMilli()
	written := 0
	for _, msg := range messages {
		if msg.Pending || msg.ID == "" || msg.SenderID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			msg.ID,
			roomID,
			msg.SenderID,
			msg.SenderDisplayName,
			msg.SenderAvatarRef,
			msg.Content,
			string(msg.Kind),
			msg.CreatedAt.UTC().UnixMilli(),
			archivedAt,
		); err != nil {
			return 0, fmt.Errorf("save message %s: %w", msg.ID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save messages: %w", err)
	}
	return written, nil
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, errNotConfigured
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, sender_id, sender_name, sender_avatar, content, kind, created_at
FROM (
	SELECT id, sender_id, sender_name, sender_avatar, content, kind, created_at
	FROM transcript_messages
	WHERE room_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?
)
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(roomID), limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0, limit)
	for rows.Next() {
		var (
			msg       domain.Message
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderDisplayName, &msg.SenderAvatarRef, &msg.Content, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.RoomID = roomID
		msg.Kind = domain.MessageKind(kind)
		msg.CreatedAt = time.UnixMilli(createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// ListRooms lists archived rooms, most recently active first.
func (s *Store) ListRooms(ctx context.Context) ([]storage.RoomSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, errNotConfigured
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT room_id, COUNT(*), MAX(created_at)
FROM transcript_messages
GROUP BY room_id
ORDER BY MAX(created_at) DESC, room_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []storage.RoomSummary
	for rows.Next() {
		var (
			room   storage.RoomSummary
			lastAt int64
		)
		if err := rows.Scan(&room.RoomID, &room.MessageCount, &lastAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.LastMessageAt = time.UnixMilli(lastAt).UTC()
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

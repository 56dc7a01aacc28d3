// Package replay prints archived room transcripts.
package replay

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/roomsync/internal/cmd/roomsync"
	entrypoint "github.com/louisbranch/roomsync/internal/platform/cmd"
	"github.com/louisbranch/roomsync/internal/services/roomsession/storage/sqlite"
)

// Config holds replay command configuration. Env names carry the ROOMSYNC_
// prefix.
type Config struct {
	TranscriptPath string `env:"TRANSCRIPT_DB"`
	RoomID         string `env:"ROOM_ID"`
	Limit          int    `env:"REPLAY_LIMIT" envDefault:"50"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.ParseConfig(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.TranscriptPath, "transcript-db", cfg.TranscriptPath, "SQLite transcript path")
		fs.StringVar(&cfg.RoomID, "room", cfg.RoomID, "room to print (empty lists archived rooms)")
		fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "newest messages to print")
	})
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.TranscriptPath) == "" {
		return Config{}, errors.New("transcript path is required (-transcript-db or ROOMSYNC_TRANSCRIPT_DB)")
	}
	if cfg.Limit <= 0 {
		return Config{}, errors.New("limit must be greater than zero")
	}
	return cfg, nil
}

// Run prints the transcript of cfg.RoomID, or the archived rooms when no
// room is set.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplay, func(ctx context.Context) error {
		store, err := sqlite.Open(ctx, cfg.TranscriptPath)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer store.Close()

		roomID := strings.TrimSpace(cfg.RoomID)
		if roomID == "" {
			rooms, err := store.ListRooms(ctx)
			if err != nil {
				return err
			}
			for _, room := range rooms {
				if _, err := fmt.Fprintf(out, "%s\t%d messages\tlast %s\n",
					room.RoomID, room.MessageCount, room.LastMessageAt.Local().Format("2006-01-02 15:04")); err != nil {
					return err
				}
			}
			return nil
		}

		messages, err := store.RecentMessages(ctx, roomID, cfg.Limit)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if _, err := fmt.Fprintln(out, roomsync.FormatMessage(msg)); err != nil {
				return err
			}
		}
		return nil
	})
}

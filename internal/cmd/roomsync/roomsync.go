// Package roomsync parses client flags and composes the terminal room client.
package roomsync

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	entrypoint "github.com/louisbranch/roomsync/internal/platform/cmd"
	"github.com/louisbranch/roomsync/internal/services/roomsession/app"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/roomapi"
	"github.com/louisbranch/roomsync/internal/services/roomsession/storage"
	"github.com/louisbranch/roomsync/internal/services/roomsession/storage/sqlite"
	"github.com/louisbranch/roomsync/internal/services/roomsession/transport"
)

// Config holds client command configuration.
type Config struct {
	SocketURL        string        `env:"SOCKET_URL"        envDefault:"ws://localhost:8080/socket"`
	APIURL           string        `env:"API_URL"           envDefault:"http://localhost:8080/api"`
	Token            string        `env:"TOKEN"`
	UserID           string        `env:"USER_ID"`
	DisplayName      string        `env:"DISPLAY_NAME"`
	AvatarRef        string        `env:"AVATAR"`
	Locale           string        `env:"LOCALE"            envDefault:"en-US"`
	RoomID           string        `env:"ROOM_ID"`
	TranscriptPath   string        `env:"TRANSCRIPT_DB"`
	HistoryLimit     int           `env:"HISTORY_LIMIT"     envDefault:"20"`
	RefreshInterval  time.Duration `env:"REFRESH_INTERVAL"  envDefault:"30s"`
	ReconnectInitial time.Duration `env:"RECONNECT_INITIAL" envDefault:"500ms"`
	ReconnectMax     time.Duration `env:"RECONNECT_MAX"     envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.SocketURL, "socket-url", cfg.SocketURL, "chat websocket URL")
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "chat REST API base URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer token for the chat server")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "local user id")
	fs.StringVar(&cfg.DisplayName, "name", cfg.DisplayName, "display name shown on optimistic messages")
	fs.StringVar(&cfg.AvatarRef, "avatar", cfg.AvatarRef, "avatar reference shown on optimistic messages")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for system notices")
	fs.StringVar(&cfg.RoomID, "room", cfg.RoomID, "room id to join")
	fs.StringVar(&cfg.TranscriptPath, "transcript-db", cfg.TranscriptPath, "SQLite transcript path (empty disables archiving)")
	fs.IntVar(&cfg.HistoryLimit, "history", cfg.HistoryLimit, "archived messages printed on startup")
	fs.DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "roster refresh interval (0 disables)")
	fs.DurationVar(&cfg.ReconnectInitial, "reconnect-initial", cfg.ReconnectInitial, "initial reconnect delay")
	fs.DurationVar(&cfg.ReconnectMax, "reconnect-max", cfg.ReconnectMax, "maximum reconnect delay")
}

func (c Config) validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user id is required (-user or ROOMSYNC_USER_ID)")
	}
	if strings.TrimSpace(c.RoomID) == "" {
		return errors.New("room id is required (-room or ROOMSYNC_ROOM_ID)")
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}
	if c.HistoryLimit < 0 {
		return errors.New("history limit must not be negative")
	}
	return nil
}

// Run joins the configured room and bridges it to stdin and stdout until the
// room is left, deleted, or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, func(ctx context.Context) error {
		return runClient(ctx, cfg, os.Stdin, os.Stdout)
	})
}

type runner interface {
	Run(ctx context.Context) error
}

func runClient(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	socket, err := transport.New(transport.Config{
		URL:            cfg.SocketURL,
		Token:          cfg.Token,
		InitialBackoff: cfg.ReconnectInitial,
		MaxBackoff:     cfg.ReconnectMax,
	})
	if err != nil {
		return fmt.Errorf("configure socket: %w", err)
	}
	api, err := roomapi.NewClient(cfg.APIURL, cfg.Token, nil)
	if err != nil {
		return fmt.Errorf("configure room api: %w", err)
	}

	var archive storage.TranscriptStore
	if path := strings.TrimSpace(cfg.TranscriptPath); path != "" {
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer store.Close()
		archive = store
	}

	session, err := app.NewSession(socket, api, app.Config{
		UserID:          cfg.UserID,
		Sender:          domain.SenderMeta{DisplayName: cfg.DisplayName, AvatarRef: cfg.AvatarRef},
		Locale:          cfg.Locale,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err != nil {
		return fmt.Errorf("configure session: %w", err)
	}

	c := newConsole(session, archive, out)
	if archive != nil && cfg.HistoryLimit > 0 {
		if err := c.printArchived(ctx, cfg.RoomID, cfg.HistoryLimit); err != nil {
			return err
		}
	}
	return runSession(ctx, socket, session, c, in, cfg.RoomID)
}

// runSession runs the socket, the session, the renderer and the input loop
// until one of them ends the session or fails.
func runSession(ctx context.Context, socket runner, session *app.Session, c *console, in io.Reader, roomID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return socket.Run(gctx) })
	g.Go(func() error { return c.render(gctx) })
	g.Go(func() error { return c.readInput(gctx, in) })
	g.Go(func() error {
		if err := session.Join(gctx, roomID); err != nil && gctx.Err() == nil {
			return fmt.Errorf("join room: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errSessionEnded) {
		return nil
	}
	return err
}

package roomsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/louisbranch/roomsync/internal/services/roomsession/app"
	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
	"github.com/louisbranch/roomsync/internal/services/roomsession/storage"
)

// errSessionEnded stops the run group once the session reached a terminal
// state.
var errSessionEnded = errors.New("session ended")

const (
	commandLeave = "/leave"
	commandWho   = "/who"
)

// console renders session views as text lines and turns input lines into
// session commands.
type console struct {
	session *app.Session
	archive storage.TranscriptStore

	outMu sync.Mutex
	out   io.Writer

	joined     chan struct{}
	joinedOnce sync.Once

	// Owned by render.
	printed          map[string]bool
	lastState        domain.SessionState
	lastDisconnected bool
	lastRoster       string
	archivedCount    int
}

func newConsole(session *app.Session, archive storage.TranscriptStore, out io.Writer) *console {
	return &console{
		session:          session,
		archive:          archive,
		out:              out,
		joined:           make(chan struct{}),
		printed:          map[string]bool{},
		lastDisconnected: true,
	}
}

// FormatMessage renders one timeline entry as a line.
func FormatMessage(msg domain.Message) string {
	stamp := msg.CreatedAt.Local().Format("15:04")
	if msg.Kind == domain.KindSystem {
		return fmt.Sprintf("[%s] * %s", stamp, msg.Content)
	}
	name := msg.SenderDisplayName
	if name == "" {
		name = msg.SenderID
	}
	line := fmt.Sprintf("[%s] %s: %s", stamp, name, msg.Content)
	if msg.Pending {
		line += " (sending)"
	}
	return line
}

func formatRoster(participants []domain.Participant) string {
	online := make([]string, 0, len(participants))
	for _, p := range participants {
		if !p.IsOnline {
			continue
		}
		name := p.DisplayName
		if name == "" {
			name = p.ID
		}
		online = append(online, name)
	}
	sort.Strings(online)
	return fmt.Sprintf("online (%d/%d): %s", len(online), len(participants), strings.Join(online, ", "))
}

func pendingKey(tempID string) string {
	return "pending:" + tempID
}

func (c *console) println(line string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		log.Printf("roomsync: write output: %v", err)
	}
}

// printArchived prints the tail of the local transcript and marks those
// messages as already shown.
func (c *console) printArchived(ctx context.Context, roomID string, limit int) error {
	messages, err := c.archive.RecentMessages(ctx, roomID, limit)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}
	c.println(fmt.Sprintf("-- %d archived messages --", len(messages)))
	for _, msg := range messages {
		c.printed[msg.ID] = true
		c.println(FormatMessage(msg))
	}
	c.println("--")
	return nil
}

// render prints changes until the session ends or ctx is cancelled.
func (c *console) render(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.session.Updates():
			if err := c.refresh(ctx); err != nil {
				return err
			}
		case n := <-c.session.Notices():
			c.println("! " + n.Text)
			if n.Fatal() {
				return errSessionEnded
			}
		}
	}
}

func (c *console) refresh(ctx context.Context) error {
	return c.renderView(ctx, c.session.View())
}

// renderView prints what changed since the last view. Pending sends are
// printed once as "(sending)" and again when the server confirms them.
func (c *console) renderView(ctx context.Context, view app.View) error {
	status := view.Status

	if status.State != c.lastState {
		c.lastState = status.State
		c.println(fmt.Sprintf("* %s %s", status.State, status.RoomID))
	}
	if status.Disconnected != c.lastDisconnected {
		c.lastDisconnected = status.Disconnected
		if status.Disconnected {
			c.println("* connection lost, reconnecting")
		} else {
			c.println("* connected")
		}
	}
	if status.Ready {
		c.joinedOnce.Do(func() { close(c.joined) })
	}

	confirmed := 0
	for _, msg := range view.Messages {
		if msg.Pending {
			key := pendingKey(msg.TempID)
			if !c.printed[key] {
				c.printed[key] = true
				c.println(FormatMessage(msg))
			}
			continue
		}
		confirmed++
		if c.printed[msg.ID] {
			continue
		}
		c.printed[msg.ID] = true
		c.println(FormatMessage(msg))
	}

	if status.Ready {
		if roster := formatRoster(view.Participants); roster != c.lastRoster {
			c.lastRoster = roster
			c.println("* " + roster)
		}
	}

	if c.archive != nil && confirmed != c.archivedCount && status.RoomID != "" {
		if _, err := c.archive.SaveMessages(ctx, status.RoomID, view.Messages); err != nil {
			log.Printf("roomsync: archive room=%q: %v", status.RoomID, err)
		} else {
			c.archivedCount = confirmed
		}
	}

	if status.State == domain.StateLeft {
		if status.RoomDeleted {
			// The fatal notice follows and ends the render loop.
			return nil
		}
		return errSessionEnded
	}
	return nil
}

// readInput waits for the first successful join, then turns each input line
// into a send or a command. EOF stops reading without leaving the room.
func (c *console) readInput(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("roomsync: read input: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-c.joined:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (c *console) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil
	case commandLeave:
		if err := c.session.Leave(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, app.ErrSessionStopped) {
			return fmt.Errorf("leave: %w", err)
		}
		return nil
	case commandWho:
		c.println("* " + formatRoster(c.session.View().Participants))
		return nil
	}

	_, err := c.session.Send(ctx, line)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNotReady):
		c.println("! not connected, message not sent")
	case errors.Is(err, app.ErrContentTooLong):
		c.println("! message too long, not sent")
	case errors.Is(err, app.ErrEmitFailed):
		c.println("! send failed, message left pending")
	case errors.Is(err, app.ErrSessionClosed), errors.Is(err, app.ErrSessionStopped):
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newTestReconciler() *Reconciler {
	return NewReconciler("r1", sequentialIDs("t"), fixedClock(t0))
}

func ids(messages []domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func assertIDs(t *testing.T, messages []domain.Message, want ...string) {
	t.Helper()
	got := ids(messages)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestConfirmByTempIDLeavesOneMessage(t *testing.T) {
	r := newTestReconciler()
	tempID := r.AddPending("hello", "u1", domain.SenderMeta{DisplayName: "Ana"})

	outcome := r.Confirm(domain.Message{ID: "s1", TempID: tempID, SenderID: "u1", Content: "hello", CreatedAt: t0})
	if outcome != ConfirmByTempID {
		t.Fatalf("outcome = %v, want %v", outcome, ConfirmByTempID)
	}
	snap := r.Snapshot()
	assertIDs(t, snap, "s1")
	if snap[0].Pending {
		t.Fatal("expected confirmed message to not be pending")
	}
	if snap[0].RoomID != "r1" {
		t.Fatalf("room id = %q, want %q", snap[0].RoomID, "r1")
	}
}

func TestConfirmFallsBackToSenderAndContent(t *testing.T) {
	r := newTestReconciler()
	tempID := r.AddPending("hi", "U", domain.SenderMeta{})

	outcome := r.Confirm(domain.Message{ID: "s1", SenderID: "U", Content: "hi"})
	if outcome != ConfirmByContent {
		t.Fatalf("outcome = %v, want %v", outcome, ConfirmByContent)
	}
	snap := r.Snapshot()
	assertIDs(t, snap, "s1")
	if snap[0].Pending {
		t.Fatal("expected pending=false")
	}
	if snap[0].TempID != tempID {
		t.Fatalf("temp id = %q, want %q", snap[0].TempID, tempID)
	}
}

func TestConfirmContentFallbackIgnoresOtherSenders(t *testing.T) {
	r := newTestReconciler()
	r.AddPending("hi", "U", domain.SenderMeta{})

	if outcome := r.Confirm(domain.Message{ID: "s1", SenderID: "V", Content: "hi"}); outcome != ConfirmAppended {
		t.Fatalf("outcome = %v, want %v", outcome, ConfirmAppended)
	}
	if got := r.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
}

func TestConfirmIsIdempotentByServerID(t *testing.T) {
	r := newTestReconciler()
	msg := domain.Message{ID: "s1", SenderID: "u2", Content: "yo", CreatedAt: t0}

	if outcome := r.Confirm(msg); outcome != ConfirmAppended {
		t.Fatalf("first outcome = %v, want %v", outcome, ConfirmAppended)
	}
	assertIDs(t, r.Snapshot(), "s1")
	if outcome := r.Confirm(msg); outcome != ConfirmDuplicate {
		t.Fatalf("second outcome = %v, want %v", outcome, ConfirmDuplicate)
	}
	assertIDs(t, r.Snapshot(), "s1")
}

func TestConfirmDuplicateAfterTempIDMatch(t *testing.T) {
	r := newTestReconciler()
	tempID := r.AddPending("hello", "u1", domain.SenderMeta{})
	msg := domain.Message{ID: "s1", TempID: tempID, SenderID: "u1", Content: "hello"}

	r.Confirm(msg)
	r.Confirm(msg)
	assertIDs(t, r.Snapshot(), "s1")
}

func TestConfirmPrefersTempIDOverContent(t *testing.T) {
	r := newTestReconciler()
	first := r.AddPending("same", "u1", domain.SenderMeta{})
	second := r.AddPending("same", "u1", domain.SenderMeta{})

	r.Confirm(domain.Message{ID: "s2", TempID: second, SenderID: "u1", Content: "same"})
	snap := r.Snapshot()
	assertIDs(t, snap, first, "s2")
	if !snap[0].Pending {
		t.Fatal("expected first send to remain pending")
	}
}

func TestLoadHistoryClearsPendingAndSorts(t *testing.T) {
	r := newTestReconciler()
	r.AddPending("x", "u1", domain.SenderMeta{})

	r.LoadHistory([]domain.Message{
		{ID: "m2", Content: "b", CreatedAt: t0.Add(2 * time.Minute)},
		{ID: "m0", Content: "z", CreatedAt: t0},
		{ID: "m1", Content: "a", CreatedAt: t0.Add(time.Minute)},
	})
	snap := r.Snapshot()
	assertIDs(t, snap, "m0", "m1", "m2")
	for _, m := range snap {
		if m.Pending {
			t.Fatalf("unexpected pending entry %q", m.ID)
		}
	}
}

func TestLoadHistoryCopiesInput(t *testing.T) {
	r := newTestReconciler()
	history := []domain.Message{{ID: "m1", CreatedAt: t0.Add(time.Minute)}, {ID: "m0", CreatedAt: t0}}
	r.LoadHistory(history)
	if history[0].ID != "m1" {
		t.Fatal("expected caller slice to be left untouched")
	}
}

func TestAppendsNeverReorderPrefix(t *testing.T) {
	r := newTestReconciler()
	r.LoadHistory([]domain.Message{
		{ID: "m1", CreatedAt: t0.Add(time.Hour)},
		{ID: "m0", CreatedAt: t0},
	})

	tempID := r.AddPending("late", "u1", domain.SenderMeta{})
	// Server timestamp earlier than history must not move the message.
	r.Confirm(domain.Message{ID: "old", SenderID: "u2", Content: "past", CreatedAt: t0.Add(-time.Hour)})
	notice := r.AddSystemNotice("Bo joined the room")

	assertIDs(t, r.Snapshot(), "m0", "m1", tempID, "old", notice.ID)
}

func TestSystemNoticesAreNeverConfirmed(t *testing.T) {
	r := newTestReconciler()
	notice := r.AddSystemNotice("Bo joined the room")
	if notice.Kind != domain.KindSystem {
		t.Fatalf("kind = %q, want %q", notice.Kind, domain.KindSystem)
	}

	r.Confirm(domain.Message{ID: "s1", SenderID: "", Content: "Bo joined the room"})
	assertIDs(t, r.Snapshot(), notice.ID, "s1")
}

func TestSnapshotIsACopy(t *testing.T) {
	r := newTestReconciler()
	r.AddSystemNotice("x")
	snap := r.Snapshot()
	snap[0].Content = "mutated"
	if r.Snapshot()[0].Content != "x" {
		t.Fatal("expected snapshot to be detached from the timeline")
	}
}

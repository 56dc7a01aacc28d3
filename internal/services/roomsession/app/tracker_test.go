package app

import (
	"reflect"
	"testing"

	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
)

func TestTrackerSetAllReplacesRoster(t *testing.T) {
	tr := NewTracker()
	tr.SetAll([]domain.Participant{{ID: "u1"}, {ID: "u2"}})
	tr.SetAll([]domain.Participant{{ID: "u3", DisplayName: "Cy"}})

	want := []domain.Participant{{ID: "u3", DisplayName: "Cy"}}
	if got := tr.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %+v, want %+v", got, want)
	}
	if tr.ApplyPresence("u1", true) {
		t.Fatal("expected replaced participant to be unknown")
	}
}

func TestTrackerSetAllCollapsesDuplicates(t *testing.T) {
	tr := NewTracker()
	tr.SetAll([]domain.Participant{{ID: "u1", DisplayName: "first"}, {ID: "u1", DisplayName: "second"}})
	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1", tr.Count())
	}
	if got := tr.Snapshot()[0].DisplayName; got != "first" {
		t.Fatalf("display name = %q, want %q", got, "first")
	}
}

func TestTrackerPresenceIgnoresUnknownUser(t *testing.T) {
	tr := NewTracker()
	tr.SetAll([]domain.Participant{{ID: "u1"}})
	before := tr.Snapshot()

	if tr.ApplyPresence("ghost", true) {
		t.Fatal("expected unknown user to be a no-op")
	}
	if got := tr.Snapshot(); !reflect.DeepEqual(got, before) {
		t.Fatalf("snapshot = %+v, want %+v", got, before)
	}
}

func TestTrackerPresencePatchesKnownUser(t *testing.T) {
	tr := NewTracker()
	tr.SetAll([]domain.Participant{{ID: "u1"}, {ID: "u2", IsOnline: true}})

	if !tr.ApplyPresence("u1", true) {
		t.Fatal("expected presence change")
	}
	if tr.ApplyPresence("u1", true) {
		t.Fatal("expected repeated presence to be a no-op")
	}
	if got := tr.OnlineCount(); got != 2 {
		t.Fatalf("online = %d, want 2", got)
	}
	if !tr.ApplyPresence("u2", false) {
		t.Fatal("expected offline change")
	}
	if got := tr.OnlineCount(); got != 1 {
		t.Fatalf("online = %d, want 1", got)
	}
}

func TestTrackerZeroRoster(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 || len(tr.Snapshot()) != 0 {
		t.Fatal("expected empty roster")
	}
	if tr.ApplyPresence("u1", true) {
		t.Fatal("expected no-op on empty roster")
	}
}

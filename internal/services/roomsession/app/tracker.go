package app

import "github.com/louisbranch/roomsync/internal/services/roomsession/domain"

// Tracker holds a room roster. The roster is only ever replaced wholesale
// from an authoritative source; presence patches touch existing entries.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	participants []domain.Participant
	index        map[string]int
}

// NewTracker returns an empty roster.
func NewTracker() *Tracker {
	return &Tracker{index: map[string]int{}}
}

// SetAll replaces the roster. Later duplicates of an id are dropped.
func (t *Tracker) SetAll(participants []domain.Participant) {
	t.participants = make([]domain.Participant, 0, len(participants))
	t.index = make(map[string]int, len(participants))
	for _, p := range participants {
		if _, ok := t.index[p.ID]; ok {
			continue
		}
		t.index[p.ID] = len(t.participants)
		t.participants = append(t.participants, p)
	}
}

// ApplyPresence sets the online flag of a known participant and reports
// whether the roster changed. Unknown users are ignored.
func (t *Tracker) ApplyPresence(userID string, online bool) bool {
	i, ok := t.index[userID]
	if !ok || t.participants[i].IsOnline == online {
		return false
	}
	t.participants[i].IsOnline = online
	return true
}

// Count returns the roster size.
func (t *Tracker) Count() int {
	return len(t.participants)
}

// OnlineCount returns how many participants are online.
func (t *Tracker) OnlineCount() int {
	n := 0
	for _, p := range t.participants {
		if p.IsOnline {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the roster.
func (t *Tracker) Snapshot() []domain.Participant {
	out := make([]domain.Participant, len(t.participants))
	copy(out, t.participants)
	return out
}

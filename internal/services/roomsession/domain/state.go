package domain

// SessionState is the lifecycle position of a room session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateJoining
	StateJoined
	StateLeaving
	StateLeft
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Status is the session state together with the orthogonal connectivity flag.
type Status struct {
	State        SessionState
	RoomID       string
	Disconnected bool
	// Ready is true once history and roster for the current join are loaded.
	Ready bool
	// RoomDeleted is set when the server deleted the room; the session is Left.
	RoomDeleted bool
}

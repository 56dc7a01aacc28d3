package domain

// Participant is one member of a room roster.
type Participant struct {
	ID          string
	DisplayName string
	AvatarRef   string
	IsOnline    bool
}

// Room is the room detail returned by the backend on join.
type Room struct {
	ID           string
	Name         string
	Participants []Participant
}

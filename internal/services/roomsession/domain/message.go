// Package domain holds the value types shared by the room session, its wire
// codec and its storage.
package domain

import "time"

// MessageKind distinguishes user text from locally generated notices.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindSystem MessageKind = "system"
)

// Message is one timeline entry.
//
// A pending message carries its TempID in ID until the server confirms it.
type Message struct {
	ID                string
	TempID            string
	RoomID            string
	SenderID          string
	SenderDisplayName string
	SenderAvatarRef   string
	Content           string
	Kind              MessageKind
	CreatedAt         time.Time
	Pending           bool
}

// SenderMeta is the presentation data attached to locally created messages.
type SenderMeta struct {
	DisplayName string
	AvatarRef   string
}

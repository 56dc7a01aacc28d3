// Package wire defines the realtime event schema exchanged with the chat
// server and the JSON codec for it.
//
// Event and field names are the compatibility contract with the server and
// must not be renamed.
package wire

import "github.com/louisbranch/roomsync/internal/services/roomsession/domain"

// Event names.
const (
	EventConnect             = "connect"
	EventDisconnect          = "disconnect"
	EventAuthenticate        = "authenticate"
	EventAuthenticated       = "authenticated"
	EventJoinGroupChatRoom   = "joinGroupChatRoom"
	EventJoinedRoom          = "joinedRoom"
	EventLeaveRoom           = "leaveRoom"
	EventRoomDeleted         = "roomDeleted"
	EventSendMessage         = "sendMessage"
	EventNewMessage          = "newMessage"
	EventUserJoinedRoom      = "userJoinedRoom"
	EventUserLeftRoom        = "userLeftRoom"
	EventUserOnline          = "userOnline"
	EventUserOffline         = "userOffline"
	EventParticipantsUpdated = "participantsUpdated"
	EventError               = "error"
)

// Event is an inbound event delivered by the transport. The set of
// implementations is closed.
type Event interface {
	EventName() string
	inbound()
}

// RoomScoped is implemented by events that may name the room they belong to.
// An empty RoomID means the event applies to the receiver's current room.
type RoomScoped interface {
	Event
	RoomID() string
}

// Connected is synthesized by the transport when the socket comes up.
type Connected struct{}

// Disconnected is synthesized by the transport when the socket drops.
type Disconnected struct {
	Reason string
}

// Authenticated reports the outcome of an authenticate request.
type Authenticated struct {
	Success bool
}

// JoinedRoom acknowledges joinGroupChatRoom.
type JoinedRoom struct {
	ChatRoomID string
}

// RoomDeleted tells members the room no longer exists.
type RoomDeleted struct {
	ChatRoomID string
}

// NewMessage carries one server-confirmed message. Message.TempID is set when
// the server echoes the client's temporary id.
type NewMessage struct {
	Message domain.Message
}

// UserJoinedRoom announces a member joining.
type UserJoinedRoom struct {
	ChatRoomID string
	UserName   string
}

// UserLeftRoom announces a member leaving.
type UserLeftRoom struct {
	ChatRoomID string
	UserName   string
}

// UserOnline reports a user coming online.
type UserOnline struct {
	ChatRoomID string
	UserID     string
}

// UserOffline reports a user going offline.
type UserOffline struct {
	ChatRoomID string
	UserID     string
}

// ParticipantsUpdated carries the authoritative roster.
type ParticipantsUpdated struct {
	ChatRoomID   string
	Participants []domain.Participant
}

// ServerError is an error reported by the server over the socket.
type ServerError struct {
	Message string
}

func (Connected) EventName() string           { return EventConnect }
func (Disconnected) EventName() string        { return EventDisconnect }
func (Authenticated) EventName() string       { return EventAuthenticated }
func (JoinedRoom) EventName() string          { return EventJoinedRoom }
func (RoomDeleted) EventName() string         { return EventRoomDeleted }
func (NewMessage) EventName() string          { return EventNewMessage }
func (UserJoinedRoom) EventName() string      { return EventUserJoinedRoom }
func (UserLeftRoom) EventName() string        { return EventUserLeftRoom }
func (UserOnline) EventName() string          { return EventUserOnline }
func (UserOffline) EventName() string         { return EventUserOffline }
func (ParticipantsUpdated) EventName() string { return EventParticipantsUpdated }
func (ServerError) EventName() string         { return EventError }

func (Connected) inbound()           {}
func (Disconnected) inbound()        {}
func (Authenticated) inbound()       {}
func (JoinedRoom) inbound()          {}
func (RoomDeleted) inbound()         {}
func (NewMessage) inbound()          {}
func (UserJoinedRoom) inbound()      {}
func (UserLeftRoom) inbound()        {}
func (UserOnline) inbound()          {}
func (UserOffline) inbound()         {}
func (ParticipantsUpdated) inbound() {}
func (ServerError) inbound()         {}

func (e JoinedRoom) RoomID() string          { return e.ChatRoomID }
func (e RoomDeleted) RoomID() string         { return e.ChatRoomID }
func (e NewMessage) RoomID() string          { return e.Message.RoomID }
func (e UserJoinedRoom) RoomID() string      { return e.ChatRoomID }
func (e UserLeftRoom) RoomID() string        { return e.ChatRoomID }
func (e UserOnline) RoomID() string          { return e.ChatRoomID }
func (e UserOffline) RoomID() string         { return e.ChatRoomID }
func (e ParticipantsUpdated) RoomID() string { return e.ChatRoomID }

// Outbound is an event the client emits.
type Outbound interface {
	EventName() string
}

// Authenticate binds the socket to a user.
type Authenticate struct {
	UserID string `json:"userId"`
}

// JoinGroupChatRoom asks to join a room.
type JoinGroupChatRoom struct {
	ChatRoomID string `json:"chatRoomId"`
}

// LeaveRoom tells the server the client left a room. There is no reply.
type LeaveRoom struct {
	ChatRoomID string `json:"chatRoomId"`
}

// SendMessage submits a message tagged with the client's temporary id.
type SendMessage struct {
	TempID      string `json:"tempId"`
	Content     string `json:"content"`
	ChatRoomID  string `json:"chatRoomId"`
	MessageType string `json:"messageType"`
}

func (Authenticate) EventName() string      { return EventAuthenticate }
func (JoinGroupChatRoom) EventName() string { return EventJoinGroupChatRoom }
func (LeaveRoom) EventName() string         { return EventLeaveRoom }
func (SendMessage) EventName() string       { return EventSendMessage }

package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/roomsync/internal/services/roomsession/domain"
)

// Message types carried in sendMessage and newMessage.
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

var (
	// ErrUnknownEvent indicates a frame type this client does not handle.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrReservedEvent indicates a frame that tried to spoof a
	// transport-synthesized event.
	ErrReservedEvent = errors.New("reserved event")
	// ErrInvalidPayload indicates a payload that failed schema validation.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Frame is the JSON envelope carried on the socket.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageRecord is the JSON shape of a chat message, shared by newMessage
// payloads and the REST history endpoint.
type MessageRecord struct {
	ID           string    `json:"id"`
	TempID       string    `json:"tempId,omitempty"`
	ChatRoomID   string    `json:"chatRoomId,omitempty"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName,omitempty"`
	SenderAvatar string    `json:"senderAvatar,omitempty"`
	Content      string    `json:"content"`
	MessageType  string    `json:"messageType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ParticipantRecord is the JSON shape of a room participant.
type ParticipantRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	IsOnline bool   `json:"isOnline"`
}

// RoomRecord is the JSON shape of the REST room detail.
type RoomRecord struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Participants []ParticipantRecord `json:"participants"`
}

// Validate checks the fields every confirmed message must carry.
func (r MessageRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidPayload)
	}
	if strings.TrimSpace(r.SenderID) == "" {
		return fmt.Errorf("%w: message senderId is required", ErrInvalidPayload)
	}
	return nil
}

// Domain converts the record to a confirmed domain message.
func (r MessageRecord) Domain() domain.Message {
	kind := domain.KindText
	if r.MessageType == MessageTypeSystem {
		kind = domain.KindSystem
	}
	return domain.Message{
		ID:                r.ID,
		TempID:            r.TempID,
		RoomID:            r.ChatRoomID,
		SenderID:          r.SenderID,
		SenderDisplayName: r.SenderName,
		SenderAvatarRef:   r.SenderAvatar,
		Content:           r.Content,
		Kind:              kind,
		CreatedAt:         r.CreatedAt,
	}
}

// Validate checks the participant carries an id.
func (r ParticipantRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: participant id is required", ErrInvalidPayload)
	}
	return nil
}

// Domain converts the record to a domain participant.
func (r ParticipantRecord) Domain() domain.Participant {
	return domain.Participant{
		ID:          r.ID,
		DisplayName: r.Name,
		AvatarRef:   r.Avatar,
		IsOnline:    r.IsOnline,
	}
}

// Participants validates and converts a roster.
func Participants(records []ParticipantRecord) ([]domain.Participant, error) {
	out := make([]domain.Participant, 0, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, err
		}
		out = append(out, record.Domain())
	}
	return out, nil
}

type roomPayload struct {
	ChatRoomID string `json:"chatRoomId"`
}

type userNamePayload struct {
	ChatRoomID string `json:"chatRoomId"`
	UserName   string `json:"userName"`
}

type userIDPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
}

type participantsPayload struct {
	ChatRoomID   string              `json:"chatRoomId"`
	Participants []ParticipantRecord `json:"participants"`
}

type authenticatedPayload struct {
	Success bool `json:"success"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Decode validates a frame and returns its typed event.
func Decode(frame Frame) (Event, error) {
	switch frame.Type {
	case EventConnect, EventDisconnect:
		return nil, fmt.Errorf("%w: %q", ErrReservedEvent, frame.Type)
	case EventAuthenticated:
		var p authenticatedPayload
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		return Authenticated{Success: p.Success}, nil
	case EventJoinedRoom, EventRoomDeleted:
		var p roomPayload
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		roomID := strings.TrimSpace(p.ChatRoomID)
		if roomID == "" {
			return nil, fmt.Errorf("%w: %s chatRoomId is required", ErrInvalidPayload, frame.Type)
		}
		if frame.Type == EventJoinedRoom {
			return JoinedRoom{ChatRoomID: roomID}, nil
		}
		return RoomDeleted{ChatRoomID: roomID}, nil
	case EventNewMessage:
		var p MessageRecord
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return NewMessage{Message: p.Domain()}, nil
	case EventUserJoinedRoom, EventUserLeftRoom:
		var p userNamePayload
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		name := strings.TrimSpace(p.UserName)
		if frame.Type == EventUserJoinedRoom {
			return UserJoinedRoom{ChatRoomID: p.ChatRoomID, UserName: name}, nil
		}
		return UserLeftRoom{ChatRoomID: p.ChatRoomID, UserName: name}, nil
	case EventUserOnline, EventUserOffline:
		var p userIDPayload
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		userID := strings.TrimSpace(p.UserID)
		if userID == "" {
			return nil, fmt.Errorf("%w: %s userId is required", ErrInvalidPayload, frame.Type)
		}
		if frame.Type == EventUserOnline {
			return UserOnline{ChatRoomID: p.ChatRoomID, UserID: userID}, nil
		}
		return UserOffline{ChatRoomID: p.ChatRoomID, UserID: userID}, nil
	case EventParticipantsUpdated:
		var p participantsPayload
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		if p.Participants == nil {
			return nil, fmt.Errorf("%w: participants is required", ErrInvalidPayload)
		}
		participants, err := Participants(p.Participants)
		if err != nil {
			return nil, err
		}
		return ParticipantsUpdated{ChatRoomID: p.ChatRoomID, Participants: participants}, nil
	case EventError:
		var p errorPayload
		if err := unmarshalPayload(frame, &p); err != nil {
			return nil, err
		}
		return ServerError{Message: p.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}
}

// Encode wraps an outbound event in a frame.
func Encode(event Outbound) (Frame, error) {
	if event == nil {
		return Frame{}, fmt.Errorf("%w: nil event", ErrInvalidPayload)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	return Frame{Type: event.EventName(), Payload: payload}, nil
}

func unmarshalPayload(frame Frame, target any) error {
	if len(frame.Payload) == 0 {
		return fmt.Errorf("%w: %s payload is required", ErrInvalidPayload, frame.Type)
	}
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, frame.Type, err)
	}
	return nil
}

package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/parley-chat/server/internal/domain"
)

// Wire event types. Events are flat JSON objects discriminated by "type".
const (
	TypeAdd        = "add"
	TypeUpdate     = "update"
	TypeAll        = "all"
	TypeDirectAdd  = "direct-add"
	TypeDirectAll  = "direct-all"
	TypePresence   = "presence"
	TypeTyping     = "typing"
	TypeSignal     = "signal"
	TypeRoomInvite = "room-invite"
)

var (
	errMalformed   = errors.New("malformed event")
	errUnknownType = errors.New("unknown event type")
)

// MessageEvent carries an add or update of a room message.
type MessageEvent struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Content     string `json:"content"`
	AuthorLabel string `json:"authorLabel"`
	Role        string `json:"role"`
}

// DirectAddEvent carries a new direct message.
type DirectAddEvent struct {
	Type            string    `json:"type"`
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	FromUserID      string    `json:"fromUserId"`
	ToUserID        string    `json:"toUserId"`
	FromDisplayName string    `json:"fromDisplayName"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (e DirectAddEvent) Message() domain.DirectMessage {
	return domain.DirectMessage{
		ID:              e.ID,
		Content:         e.Content,
		FromUserID:      e.FromUserID,
		ToUserID:        e.ToUserID,
		FromDisplayName: e.FromDisplayName,
		CreatedAt:       e.CreatedAt,
	}
}

type PresenceEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// TypingEvent and SignalEvent and RoomInviteEvent are relay-only: the hub
// forwards the raw frame without reading anything beyond the type tag. The
// structs document the wire shape for clients and tests.
type TypingEvent struct {
	Type       string `json:"type"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	IsTyping   bool   `json:"isTyping"`
}

type SignalEvent struct {
	Type       string `json:"type"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	SignalType string `json:"signalType"` // offer, answer, ice-candidate, call-end
	Payload    string `json:"payload"`    // opaque, never parsed server-side
}

type RoomInviteEvent struct {
	Type            string    `json:"type"`
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId"`
	RoomName        string    `json:"roomName"`
	FromUserID      string    `json:"fromUserId"`
	FromDisplayName string    `json:"fromDisplayName"`
	ToUserID        string    `json:"toUserId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Snapshot payloads pushed to a connection right after it joins.
type AllSnapshot struct {
	Type     string               `json:"type"`
	Messages []domain.RoomMessage `json:"messages"`
}

type DirectAllSnapshot struct {
	Type     string                 `json:"type"`
	Messages []domain.DirectMessage `json:"messages"`
}

// Event is the decoded form of one inbound frame: the type tag plus the
// typed payload for the stateful kinds. Relay-only kinds carry no decoded
// payload; the raw frame is what gets forwarded.
type Event struct {
	Type     string
	Message  *MessageEvent
	Direct   *DirectAddEvent
	Presence *PresenceEvent
}

// DecodeEvent parses a raw frame. It returns errMalformed when the frame is
// not JSON or a stateful kind misses its identity fields, and errUnknownType
// for tags outside the protocol. Relay-only payloads are not validated.
func DecodeEvent(raw []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Event{}, errMalformed
	}

	switch head.Type {
	case TypeAdd, TypeUpdate:
		var e MessageEvent
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" {
			return Event{}, errMalformed
		}
		return Event{Type: head.Type, Message: &e}, nil

	case TypeDirectAdd:
		var e DirectAddEvent
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" {
			return Event{}, errMalformed
		}
		return Event{Type: head.Type, Direct: &e}, nil

	case TypePresence:
		var e PresenceEvent
		if err := json.Unmarshal(raw, &e); err != nil || e.UserID == "" {
			return Event{}, errMalformed
		}
		return Event{Type: head.Type, Presence: &e}, nil

	case TypeTyping, TypeSignal, TypeRoomInvite:
		return Event{Type: head.Type}, nil

	default:
		return Event{}, errUnknownType
	}
}

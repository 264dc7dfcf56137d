package types

import (
	"encoding/json"
	"time"
)

// Inbound event names (client to server).
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Outbound event names (server to client).
const (
	EventConnectionAck = "connection-ack"
	EventRoomJoined    = "room-joined"
	EventMemberJoined  = "member-joined"
	EventMemberLeft    = "member-left"
	EventNewMessage    = "new-message"
	EventTypingState   = "typing-state"
	EventError         = "error"
)

// Rejection codes carried by error frames. Rejections reach only the
// originating connection and are never broadcast.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotAMember     = "not_a_member"
	CodeEmptyBody      = "empty_body"
)

// Frame is the wire envelope for both directions: a named event with a
// JSON payload. Payload stays raw on the inbound path so the router can
// decode it into the event-specific struct.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame builds an outbound frame, marshaling the payload.
func NewFrame(event string, payload interface{}) (*Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Event: event, Payload: data}, nil
}

// RoomPayload is the inbound payload for join-room and leave-room.
type RoomPayload struct {
	RoomKey string `json:"roomKey"`
}

// MessagePayload is the inbound payload for send-message. SenderID and
// SenderName are client-supplied and trusted as-is.
type MessagePayload struct {
	RoomKey    string `json:"roomKey"`
	Body       string `json:"body"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

// TypingPayload is the inbound payload for typing-start and typing-stop.
type TypingPayload struct {
	RoomKey    string `json:"roomKey"`
	SenderName string `json:"senderName"`
}

// ConnectionAck confirms registration to a newly connected client.
type ConnectionAck struct {
	ConnectionID string    `json:"connectionId"`
	ServerTime   time.Time `json:"serverTime"`
}

// RoomJoined acknowledges a successful join to the joiner itself,
// distinct from the member-joined notification its peers receive.
type RoomJoined struct {
	RoomKey    string    `json:"roomKey"`
	ServerTime time.Time `json:"serverTime"`
}

// MemberEvent is the payload for member-joined and member-left.
type MemberEvent struct {
	ConnectionID string    `json:"connectionId"`
	RoomKey      string    `json:"roomKey"`
	ServerTime   time.Time `json:"serverTime"`
}

// NewMessage is the payload for new-message, delivered to every member
// of the room including the sender.
type NewMessage struct {
	MessageID  string    `json:"messageId"`
	RoomKey    string    `json:"roomKey"`
	Body       string    `json:"body"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	ServerTime time.Time `json:"serverTime"`
}

// TypingState is the payload for typing-state, relayed to all members
// except the sender.
type TypingState struct {
	SenderName string    `json:"senderName"`
	IsTyping   bool      `json:"isTyping"`
	ServerTime time.Time `json:"serverTime"`
}

// ErrorPayload is the payload for error frames returned to the
// originating connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

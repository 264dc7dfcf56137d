// Package router validates inbound events and turns them into room
// directory mutations and outbound broadcasts. All handlers run on the
// hub goroutine, so one event's mutation and broadcast-set computation
// complete before the next event is processed.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"coursehub/internal/registry"
	"coursehub/internal/room"
	"coursehub/pkg/types"
)

// Router dispatches events against the connection registry and room
// directory. It is the only component that mutates either.
type Router struct {
	registry *registry.Registry
	rooms    *room.Directory
}

// NewRouter creates a new event router.
func NewRouter(reg *registry.Registry, rooms *room.Directory) *Router {
	return &Router{
		registry: reg,
		rooms:    rooms,
	}
}

// HandleConnect registers a new connection and acknowledges it. The
// connection starts with no room memberships.
func (r *Router) HandleConnect(conn registry.Conn) {
	if err := r.registry.Register(conn); err != nil {
		log.Printf("Connection registration failed: id=%s err=%v", conn.ID(), err)
		_ = conn.Close()
		return
	}

	r.send(conn.ID(), types.EventConnectionAck, types.ConnectionAck{
		ConnectionID: conn.ID(),
		ServerTime:   time.Now(),
	})
	log.Printf("Connection registered: id=%s user=%s", conn.ID(), conn.UserID())
}

// HandleFrame processes one inbound frame from a connection. Rejections
// are reported back to the sender as error frames; they never reach
// other members and never leave partial state behind.
func (r *Router) HandleFrame(connID string, frame *types.Frame) {
	if err := r.dispatch(connID, frame); err != nil {
		r.sendError(connID, err)
		log.Printf("Event rejected: conn=%s event=%s err=%v", connID, frame.Event, err)
	}
}

// HandleDisconnect removes the connection from every room it belonged
// to, emitting member-left to each room's remaining members, then
// unregisters it. Safe to call more than once.
func (r *Router) HandleDisconnect(connID, reason string) {
	rooms := r.registry.Unregister(connID)
	if rooms == nil {
		return
	}

	now := time.Now()
	for _, roomKey := range rooms {
		r.rooms.Leave(roomKey, connID)
		if r.rooms.Exists(roomKey) {
			r.broadcast(r.rooms.MembersOf(roomKey), "", types.EventMemberLeft, types.MemberEvent{
				ConnectionID: connID,
				RoomKey:      roomKey,
				ServerTime:   now,
			})
		}
	}

	log.Printf("Connection disconnected: id=%s rooms=%d reason=%s", connID, len(rooms), reason)
}

func (r *Router) dispatch(connID string, frame *types.Frame) error {
	switch frame.Event {
	case types.EventJoinRoom:
		return r.handleJoin(connID, frame.Payload)
	case types.EventLeaveRoom:
		return r.handleLeave(connID, frame.Payload)
	case types.EventSendMessage:
		return r.handleMessage(connID, frame.Payload)
	case types.EventTypingStart:
		return r.handleTyping(connID, frame.Payload, true)
	case types.EventTypingStop:
		return r.handleTyping(connID, frame.Payload, false)
	default:
		return fmt.Errorf("%w: unknown event %q", ErrInvalidRequest, frame.Event)
	}
}

func (r *Router) handleJoin(connID string, payload json.RawMessage) error {
	var p types.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomKey == "" {
		return fmt.Errorf("%w: roomKey is required", ErrInvalidRequest)
	}

	// The registry and the directory record the same membership fact;
	// a join for a connection the registry does not know would put the
	// fact in the directory only, leaving a room no disconnect can
	// clean up.
	if _, ok := r.registry.Get(connID); !ok {
		return fmt.Errorf("%w: connection not registered", ErrInvalidRequest)
	}

	now := time.Now()

	// Repeated joins are idempotent: re-ack the joiner without
	// re-notifying the rest of the room.
	if !r.registry.IsMember(connID, p.RoomKey) {
		peers := r.rooms.MembersOf(p.RoomKey)
		r.rooms.Join(p.RoomKey, connID)
		r.registry.AddMembership(connID, p.RoomKey)

		r.broadcast(peers, "", types.EventMemberJoined, types.MemberEvent{
			ConnectionID: connID,
			RoomKey:      p.RoomKey,
			ServerTime:   now,
		})
	}

	r.send(connID, types.EventRoomJoined, types.RoomJoined{
		RoomKey:    p.RoomKey,
		ServerTime: now,
	})
	return nil
}

func (r *Router) handleLeave(connID string, payload json.RawMessage) error {
	var p types.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomKey == "" {
		return nil // missing room key is ignored, not rejected
	}

	if !r.registry.IsMember(connID, p.RoomKey) {
		return nil
	}

	r.rooms.Leave(p.RoomKey, connID)
	r.registry.RemoveMembership(connID, p.RoomKey)

	// No notification needed for a room that just became empty.
	if r.rooms.Exists(p.RoomKey) {
		r.broadcast(r.rooms.MembersOf(p.RoomKey), "", types.EventMemberLeft, types.MemberEvent{
			ConnectionID: connID,
			RoomKey:      p.RoomKey,
			ServerTime:   time.Now(),
		})
	}
	return nil
}

func (r *Router) handleMessage(connID string, payload json.RawMessage) error {
	var p types.MessagePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomKey == "" {
		return fmt.Errorf("%w: roomKey is required", ErrInvalidRequest)
	}

	if !r.registry.IsMember(connID, p.RoomKey) {
		return fmt.Errorf("%w: %s", ErrNotAMember, p.RoomKey)
	}

	if types.IsBlank(p.Body) {
		return ErrEmptyBody
	}

	senderID, senderName := r.senderIdentity(connID, p.SenderID, p.SenderName)

	// The sender gets the broadcast too, so every member observes the
	// same message ID, content, and ordering.
	r.broadcast(r.rooms.MembersOf(p.RoomKey), "", types.EventNewMessage, types.NewMessage{
		MessageID:  uuid.New().String(),
		RoomKey:    p.RoomKey,
		Body:       p.Body,
		SenderID:   senderID,
		SenderName: senderName,
		ServerTime: time.Now(),
	})
	return nil
}

func (r *Router) handleTyping(connID string, payload json.RawMessage, isTyping bool) error {
	var p types.TypingPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomKey == "" {
		return nil // dropped silently when the room key is missing
	}

	if !r.registry.IsMember(connID, p.RoomKey) {
		return fmt.Errorf("%w: %s", ErrNotAMember, p.RoomKey)
	}

	_, senderName := r.senderIdentity(connID, "", p.SenderName)

	r.broadcast(r.rooms.MembersOf(p.RoomKey), connID, types.EventTypingState, types.TypingState{
		SenderName: senderName,
		IsTyping:   isTyping,
		ServerTime: time.Now(),
	})
	return nil
}

// senderIdentity resolves the identity attached to an outbound event:
// payload fields win, then the identity supplied at connection time,
// then the connection ID / "Anonymous". The payload is trusted as-is.
func (r *Router) senderIdentity(connID, payloadID, payloadName string) (string, string) {
	id, name := payloadID, payloadName

	if conn, ok := r.registry.Get(connID); ok {
		if id == "" {
			id = conn.UserID()
		}
		if name == "" {
			name = conn.UserName()
		}
	}
	if id == "" {
		id = connID
	}
	if name == "" {
		name = "Anonymous"
	}
	return id, name
}

// send delivers one frame to one connection, best effort.
func (r *Router) send(connID, event string, payload interface{}) {
	conn, ok := r.registry.Get(connID)
	if !ok {
		return
	}

	frame, err := types.NewFrame(event, payload)
	if err != nil {
		log.Printf("Failed to encode %s frame: %v", event, err)
		return
	}
	if err := conn.Send(frame); err != nil {
		log.Printf("Failed to deliver %s to %s: %v", event, connID, err)
	}
}

// broadcast fans one frame out to the given members, skipping exclude.
// The frame is built once so every recipient observes identical content;
// delivery failure to one member never affects the others.
func (r *Router) broadcast(members []string, exclude, event string, payload interface{}) {
	frame, err := types.NewFrame(event, payload)
	if err != nil {
		log.Printf("Failed to encode %s frame: %v", event, err)
		return
	}

	for _, connID := range members {
		if connID == exclude {
			continue
		}
		conn, ok := r.registry.Get(connID)
		if !ok {
			continue
		}
		if err := conn.Send(frame); err != nil {
			log.Printf("Failed to deliver %s to %s: %v", event, connID, err)
		}
	}
}

// sendError reports a rejection to the originating connection only.
func (r *Router) sendError(connID string, rejection error) {
	code := types.CodeInvalidRequest
	switch {
	case errors.Is(rejection, ErrNotAMember):
		code = types.CodeNotAMember
	case errors.Is(rejection, ErrEmptyBody):
		code = types.CodeEmptyBody
	}

	r.send(connID, types.EventError, types.ErrorPayload{
		Code:    code,
		Message: rejection.Error(),
	})
}

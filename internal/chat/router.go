package chat

import (
	"log/slog"
	"strings"
	"time"
)

// DeliverFunc hands an outbound event to one recipient. Implementations
// must not block: a slow recipient is dropped, never waited on.
type DeliverFunc func(connID string, ev Event)

// MessageRouter validates, timestamps and fans out submitted messages.
// All submissions for one room run strictly sequentially inside the
// room's critical section, so sequence numbers, history order and the
// order every member observes are all the same; submissions to different
// rooms proceed in parallel.
type MessageRouter struct {
	registry *Registry
	rooms    *RoomDirectory
	now      func() time.Time
	log      *slog.Logger
}

func NewMessageRouter(registry *Registry, rooms *RoomDirectory, log *slog.Logger) *MessageRouter {
	return &MessageRouter{
		registry: registry,
		rooms:    rooms,
		now:      time.Now,
		log:      log,
	}
}

// Submit accepts a message for the room on behalf of the sender. The body
// must be non-empty after trimming and the sender must currently be a
// member of the room. On success the server timestamp and next sequence
// number are assigned, the message is appended to the room history and
// delivered to every current member (the sender included) before Submit
// returns. Once accepted, a message is never rolled back.
func (r *MessageRouter) Submit(roomID, senderConnID, body string, deliver DeliverFunc) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyMessage
	}

	sender, ok := r.registry.Lookup(senderConnID)
	if !ok {
		// Disconnect raced the submission; reject cleanly.
		return Message{}, ErrUnknownConnection
	}

	var msg Message
	err := r.rooms.withRoom(roomID, func(rm *room) error {
		if _, member := rm.members[senderConnID]; !member {
			return ErrNotAMember
		}

		msg = rm.nextMessage(sender.Username, body, r.now())

		ev := NewReceiveMessageEvent(msg)
		for connID := range rm.members {
			deliver(connID, ev)
		}
		return nil
	})
	if err != nil {
		return Message{}, err
	}

	r.log.Debug("message routed",
		"room", msg.Room, "sender", msg.Sender, "seq", msg.Seq)
	return msg, nil
}

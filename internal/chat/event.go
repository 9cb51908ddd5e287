package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a wire event using a custom enum type for better
// type safety than raw strings.
type EventType string

// Wire event types. Inbound events come from the client, outbound events
// are produced by the gateway. The set is closed: anything else on the
// wire is rejected before it reaches the gateway.
const (
	// Inbound (client -> server)
	EventAuthenticate EventType = "authenticate"
	EventJoinRoom     EventType = "join_room"
	EventSendMessage  EventType = "send_message"
	EventTyping       EventType = "typing"

	// Outbound (server -> client)
	EventRoomHistory    EventType = "room_history"
	EventReceiveMessage EventType = "receive_message"
	EventUserTyping     EventType = "user_typing"
	EventMemberJoined   EventType = "member_joined"
	EventMemberLeft     EventType = "member_left"
	EventError          EventType = "error"
)

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// IsInbound reports whether the event type may be sent by a client.
func (t EventType) IsInbound() bool {
	switch t {
	case EventAuthenticate, EventJoinRoom, EventSendMessage, EventTyping:
		return true
	default:
		return false
	}
}

// Event is the envelope every wire message travels in.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// InboundEvent is the envelope as decoded off the wire; Data stays raw
// until the dispatch table knows which payload to expect.
type InboundEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeInbound parses a raw frame into an inbound envelope and rejects
// event types the protocol does not accept from clients.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var ev InboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return InboundEvent{}, fmt.Errorf("malformed event: %w", err)
	}
	if !ev.Type.IsInbound() {
		return InboundEvent{}, fmt.Errorf("%w: event type %q", ErrInvalidState, ev.Type)
	}
	return ev, nil
}

// Inbound payloads. Field names match what the browser client emits.

type AuthenticatePayload struct {
	Username string `json:"username"`
}

type JoinRoomPayload struct {
	Room string `json:"room"`
}

type SendMessagePayload struct {
	Message string `json:"message"`
}

type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// Outbound payloads.

// MessagePayload is the receive_message body echoed to every member of a
// room, the sender included, so every client renders the server-assigned
// time and sequence.
type MessagePayload struct {
	Room    string    `json:"room"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	Seq     uint64    `json:"seq"`
}

// HistoryEntry is one element of the room_history replay sent to a
// connection right after it joins.
type HistoryEntry struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	Seq       uint64    `json:"seq"`
}

type UserTypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MemberPayload announces a membership change and carries the resulting
// member list so clients can keep their online-users panel current.
type MemberPayload struct {
	Room     string   `json:"room"`
	Username string   `json:"username"`
	Members  []string `json:"members"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Event constructors.

func NewReceiveMessageEvent(msg Message) Event {
	return Event{Type: EventReceiveMessage, Data: MessagePayload{
		Room:    msg.Room,
		Author:  msg.Sender,
		Message: msg.Body,
		Time:    msg.Timestamp,
		Seq:     msg.Seq,
	}}
}

func NewRoomHistoryEvent(history []Message) Event {
	entries := make([]HistoryEntry, 0, len(history))
	for _, msg := range history {
		entries = append(entries, HistoryEntry{
			Sender:    msg.Sender,
			Content:   msg.Body,
			Timestamp: msg.Timestamp,
			Room:      msg.Room,
			Seq:       msg.Seq,
		})
	}
	return Event{Type: EventRoomHistory, Data: entries}
}

func NewUserTypingEvent(username string, isTyping bool) Event {
	return Event{Type: EventUserTyping, Data: UserTypingPayload{
		Username: username,
		IsTyping: isTyping,
	}}
}

func NewMemberJoinedEvent(room, username string, members []string) Event {
	return Event{Type: EventMemberJoined, Data: MemberPayload{
		Room:     room,
		Username: username,
		Members:  members,
	}}
}

func NewMemberLeftEvent(room, username string, members []string) Event {
	return Event{Type: EventMemberLeft, Data: MemberPayload{
		Room:     room,
		Username: username,
		Members:  members,
	}}
}

func NewErrorEvent(err error) Event {
	return Event{Type: EventError, Data: ErrorPayload{
		Kind:    ErrorKind(err),
		Message: err.Error(),
	}}
}

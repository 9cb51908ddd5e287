package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sender delivers outbound events to one connection. Send must never
// block: the websocket client backs it with a buffered channel and drops
// the connection instead of stalling, so one slow recipient cannot hold
// up a room-wide fan-out.
type Sender interface {
	Send(ev Event) error
}

// MessageAudit receives every accepted message, fire-and-forget. The
// kafka producer implements it; a nil audit disables the tap.
type MessageAudit interface {
	Record(msg Message)
}

// OnlineStore mirrors who is currently connected into an external store
// (redis, with a TTL), best-effort. A nil store disables the mirror; the
// protocol itself never reads it back.
type OnlineStore interface {
	SetOnline(username string)
	SetOffline(username string)
}

// connState is the per-connection protocol state.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateInRoom
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAuthenticated:
		return "authenticated"
	case stateInRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

type session struct {
	state  connState
	sender Sender
}

// Gateway is the single entry point of the protocol engine. It runs the
// per-connection state machine (connecting -> authenticated -> in room,
// with join/leave moving between the last two, and disconnect terminal),
// dispatches inbound events to the registry, room directory, presence
// tracker and message router, and serializes outbound events back to each
// connection. Validation failures go only to the offending connection.
type Gateway struct {
	mu       sync.RWMutex
	sessions map[string]*session

	registry *Registry
	rooms    *RoomDirectory
	presence *PresenceTracker
	router   *MessageRouter
	audit    MessageAudit
	online   OnlineStore
	log      *slog.Logger
}

func NewGateway(registry *Registry, rooms *RoomDirectory, presence *PresenceTracker, router *MessageRouter, log *slog.Logger) *Gateway {
	return &Gateway{
		sessions: make(map[string]*session),
		registry: registry,
		rooms:    rooms,
		presence: presence,
		router:   router,
		log:      log,
	}
}

// SetAudit installs the accepted-message tap.
func (g *Gateway) SetAudit(audit MessageAudit) {
	g.audit = audit
}

// SetOnlineStore installs the connected-users mirror.
func (g *Gateway) SetOnlineStore(store OnlineStore) {
	g.online = store
}

// OnConnect admits a new connection and returns its ID. The connection
// starts unauthenticated.
func (g *Gateway) OnConnect(sender Sender) string {
	connID := uuid.New().String()

	g.mu.Lock()
	g.sessions[connID] = &session{state: stateConnecting, sender: sender}
	g.mu.Unlock()

	g.log.Info("connection accepted", "connID", connID)
	return connID
}

// OnAuthenticate binds a username to the connection, exactly once.
func (g *Gateway) OnAuthenticate(connID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username must not be empty", ErrInvalidState)
	}

	g.mu.Lock()
	s, ok := g.sessions[connID]
	if !ok {
		g.mu.Unlock()
		return ErrUnknownConnection
	}
	if s.state != stateConnecting {
		g.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	s.state = stateAuthenticated
	g.mu.Unlock()

	if _, err := g.registry.Register(connID, username); err != nil {
		g.setState(connID, stateConnecting)
		return err
	}

	if g.online != nil {
		g.online.SetOnline(username)
	}

	g.log.Info("connection authenticated", "connID", connID, "username", username)
	return nil
}

// OnJoinRoom moves the connection into roomID, implicitly leaving its
// previous room. The joiner alone gets the history replay; everyone else
// already in the room gets a member_joined notice.
func (g *Gateway) OnJoinRoom(connID, roomID string) error {
	roomID, err := NormalizeRoomName(roomID)
	if err != nil {
		return err
	}

	if state, ok := g.state(connID); !ok {
		return ErrUnknownConnection
	} else if state == stateConnecting {
		return fmt.Errorf("%w: authenticate before joining a room", ErrInvalidState)
	}

	conn, ok := g.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}

	if conn.Room == roomID {
		// Idempotent re-join: replay history, no membership churn.
		_, history, err := g.rooms.Join(roomID, connID)
		if err != nil {
			return err
		}
		g.sendTo(connID, NewRoomHistoryEvent(history))
		return nil
	}

	if conn.Room != "" {
		g.leaveRoom(connID, conn.Username, conn.Room)
	}

	members, history, err := g.rooms.Join(roomID, connID)
	if err != nil {
		return err
	}
	if err := g.registry.SetRoom(connID, roomID); err != nil {
		// Disconnect raced the join; undo the membership.
		g.rooms.Leave(roomID, connID)
		return err
	}
	g.setState(connID, stateInRoom)

	g.sendTo(connID, NewRoomHistoryEvent(history))

	joined := NewMemberJoinedEvent(roomID, conn.Username, g.registry.Usernames(members))
	for _, id := range members {
		if id != connID {
			g.sendTo(id, joined)
		}
	}

	g.log.Info("room joined", "connID", connID, "username", conn.Username, "room", roomID)
	return nil
}

// OnSendMessage routes a message to the connection's current room and
// echoes it to all members, the sender included, so the sender's UI shows
// the server-assigned time and sequence.
func (g *Gateway) OnSendMessage(connID, body string) error {
	if state, ok := g.state(connID); !ok {
		return ErrUnknownConnection
	} else if state != stateInRoom {
		return fmt.Errorf("%w: join a room before sending messages", ErrInvalidState)
	}

	conn, ok := g.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}

	msg, err := g.router.Submit(conn.Room, connID, body, g.sendTo)
	if err != nil {
		return err
	}
	if g.audit != nil {
		g.audit.Record(msg)
	}
	return nil
}

// OnTyping updates the sender's typing state and broadcasts it to the
// room, but only when the state actually changed.
func (g *Gateway) OnTyping(connID string, isTyping bool) error {
	if state, ok := g.state(connID); !ok {
		return ErrUnknownConnection
	} else if state != stateInRoom {
		return fmt.Errorf("%w: join a room before typing", ErrInvalidState)
	}

	conn, ok := g.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}

	if !g.presence.SetTyping(conn.Room, conn.Username, isTyping) {
		return nil
	}
	g.broadcast(conn.Room, NewUserTypingEvent(conn.Username, isTyping))
	return nil
}

// OnDisconnect tears the connection down from any state. It is idempotent
// and safe to run concurrently with in-flight operations for the same
// connection, which then fail with unknown-connection/not-a-member.
func (g *Gateway) OnDisconnect(connID string) {
	g.mu.Lock()
	_, ok := g.sessions[connID]
	delete(g.sessions, connID)
	g.mu.Unlock()
	if !ok {
		return
	}

	conn, existed := g.registry.Unregister(connID)
	if existed && conn.Room != "" {
		g.leaveRoom(connID, conn.Username, conn.Room)
	}
	if existed && g.online != nil {
		g.online.SetOffline(conn.Username)
	}

	g.log.Info("connection closed", "connID", connID, "username", conn.Username)
}

// HandleEvent decodes one inbound frame and dispatches it. Any failure is
// reported back to the originating connection only.
func (g *Gateway) HandleEvent(connID string, raw []byte) {
	ev, err := DecodeInbound(raw)
	if err != nil {
		g.reportError(connID, err)
		return
	}

	switch ev.Type {
	case EventAuthenticate:
		var p AuthenticatePayload
		err = decodePayload(ev.Data, &p)
		if err == nil {
			err = g.OnAuthenticate(connID, p.Username)
		}
	case EventJoinRoom:
		var p JoinRoomPayload
		err = decodePayload(ev.Data, &p)
		if err == nil {
			err = g.OnJoinRoom(connID, p.Room)
		}
	case EventSendMessage:
		var p SendMessagePayload
		err = decodePayload(ev.Data, &p)
		if err == nil {
			err = g.OnSendMessage(connID, p.Message)
		}
	case EventTyping:
		var p TypingPayload
		err = decodePayload(ev.Data, &p)
		if err == nil {
			err = g.OnTyping(connID, p.IsTyping)
		}
	}
	if err != nil {
		g.reportError(connID, err)
	}
}

func decodePayload(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing event payload", ErrInvalidState)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: malformed event payload", ErrInvalidState)
	}
	return nil
}

// leaveRoom removes the connection from the room, clears its typing state
// and notifies the remaining members.
func (g *Gateway) leaveRoom(connID, username, roomID string) {
	remaining := g.rooms.Leave(roomID, connID)

	if g.presence.Clear(roomID, username) {
		stopped := NewUserTypingEvent(username, false)
		for _, id := range remaining {
			g.sendTo(id, stopped)
		}
	}

	left := NewMemberLeftEvent(roomID, username, g.registry.Usernames(remaining))
	for _, id := range remaining {
		g.sendTo(id, left)
	}

	g.log.Info("room left", "connID", connID, "username", username, "room", roomID)
}

// broadcast fans an event out to every current member of the room.
func (g *Gateway) broadcast(roomID string, ev Event) {
	members, err := g.rooms.Members(roomID)
	if err != nil {
		return
	}
	for _, id := range members {
		g.sendTo(id, ev)
	}
}

// sendTo delivers one event to one connection, fire-and-forget.
func (g *Gateway) sendTo(connID string, ev Event) {
	g.mu.RLock()
	s, ok := g.sessions[connID]
	g.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.sender.Send(ev); err != nil {
		g.log.Debug("dropping event for unreachable connection",
			"connID", connID, "event", ev.Type, "error", err)
	}
}

func (g *Gateway) reportError(connID string, err error) {
	g.log.Warn("rejected event", "connID", connID, "kind", ErrorKind(err), "error", err)
	g.sendTo(connID, NewErrorEvent(err))
}

func (g *Gateway) state(connID string) (connState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[connID]
	if !ok {
		return stateConnecting, false
	}
	return s.state, true
}

func (g *Gateway) setState(connID string, state connState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[connID]; ok {
		s.state = state
	}
}

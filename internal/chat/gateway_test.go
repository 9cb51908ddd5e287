package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder is an in-memory Sender that keeps every event it was handed.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	log := testLogger()
	registry := NewRegistry(log)
	rooms := NewRoomDirectory(100, time.Minute, log)
	presence := NewPresenceTracker()
	router := NewMessageRouter(registry, rooms, log)
	return NewGateway(registry, rooms, presence, router, log)
}

// connect admits a connection and authenticates it in one step.
func connect(t *testing.T, g *Gateway, username string) (string, *recorder) {
	t.Helper()
	rec := &recorder{}
	connID := g.OnConnect(rec)
	require.NoError(t, g.OnAuthenticate(connID, username))
	return connID, rec
}

func TestSessionLifecycle(t *testing.T) {
	g := newTestGateway(t)

	// alice connects, authenticates and joins general
	aliceID, alice := connect(t, g, "alice")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))

	histories := alice.ofType(EventRoomHistory)
	require.Len(t, histories, 1)
	require.Empty(t, histories[0].Data.([]HistoryEntry), "fresh room has no history")

	// bob joins; alice is notified, bob gets the (empty) history
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(bobID, "general"))

	joined := alice.ofType(EventMemberJoined)
	require.Len(t, joined, 1)
	payload := joined[0].Data.(MemberPayload)
	require.Equal(t, "bob", payload.Username)
	require.ElementsMatch(t, []string{"alice", "bob"}, payload.Members)
	require.Empty(t, bob.ofType(EventMemberJoined), "the joiner gets history, not its own join notice")

	// both send; both see both messages with server-assigned seqs
	require.NoError(t, g.OnSendMessage(aliceID, "hello"))
	require.NoError(t, g.OnSendMessage(bobID, "hi alice"))

	for name, rec := range map[string]*recorder{"alice": alice, "bob": bob} {
		msgs := rec.ofType(EventReceiveMessage)
		require.Len(t, msgs, 2, "%s sees both messages", name)
		first := msgs[0].Data.(MessagePayload)
		second := msgs[1].Data.(MessagePayload)
		require.Equal(t, uint64(1), first.Seq)
		require.Equal(t, "alice", first.Author)
		require.Equal(t, uint64(2), second.Seq)
		require.Equal(t, "bob", second.Author)
		require.True(t, second.Time.After(first.Time))
	}

	// a latecomer replays the full history in order
	carolID, carol := connect(t, g, "carol")
	require.NoError(t, g.OnJoinRoom(carolID, "general"))

	histories = carol.ofType(EventRoomHistory)
	require.Len(t, histories, 1)
	entries := histories[0].Data.([]HistoryEntry)
	require.Len(t, entries, 2)
	require.Equal(t, "hello", entries[0].Content)
	require.Equal(t, uint64(1), entries[0].Seq)
	require.Equal(t, "hi alice", entries[1].Content)
	require.Equal(t, uint64(2), entries[1].Seq)

	// bob disconnects; the others get member_left
	g.OnDisconnect(bobID)
	for name, rec := range map[string]*recorder{"alice": alice, "carol": carol} {
		left := rec.ofType(EventMemberLeft)
		require.Len(t, left, 1, "%s is told bob left", name)
		payload := left[0].Data.(MemberPayload)
		require.Equal(t, "bob", payload.Username)
		require.ElementsMatch(t, []string{"alice", "carol"}, payload.Members)
	}
}

func TestAuthenticateValidation(t *testing.T) {
	g := newTestGateway(t)
	rec := &recorder{}
	connID := g.OnConnect(rec)

	require.ErrorIs(t, g.OnAuthenticate(connID, "   "), ErrInvalidState)
	require.NoError(t, g.OnAuthenticate(connID, "alice"))
	require.ErrorIs(t, g.OnAuthenticate(connID, "alice2"), ErrAlreadyAuthenticated)
	require.ErrorIs(t, g.OnAuthenticate("nope", "x"), ErrUnknownConnection)
}

func TestOperationsRequireProperState(t *testing.T) {
	g := newTestGateway(t)
	rec := &recorder{}
	connID := g.OnConnect(rec)

	// unauthenticated connections cannot do anything but authenticate
	require.ErrorIs(t, g.OnJoinRoom(connID, "general"), ErrInvalidState)
	require.ErrorIs(t, g.OnSendMessage(connID, "hi"), ErrInvalidState)
	require.ErrorIs(t, g.OnTyping(connID, true), ErrInvalidState)

	// authenticated but not in a room: no sending, no typing
	require.NoError(t, g.OnAuthenticate(connID, "alice"))
	require.ErrorIs(t, g.OnSendMessage(connID, "hi"), ErrInvalidState)
	require.ErrorIs(t, g.OnTyping(connID, true), ErrInvalidState)

	require.NoError(t, g.OnJoinRoom(connID, "general"))
	require.NoError(t, g.OnSendMessage(connID, "hi"))
}

func TestJoinSwitchesRoomsImplicitly(t *testing.T) {
	g := newTestGateway(t)

	aliceID, alice := connect(t, g, "alice")
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))
	require.NoError(t, g.OnJoinRoom(bobID, "general"))
	alice.reset()

	// bob switches to random: alice gets member_left, general no longer
	// accepts bob's messages
	require.NoError(t, g.OnJoinRoom(bobID, "random"))

	left := alice.ofType(EventMemberLeft)
	require.Len(t, left, 1)
	require.Equal(t, "bob", left[0].Data.(MemberPayload).Username)

	require.NoError(t, g.OnSendMessage(bobID, "hello random"))
	require.Empty(t, alice.ofType(EventReceiveMessage))
	msgs := bob.ofType(EventReceiveMessage)
	require.Len(t, msgs, 1)
	require.Equal(t, "random", msgs[0].Data.(MessagePayload).Room)
}

func TestRejoinSameRoomReplaysWithoutChurn(t *testing.T) {
	g := newTestGateway(t)

	aliceID, alice := connect(t, g, "alice")
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))
	require.NoError(t, g.OnJoinRoom(bobID, "general"))
	require.NoError(t, g.OnSendMessage(aliceID, "hello"))
	alice.reset()
	bob.reset()

	require.NoError(t, g.OnJoinRoom(bobID, "general"))

	histories := bob.ofType(EventRoomHistory)
	require.Len(t, histories, 1)
	require.Len(t, histories[0].Data.([]HistoryEntry), 1)

	// no membership events for anyone
	require.Empty(t, alice.all())
	require.Empty(t, bob.ofType(EventMemberJoined))
	require.Empty(t, bob.ofType(EventMemberLeft))
}

func TestTypingBroadcastsOnlyChanges(t *testing.T) {
	g := newTestGateway(t)

	aliceID, _ := connect(t, g, "alice")
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))
	require.NoError(t, g.OnJoinRoom(bobID, "general"))
	bob.reset()

	require.NoError(t, g.OnTyping(aliceID, true))
	require.NoError(t, g.OnTyping(aliceID, true)) // repeat, no change
	require.NoError(t, g.OnTyping(aliceID, false))
	require.NoError(t, g.OnTyping(aliceID, false)) // repeat, no change

	typing := bob.ofType(EventUserTyping)
	require.Len(t, typing, 2)
	require.True(t, typing[0].Data.(UserTypingPayload).IsTyping)
	require.False(t, typing[1].Data.(UserTypingPayload).IsTyping)
	require.Equal(t, "alice", typing[0].Data.(UserTypingPayload).Username)
}

func TestDisconnectClearsTypingState(t *testing.T) {
	g := newTestGateway(t)

	aliceID, _ := connect(t, g, "alice")
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))
	require.NoError(t, g.OnJoinRoom(bobID, "general"))
	require.NoError(t, g.OnTyping(aliceID, true))
	bob.reset()

	g.OnDisconnect(aliceID)

	typing := bob.ofType(EventUserTyping)
	require.Len(t, typing, 1, "stale typing indicator is retracted on disconnect")
	require.False(t, typing[0].Data.(UserTypingPayload).IsTyping)
	require.Len(t, bob.ofType(EventMemberLeft), 1)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	g := newTestGateway(t)

	aliceID, _ := connect(t, g, "alice")
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))
	require.NoError(t, g.OnJoinRoom(bobID, "general"))
	bob.reset()

	g.OnDisconnect(aliceID)
	g.OnDisconnect(aliceID)
	g.OnDisconnect("never-existed")

	require.Len(t, bob.ofType(EventMemberLeft), 1, "cleanup runs exactly once")
}

func TestValidationErrorsGoToOriginatorOnly(t *testing.T) {
	g := newTestGateway(t)

	aliceID, alice := connect(t, g, "alice")
	bobID, bob := connect(t, g, "bob")
	require.NoError(t, g.OnJoinRoom(aliceID, "general"))
	require.NoError(t, g.OnJoinRoom(bobID, "general"))
	alice.reset()
	bob.reset()

	g.HandleEvent(bobID, []byte(`{"type":"send_message","data":{"message":"   "}}`))

	require.Empty(t, alice.all(), "bystanders never see someone else's error")
	errs := bob.ofType(EventError)
	require.Len(t, errs, 1)
	require.Equal(t, "empty_message", errs[0].Data.(ErrorPayload).Kind)
}

func TestHandleEventDispatch(t *testing.T) {
	g := newTestGateway(t)
	rec := &recorder{}
	connID := g.OnConnect(rec)

	g.HandleEvent(connID, []byte(`{"type":"authenticate","data":{"username":"alice"}}`))
	g.HandleEvent(connID, []byte(`{"type":"join_room","data":{"room":"general"}}`))
	g.HandleEvent(connID, []byte(`{"type":"send_message","data":{"message":"hi"}}`))
	g.HandleEvent(connID, []byte(`{"type":"typing","data":{"isTyping":true}}`))

	require.Empty(t, rec.ofType(EventError))
	require.Len(t, rec.ofType(EventRoomHistory), 1)
	require.Len(t, rec.ofType(EventReceiveMessage), 1)
}

func TestHandleEventRejectsGarbage(t *testing.T) {
	g := newTestGateway(t)
	rec := &recorder{}
	connID := g.OnConnect(rec)

	g.HandleEvent(connID, []byte(`not json at all`))
	g.HandleEvent(connID, []byte(`{"type":"receive_message","data":{}}`))
	g.HandleEvent(connID, []byte(`{"type":"join_room"}`))
	g.HandleEvent(connID, []byte(`{"type":"join_room","data":"not an object"}`))

	require.Len(t, rec.ofType(EventError), 4)
	for _, ev := range rec.all() {
		require.Equal(t, EventError, ev.Type)
	}
}

func TestJoinRejectsBlankRoomName(t *testing.T) {
	g := newTestGateway(t)
	connID, rec := connect(t, g, "alice")

	require.ErrorIs(t, g.OnJoinRoom(connID, "   "), ErrInvalidRoomName)
	require.Empty(t, rec.ofType(EventRoomHistory))
}

// stubOnlineStore and stubAudit verify the optional hooks fire.
type stubOnlineStore struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (s *stubOnlineStore) SetOnline(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = append(s.online, username)
}

func (s *stubOnlineStore) SetOffline(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = append(s.offline, username)
}

type stubAudit struct {
	mu   sync.Mutex
	msgs []Message
}

func (s *stubAudit) Record(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func TestOptionalHooks(t *testing.T) {
	g := newTestGateway(t)
	store := &stubOnlineStore{}
	audit := &stubAudit{}
	g.SetOnlineStore(store)
	g.SetAudit(audit)

	connID, _ := connect(t, g, "alice")
	require.NoError(t, g.OnJoinRoom(connID, "general"))
	require.NoError(t, g.OnSendMessage(connID, "hi"))
	g.OnDisconnect(connID)

	require.Equal(t, []string{"alice"}, store.online)
	require.Equal(t, []string{"alice"}, store.offline)
	require.Len(t, audit.msgs, 1)
	require.Equal(t, "hi", audit.msgs[0].Body)
}

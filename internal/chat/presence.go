package chat

import "sync"

// PresenceTracker keeps the per-room typing state. It is ephemeral by
// contract: nothing is persisted, a reconnecting client always starts out
// as "not typing", and last-write-wins is acceptable because typing events
// carry no ordering guarantee relative to messages.
type PresenceTracker struct {
	mu     sync.Mutex
	typing map[string]map[string]struct{} // room -> usernames currently typing
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		typing: make(map[string]map[string]struct{}),
	}
}

// SetTyping overwrites the (room, username) typing state and reports
// whether it changed, so the gateway can skip redundant fan-out.
func (p *PresenceTracker) SetTyping(roomID, username string, isTyping bool) (changed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	typists := p.typing[roomID]
	_, was := typists[username]
	if isTyping == was {
		return false
	}

	if isTyping {
		if typists == nil {
			typists = make(map[string]struct{})
			p.typing[roomID] = typists
		}
		typists[username] = struct{}{}
	} else {
		delete(typists, username)
		if len(typists) == 0 {
			delete(p.typing, roomID)
		}
	}
	return true
}

// Clear drops the (room, username) state, called on leave and disconnect.
// It reports whether the user was typing so the caller can broadcast the
// stop to the rest of the room.
func (p *PresenceTracker) Clear(roomID, username string) (wasTyping bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	typists, ok := p.typing[roomID]
	if !ok {
		return false
	}
	if _, wasTyping = typists[username]; wasTyping {
		delete(typists, username)
		if len(typists) == 0 {
			delete(p.typing, roomID)
		}
	}
	return wasTyping
}

// Typists lists the usernames currently typing in the room.
func (p *PresenceTracker) Typists(roomID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.typing[roomID]))
	for username := range p.typing[roomID] {
		out = append(out, username)
	}
	return out
}

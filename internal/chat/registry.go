package chat

import (
	"log/slog"
	"sync"
)

// Connection is a live, authenticated connection as the registry sees it.
// Lookups return copies; the registry keeps the only mutable record.
type Connection struct {
	ID       string
	Username string
	Room     string // empty while not in a room
}

// Registry tracks every live connection, its authenticated identity and
// its current room. It is the leaf dependency of the protocol engine and
// owns the Connection records exclusively.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		log:   log,
	}
}

// Register adds a connection under its authenticated username.
func (r *Registry) Register(connID, username string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return Connection{}, ErrDuplicateConnection
	}
	conn := &Connection{ID: connID, Username: username}
	r.conns[connID] = conn

	r.log.Debug("connection registered", "connID", connID, "username", username)
	return *conn, nil
}

// SetRoom records the connection's current room. An empty room ID means
// the connection is not in any room.
func (r *Registry) SetRoom(connID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	conn.Room = roomID
	return nil
}

// Unregister removes the connection and reports the record it held so the
// caller can run room-membership cleanup. It is idempotent: a second call
// for the same ID reports existed=false and does nothing.
func (r *Registry) Unregister(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)

	r.log.Debug("connection unregistered", "connID", connID, "username", conn.Username)
	return *conn, true
}

// Lookup returns a snapshot of the connection record.
func (r *Registry) Lookup(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Usernames resolves a set of connection IDs to their usernames, skipping
// IDs that have disconnected in the meantime.
func (r *Registry) Usernames(connIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(connIDs))
	for _, id := range connIDs {
		if conn, ok := r.conns[id]; ok {
			names = append(names, conn.Username)
		}
	}
	return names
}

// Len reports the number of live registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

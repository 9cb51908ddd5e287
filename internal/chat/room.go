package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultHistoryCapacity bounds the per-room replay buffer.
	DefaultHistoryCapacity = 100

	// DefaultRoomGracePeriod is how long an empty room lingers before the
	// sweeper purges it, so a quick reconnect finds its history intact.
	DefaultRoomGracePeriod = time.Minute
)

// room is the directory's internal record. Its mutex is the per-room
// serialization point required for message ordering: the router assigns
// the sequence, appends to history and fans out while holding it.
type room struct {
	name    string
	mu      sync.Mutex
	members map[string]struct{} // connection IDs
	history ringBuffer
	seq     uint64
	lastTS  time.Time

	// zero while the room has members; otherwise the moment it emptied
	emptySince time.Time
}

// nextMessage assigns the next sequence number and a server timestamp that
// never moves backwards within the room. Callers must hold rm.mu.
func (rm *room) nextMessage(sender, body string, now time.Time) Message {
	rm.seq++
	if !now.After(rm.lastTS) {
		now = rm.lastTS.Add(time.Nanosecond)
	}
	rm.lastTS = now

	msg := Message{
		Room:      rm.name,
		Sender:    sender,
		Body:      body,
		Timestamp: now,
		Seq:       rm.seq,
	}
	rm.history.push(msg)
	return msg
}

func (rm *room) memberIDs() []string {
	ids := make([]string, 0, len(rm.members))
	for id := range rm.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ringBuffer is a fixed-capacity FIFO of messages; pushing past capacity
// evicts the oldest entry.
type ringBuffer struct {
	buf   []Message
	start int
	count int
}

func newRingBuffer(capacity int) ringBuffer {
	return ringBuffer{buf: make([]Message, capacity)}
}

func (r *ringBuffer) push(msg Message) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = msg
		r.count++
		return
	}
	r.buf[r.start] = msg
	r.start = (r.start + 1) % len(r.buf)
}

// snapshot returns the buffered messages oldest-first.
func (r *ringBuffer) snapshot() []Message {
	out := make([]Message, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// RoomDirectory maps room names to member sets and a bounded history
// buffer. Rooms are created on first join and garbage-collected by a
// background sweep once they have been empty past the grace period.
type RoomDirectory struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	capacity int
	grace    time.Duration
	log      *slog.Logger
}

func NewRoomDirectory(capacity int, grace time.Duration, log *slog.Logger) *RoomDirectory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if grace <= 0 {
		grace = DefaultRoomGracePeriod
	}
	return &RoomDirectory{
		rooms:    make(map[string]*room),
		capacity: capacity,
		grace:    grace,
		log:      log,
	}
}

// NormalizeRoomName trims surrounding whitespace and rejects empty names.
// Room names are case-sensitive.
func NormalizeRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidRoomName
	}
	return name, nil
}

// Join adds the connection to the room, creating the room on first join.
// Re-joining a room the connection is already in is idempotent. It returns
// the member IDs (the joiner included) and a history snapshot oldest-first
// for replay to the joining connection.
func (d *RoomDirectory) Join(roomID, connID string) (members []string, history []Message, err error) {
	roomID, err = NormalizeRoomName(roomID)
	if err != nil {
		return nil, nil, err
	}

	d.mu.Lock()
	rm, ok := d.rooms[roomID]
	if !ok {
		rm = &room{
			name:    roomID,
			members: make(map[string]struct{}),
			history: newRingBuffer(d.capacity),
		}
		d.rooms[roomID] = rm
		d.log.Debug("room created", "room", roomID)
	}
	d.mu.Unlock()

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.members[connID] = struct{}{}
	rm.emptySince = time.Time{}
	return rm.memberIDs(), rm.history.snapshot(), nil
}

// Leave removes the connection from the room's member set. Leaving a room
// one is not in, or a room that no longer exists, is a no-op: leave must
// be safe to race with disconnect cleanup. An emptied room is not deleted
// immediately; it enters the pending-eviction state instead. The remaining
// member IDs are returned for the departure broadcast.
func (d *RoomDirectory) Leave(roomID, connID string) (remaining []string) {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		rm.emptySince = time.Now()
	}
	return rm.memberIDs()
}

// Append appends a message to the room's history, evicting the oldest
// entry at capacity.
func (d *RoomDirectory) Append(roomID string, msg Message) error {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownRoom
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.history.push(msg)
	return nil
}

// Members returns a snapshot of the room's member IDs.
func (d *RoomDirectory) Members(roomID string) ([]string, error) {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownRoom
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.memberIDs(), nil
}

// withRoom runs fn while holding the room's lock. This is the critical
// section the message router uses to keep same-room submissions strictly
// ordered while different rooms proceed in parallel.
func (d *RoomDirectory) withRoom(roomID string, fn func(*room) error) error {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownRoom
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return fn(rm)
}

// RoomStat is a point-in-time view of one room, for the ops endpoint.
type RoomStat struct {
	Name     string `json:"name"`
	Members  int    `json:"members"`
	Messages int    `json:"messages"`
	LastSeq  uint64 `json:"lastSeq"`
}

// Stats snapshots every live room, sorted by name.
func (d *RoomDirectory) Stats() []RoomStat {
	d.mu.RLock()
	rooms := make([]*room, 0, len(d.rooms))
	for _, rm := range d.rooms {
		rooms = append(rooms, rm)
	}
	d.mu.RUnlock()

	stats := make([]RoomStat, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		stats = append(stats, RoomStat{
			Name:     rm.name,
			Members:  len(rm.members),
			Messages: rm.history.count,
			LastSeq:  rm.seq,
		})
		rm.mu.Unlock()
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Run sweeps empty rooms until the context is cancelled.
func (d *RoomDirectory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.grace / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweep(time.Now())
		case <-ctx.Done():
			d.log.Debug("room sweeper stopped")
			return
		}
	}
}

// sweep purges rooms that have been empty past the grace period.
func (d *RoomDirectory) sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, rm := range d.rooms {
		rm.mu.Lock()
		expired := len(rm.members) == 0 && !rm.emptySince.IsZero() && now.Sub(rm.emptySince) >= d.grace
		rm.mu.Unlock()
		if expired {
			delete(d.rooms, name)
			d.log.Info("room purged", "room", name)
		}
	}
}

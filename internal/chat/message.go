package chat

import "time"

// Message is an accepted chat message. The timestamp and sequence number
// are assigned by the message router, never by the client, and a message
// is immutable once accepted.
type Message struct {
	Room      string
	Sender    string
	Body      string
	Timestamp time.Time
	Seq       uint64
}

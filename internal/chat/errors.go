package chat

import "errors"

// Protocol errors. All of them are recoverable at the connection level:
// they are reported back to the offending connection as an "error" event
// and never interrupt anyone else's session.
var (
	ErrDuplicateConnection  = errors.New("connection already registered")
	ErrUnknownConnection    = errors.New("unknown connection")
	ErrUnknownRoom          = errors.New("unknown room")
	ErrInvalidRoomName      = errors.New("invalid room name")
	ErrNotAMember           = errors.New("not a member of the room")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrAlreadyAuthenticated = errors.New("connection already authenticated")
	ErrInvalidState         = errors.New("operation not allowed in current state")
)

// ErrorKind maps a protocol error to the stable identifier carried in the
// wire-level error event. Unrecognized errors map to "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateConnection):
		return "duplicate_connection"
	case errors.Is(err, ErrUnknownConnection):
		return "unknown_connection"
	case errors.Is(err, ErrUnknownRoom):
		return "unknown_room"
	case errors.Is(err, ErrInvalidRoomName):
		return "invalid_room_name"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "already_authenticated"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

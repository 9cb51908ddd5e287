package chat

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry(testLogger())

	conn, err := reg.Register("c1", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", conn.Username)
	require.Empty(t, conn.Room)

	found, ok := reg.Lookup("c1")
	require.True(t, ok)
	require.Equal(t, conn, found)

	_, ok = reg.Lookup("nope")
	require.False(t, ok)
}

func TestRegistryRejectsDuplicateConnection(t *testing.T) {
	reg := NewRegistry(testLogger())

	_, err := reg.Register("c1", "alice")
	require.NoError(t, err)

	_, err = reg.Register("c1", "bob")
	require.ErrorIs(t, err, ErrDuplicateConnection)
}

func TestRegistrySetRoom(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register("c1", "alice")

	require.NoError(t, reg.SetRoom("c1", "general"))
	conn, _ := reg.Lookup("c1")
	require.Equal(t, "general", conn.Room)

	require.NoError(t, reg.SetRoom("c1", ""))
	conn, _ = reg.Lookup("c1")
	require.Empty(t, conn.Room)

	require.ErrorIs(t, reg.SetRoom("ghost", "general"), ErrUnknownConnection)
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register("c1", "alice")
	reg.SetRoom("c1", "general")

	conn, existed := reg.Unregister("c1")
	require.True(t, existed)
	require.Equal(t, "general", conn.Room)
	require.Zero(t, reg.Len())

	_, existed = reg.Unregister("c1")
	require.False(t, existed)
}

func TestRegistryUsernamesSkipsDisconnected(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register("c1", "alice")
	reg.Register("c2", "bob")

	require.ElementsMatch(t, []string{"alice", "bob"}, reg.Usernames([]string{"c1", "c2"}))

	reg.Unregister("c2")
	require.Equal(t, []string{"alice"}, reg.Usernames([]string{"c1", "c2"}))
}

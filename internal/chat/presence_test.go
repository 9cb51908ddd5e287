package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetTypingReportsChanges(t *testing.T) {
	p := NewPresenceTracker()

	require.True(t, p.SetTyping("general", "alice", true))
	require.False(t, p.SetTyping("general", "alice", true), "redundant update must not fan out")
	require.True(t, p.SetTyping("general", "alice", false))
	require.False(t, p.SetTyping("general", "alice", false))
}

func TestTypingIsTrackedPerUser(t *testing.T) {
	p := NewPresenceTracker()

	p.SetTyping("general", "alice", true)
	p.SetTyping("general", "bob", true)
	require.ElementsMatch(t, []string{"alice", "bob"}, p.Typists("general"))

	p.SetTyping("general", "alice", false)
	require.Equal(t, []string{"bob"}, p.Typists("general"))
}

func TestTypingIsTrackedPerRoom(t *testing.T) {
	p := NewPresenceTracker()

	p.SetTyping("general", "alice", true)
	require.Empty(t, p.Typists("random"))
}

func TestClearDropsState(t *testing.T) {
	p := NewPresenceTracker()

	require.False(t, p.Clear("general", "alice"), "clearing a non-typist reports false")

	p.SetTyping("general", "alice", true)
	require.True(t, p.Clear("general", "alice"))
	require.Empty(t, p.Typists("general"))

	// cleared state means a fresh start: the next "typing" is a change
	require.True(t, p.SetTyping("general", "alice", true))
}

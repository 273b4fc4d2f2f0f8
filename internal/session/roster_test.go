package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pollroom/pkg/types"
)

func TestRoster_RegisterAndFind(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()
	now := time.Now()

	participant, err := roster.Register("conn-1", "  Alice  ", now)
	req.NoError(err)
	req.Equal("Alice", participant.Name)
	req.Equal("conn-1", participant.ConnectionID)
	req.Equal(now, participant.JoinedAt)

	id, found := roster.Find("Alice")
	req.True(found)
	req.Equal("conn-1", id)

	_, found = roster.Find("alice")
	req.False(found, "names are case-sensitive")
}

func TestRoster_NameUniqueness(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()

	_, err := roster.Register("conn-1", "Alice", time.Now())
	req.NoError(err)

	// Same trimmed name is a conflict
	_, err = roster.Register("conn-2", " Alice ", time.Now())
	req.ErrorIs(err, types.ErrNameTaken)
	req.Equal(types.KindConflict, types.KindOf(err))

	// Case differs: allowed
	_, err = roster.Register("conn-3", "ALICE", time.Now())
	req.NoError(err)

	// After removal the name is available again
	_, removed := roster.Remove("conn-1")
	req.True(removed)
	_, err = roster.Register("conn-2", "Alice", time.Now())
	req.NoError(err)
}

func TestRoster_InvalidNames(t *testing.T) {
	roster := NewRoster()
	for _, name := range []string{"", " ", "A", "  B  ", "abcdefghijklmnopqrstu"} {
		_, err := roster.Register("conn", name, time.Now())
		require.ErrorIs(t, err, types.ErrInvalidName, "name %q", name)
	}
	require.Equal(t, 0, roster.Len())
}

func TestRoster_RemoveIsIdempotent(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()

	_, err := roster.Register("conn-1", "Alice", time.Now())
	req.NoError(err)

	_, removed := roster.Remove("conn-1")
	req.True(removed)
	_, removed = roster.Remove("conn-1")
	req.False(removed)
	_, removed = roster.Remove("never-registered")
	req.False(removed)
	req.Equal(0, roster.Len())
	req.False(roster.Contains("conn-1"))
}

func TestRoster_ListNamesKeepsRegistrationOrder(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()

	for i, name := range []string{"Carol", "Alice", "Bob"} {
		_, err := roster.Register(string(rune('a'+i)), name, time.Now())
		req.NoError(err)
	}
	req.Equal([]string{"Carol", "Alice", "Bob"}, roster.ListNames())

	roster.Remove("b")
	req.Equal([]string{"Carol", "Bob"}, roster.ListNames())
	req.Len(roster.List(), 2)
}

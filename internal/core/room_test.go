package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Presence/internal/domain"
)

func mustPeer(t *testing.T, conn domain.ConnID, user domain.UserID) *domain.PeerSession {
	t.Helper()
	p, err := domain.NewPeerSession(conn, user, "name-"+string(user))
	require.NoError(t, err)
	require.NoError(t, p.Grant())
	return p
}

func TestRoomAddRemove(t *testing.T) {
	room := NewRoom("general")
	p := mustPeer(t, "conn-1", "user-1")

	room.AddPeer(p)
	assert.Equal(t, 1, room.Count())

	got, ok := room.PeerByConn("conn-1")
	require.True(t, ok)
	assert.Same(t, p, got)

	removed := room.RemovePeer("conn-1")
	require.NotNil(t, removed)
	assert.Same(t, p, removed)
	assert.Equal(t, 0, room.Count())

	assert.Nil(t, room.RemovePeer("conn-1"))
}

func TestRoomByUserIndex(t *testing.T) {
	room := NewRoom("general")
	room.AddPeer(mustPeer(t, "conn-1", "user-1"))
	room.AddPeer(mustPeer(t, "conn-2", "user-2"))

	p, ok := room.PeerByUser("user-2")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("conn-2"), p.ConnID)

	room.RemovePeer("conn-2")
	_, ok = room.PeerByUser("user-2")
	assert.False(t, ok)

	// user-1 must be untouched by user-2's removal.
	_, ok = room.PeerByUser("user-1")
	assert.True(t, ok)
}

func TestRoomConnsExcept(t *testing.T) {
	room := NewRoom("general")
	room.AddPeer(mustPeer(t, "conn-1", "user-1"))
	room.AddPeer(mustPeer(t, "conn-2", "user-2"))
	room.AddPeer(mustPeer(t, "conn-3", "user-3"))

	conns := room.Conns("conn-2")
	assert.Len(t, conns, 2)
	assert.NotContains(t, conns, domain.ConnID("conn-2"))
}

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry()

	room := reg.GetOrCreate("general")
	require.NotNil(t, room)
	assert.Same(t, room, reg.GetOrCreate("general"))
	assert.Equal(t, 1, reg.Count())

	got, ok := reg.Get("general")
	require.True(t, ok)
	assert.Same(t, room, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRemoveIfEmpty(t *testing.T) {
	reg := NewRegistry()
	room := reg.GetOrCreate("general")
	room.AddPeer(mustPeer(t, "conn-1", "user-1"))

	// Occupied rooms stay.
	assert.False(t, reg.RemoveIfEmpty("general"))
	assert.Equal(t, 1, reg.Count())

	room.RemovePeer("conn-1")
	assert.True(t, reg.RemoveIfEmpty("general"))
	assert.Equal(t, 0, reg.Count())

	assert.False(t, reg.RemoveIfEmpty("general"))
}

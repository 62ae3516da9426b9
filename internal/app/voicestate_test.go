package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Presence/internal/domain"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func chanPtr(s string) *domain.ChannelID {
	id := domain.ChannelID(s)
	return &id
}

func TestVoiceStateLazyCreate(t *testing.T) {
	store := NewVoiceStateStore()

	// Unseen users read as zero-value defaults.
	st := store.Get("user-1")
	assert.Equal(t, domain.ChannelID(""), st.ChannelID)
	assert.False(t, st.Muted)
	assert.False(t, st.AudioDisabled)

	_, seen := store.Lookup("user-1")
	assert.False(t, seen)

	store.Update("user-1", domain.VoiceStatePatch{Muted: boolPtr(true)})
	_, seen = store.Lookup("user-1")
	assert.True(t, seen)
}

func TestVoiceStatePatchMerge(t *testing.T) {
	store := NewVoiceStateStore()
	store.Update("user-1", domain.VoiceStatePatch{
		ChannelID:   chanPtr("general"),
		Muted:       boolPtr(true),
		DisplayName: strPtr("alice"),
	})

	// Nil fields leave existing values untouched.
	st, prev, changed := store.Update("user-1", domain.VoiceStatePatch{AudioDisabled: boolPtr(true)})
	assert.Equal(t, domain.ChannelID("general"), prev)
	assert.False(t, changed)
	assert.True(t, st.Muted)
	assert.True(t, st.AudioDisabled)
	assert.Equal(t, "alice", st.DisplayName)
}

func TestVoiceStateChannelMoveReported(t *testing.T) {
	store := NewVoiceStateStore()
	store.Update("user-1", domain.VoiceStatePatch{ChannelID: chanPtr("general")})

	st, prev, changed := store.Update("user-1", domain.VoiceStatePatch{ChannelID: chanPtr("music")})
	assert.True(t, changed)
	assert.Equal(t, domain.ChannelID("general"), prev)
	assert.Equal(t, domain.ChannelID("music"), st.ChannelID)
}

func TestVoiceStateSurvivesChannelClear(t *testing.T) {
	store := NewVoiceStateStore()
	store.Update("user-1", domain.VoiceStatePatch{
		ChannelID: chanPtr("general"),
		Muted:     boolPtr(true),
	})

	// Clearing the channel pointer must not erase the preference flags.
	st, _, changed := store.Update("user-1", domain.VoiceStatePatch{ChannelID: chanPtr("")})
	assert.True(t, changed)
	assert.Equal(t, domain.ChannelID(""), st.ChannelID)
	assert.True(t, st.Muted)

	st = store.Get("user-1")
	assert.True(t, st.Muted)
}

func TestVoiceStateInChannel(t *testing.T) {
	store := NewVoiceStateStore()
	store.Update("user-1", domain.VoiceStatePatch{ChannelID: chanPtr("general")})
	store.Update("user-2", domain.VoiceStatePatch{ChannelID: chanPtr("general")})
	store.Update("user-3", domain.VoiceStatePatch{ChannelID: chanPtr("music")})
	store.Update("user-4", domain.VoiceStatePatch{Muted: boolPtr(true)})

	in := store.InChannel("general")
	require.Len(t, in, 2)
	assert.Contains(t, in, domain.UserID("user-1"))
	assert.Contains(t, in, domain.UserID("user-2"))
}

func TestVoiceStateChannelIDs(t *testing.T) {
	store := NewVoiceStateStore()
	store.Update("user-1", domain.VoiceStatePatch{ChannelID: chanPtr("general")})
	store.Update("user-2", domain.VoiceStatePatch{ChannelID: chanPtr("general")})
	store.Update("user-3", domain.VoiceStatePatch{ChannelID: chanPtr("music")})
	store.Update("user-4", domain.VoiceStatePatch{Muted: boolPtr(true)})

	ids := store.ChannelIDs()
	assert.ElementsMatch(t, []domain.ChannelID{"general", "music"}, ids)
}

package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/domain"
)

// VoiceStateStore keeps the durable per-user voice state, independent of
// any live connection. Records are created lazily on first touch and are
// only ever updated, never deleted: a mute toggled while disconnected must
// still be in effect after the reconnect.
type VoiceStateStore struct {
	mu     sync.RWMutex
	states map[domain.UserID]domain.VoiceState
}

func NewVoiceStateStore() *VoiceStateStore {
	return &VoiceStateStore{states: make(map[domain.UserID]domain.VoiceState)}
}

// Update merges the patch into the user's record, creating one with
// defaults if absent. It returns the new full state plus the previous
// channel pointer and whether the pointer changed, so the caller can
// recompute snapshots for both audiences.
func (s *VoiceStateStore) Update(user domain.UserID, patch domain.VoiceStatePatch) (domain.VoiceState, domain.ChannelID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.states[user]
	next := patch.Apply(prev)
	s.states[user] = next
	changed := next.ChannelID != prev.ChannelID
	log.Debug().Str("module", "app.voicestate").Str("user", string(user)).
		Str("channel", string(next.ChannelID)).Bool("muted", next.Muted).
		Bool("audio_disabled", next.AudioDisabled).Msg("state updated")
	return next, prev.ChannelID, changed
}

// Get never fails; an unseen user yields the zero-value defaults.
func (s *VoiceStateStore) Get(user domain.UserID) domain.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[user]
}

// Lookup additionally reports whether the user has ever been seen. The
// aggregator's durable-wins rule only applies to seen users.
func (s *VoiceStateStore) Lookup(user domain.UserID) (domain.VoiceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[user]
	return st, ok
}

// InChannel returns users whose state points at the channel.
func (s *VoiceStateStore) InChannel(id domain.ChannelID) map[domain.UserID]domain.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.UserID]domain.VoiceState)
	for user, st := range s.states {
		if st.ChannelID == id {
			out[user] = st
		}
	}
	return out
}

// ChannelIDs returns the distinct non-empty channel pointers held by any
// user, whether or not a live room backs them.
func (s *VoiceStateStore) ChannelIDs() []domain.ChannelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.ChannelID]struct{})
	out := make([]domain.ChannelID, 0)
	for _, st := range s.states {
		if st.ChannelID == "" {
			continue
		}
		if _, ok := seen[st.ChannelID]; ok {
			continue
		}
		seen[st.ChannelID] = struct{}{}
		out = append(out, st.ChannelID)
	}
	return out
}

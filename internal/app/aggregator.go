package app

import (
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

// Aggregator merges live peer sessions with transitional voice-state
// pointers into one canonical snapshot per channel. The two stores are
// reconciled only here, at read time.
type Aggregator struct {
	rooms  *core.Registry
	states *VoiceStateStore
}

func NewAggregator(rooms *core.Registry, states *VoiceStateStore) *Aggregator {
	return &Aggregator{rooms: rooms, states: states}
}

// Snapshot builds the participant list for a channel. Live sessions are
// emitted first; the durable muted/audioDisabled flags win over the
// session's own flags for any user the store has seen. Users whose state
// points at the channel without a live session are appended as
// transitional entries. A userId never appears twice; an absent room
// yields only transitional entries, possibly none.
func (a *Aggregator) Snapshot(id domain.ChannelID) []domain.Participant {
	out := make([]domain.Participant, 0)
	emitted := make(map[domain.UserID]struct{})

	if room, ok := a.rooms.Get(id); ok {
		for _, p := range room.Peers() {
			part := domain.Participant{
				UserID:        p.UserID,
				Name:          p.DisplayName,
				Muted:         p.Muted,
				Speaking:      p.Speaking,
				AudioDisabled: !p.AudioEnabled,
				Active:        true,
				AvatarRef:     p.AvatarRef,
				AvatarColor:   p.AvatarColor,
			}
			if st, seen := a.states.Lookup(p.UserID); seen {
				part.Muted = st.Muted
				part.AudioDisabled = st.AudioDisabled
				if part.AvatarRef == "" {
					part.AvatarRef = st.AvatarRef
				}
				if part.AvatarColor == "" {
					part.AvatarColor = st.AvatarColor
				}
			}
			if part.Muted {
				part.Speaking = false
			}
			out = append(out, part)
			emitted[p.UserID] = struct{}{}
		}
	}

	for user, st := range a.states.InChannel(id) {
		if _, ok := emitted[user]; ok {
			continue
		}
		out = append(out, domain.Participant{
			UserID:        user,
			Name:          st.DisplayName,
			Muted:         st.Muted,
			Speaking:      false,
			AudioDisabled: st.AudioDisabled,
			Active:        false,
			AvatarRef:     st.AvatarRef,
			AvatarColor:   st.AvatarColor,
		})
	}
	return out
}

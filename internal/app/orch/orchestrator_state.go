package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/domain"
)

// PeerStateResult identifies the session a state change applied to.
type PeerStateResult struct {
	Conn    domain.ConnID
	User    domain.UserID
	Channel domain.ChannelID
	// SpeakingCleared is set when muting forced the speaking flag off,
	// so observers get the silence notification too.
	SpeakingCleared bool
}

func (c *Coordinator) peerLocked(conn domain.ConnID) (*domain.PeerSession, domain.ChannelID, bool) {
	ch, ok := c.conns[conn]
	if !ok {
		return nil, "", false
	}
	room, ok := c.Rooms.Get(ch)
	if !ok {
		return nil, "", false
	}
	peer, ok := room.PeerByConn(conn)
	if !ok {
		return nil, "", false
	}
	return peer, ch, true
}

// SetMuted applies a microphone toggle to the live session and forwards
// the durable flag into the voice-state store.
func (c *Coordinator) SetMuted(conn domain.ConnID, muted bool) (PeerStateResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	peer, ch, ok := c.peerLocked(conn)
	if !ok {
		return PeerStateResult{}, false
	}
	wasSpeaking := peer.Speaking
	peer.SetMuted(muted)
	c.States.Update(peer.UserID, domain.VoiceStatePatch{Muted: &muted})
	c.Scheduler.Schedule(ch)
	return PeerStateResult{
		Conn:            conn,
		User:            peer.UserID,
		Channel:         ch,
		SpeakingCleared: muted && wasSpeaking,
	}, true
}

// SetAudio applies a headphone toggle. The global flag is only written
// when the client supplied it; user falls back to the session's owner.
func (c *Coordinator) SetAudio(conn domain.ConnID, enabled bool, globalMuted *bool, user domain.UserID) (PeerStateResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	peer, ch, ok := c.peerLocked(conn)
	if !ok {
		return PeerStateResult{}, false
	}
	peer.AudioEnabled = enabled
	if user == "" {
		user = peer.UserID
	}
	if globalMuted != nil {
		c.States.Update(user, domain.VoiceStatePatch{AudioDisabled: globalMuted})
	}
	c.Scheduler.Schedule(ch)
	return PeerStateResult{Conn: conn, User: user, Channel: ch}, true
}

// SetSpeaking toggles the transient voice-activity flag. A muted session
// ignores the update; nothing durable is written and no snapshot is
// scheduled, observers get only the lightweight state event.
func (c *Coordinator) SetSpeaking(conn domain.ConnID, speaking bool) (PeerStateResult, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	peer, ch, ok := c.peerLocked(conn)
	if !ok {
		return PeerStateResult{}, false, false
	}
	changed := peer.SetSpeaking(speaking)
	return PeerStateResult{Conn: conn, User: peer.UserID, Channel: ch}, changed, true
}

// CreateRoom acknowledges an explicit room creation request. Rooms only
// materialize on first join, so this just rejects ids already in use.
func (c *Coordinator) CreateRoom(id domain.ChannelID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Rooms.Get(id); ok {
		return app.ErrRoomExists
	}
	return nil
}

// UserState returns the durable voice state for a user (defaults if
// unseen).
func (c *Coordinator) UserState(user domain.UserID) domain.VoiceState {
	return c.States.Get(user)
}

// UpdateUserState patches the durable state directly and pushes the
// affected channel snapshots out immediately. Channel moves repaint both
// the old and the new audience.
func (c *Coordinator) UpdateUserState(user domain.UserID, patch domain.VoiceStatePatch) domain.VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, prevChannel, moved := c.States.Update(user, patch)
	if moved {
		if state.ChannelID != "" {
			c.Scheduler.Flush(state.ChannelID)
		}
		if prevChannel != "" {
			c.Scheduler.Flush(prevChannel)
		}
	} else if state.ChannelID != "" {
		c.Scheduler.Flush(state.ChannelID)
	}
	return state
}

// PullAll pushes a fresh snapshot for every channel known to either
// store, bypassing the debounce. Empty rooms should not exist, but any
// found are reaped first and announced with the terminal empty snapshot.
func (c *Coordinator) PullAll() []domain.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.Rooms.List() {
		if room, ok := c.Rooms.Get(id); ok && room.Count() == 0 {
			log.Warn().Str("module", "orch").Str("channel", string(id)).Msg("reaping empty room")
			c.Rooms.RemoveIfEmpty(id)
			c.Scheduler.Flush(id)
		}
	}

	seen := make(map[domain.ChannelID]struct{})
	ids := make([]domain.ChannelID, 0)
	for _, id := range c.Rooms.List() {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range c.States.ChannelIDs() {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		c.Scheduler.Flush(id)
	}
	c.updateRoomGauge()
	return ids
}

// Pull pushes one channel's snapshot immediately.
func (c *Coordinator) Pull(id domain.ChannelID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Scheduler.Flush(id)
}

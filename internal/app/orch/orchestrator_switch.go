package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/domain"
)

type SwitchResult struct {
	Conn   domain.ConnID
	Source domain.ChannelID
	Target domain.ChannelID
	// NoOp marks a switch to the channel the user is already in.
	NoOp bool
}

// Switch migrates a user's room membership to target without touching
// the underlying transport connection. The whole migration runs under
// the coordinator mutex, so no other signaling event can observe the
// user half-moved.
func (c *Coordinator) Switch(user domain.UserID, target domain.ChannelID) (SwitchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.States.Get(user)
	if state.ChannelID == "" {
		return SwitchResult{}, app.ErrNotInAnyChannel
	}
	source := state.ChannelID
	if source == target {
		return SwitchResult{Source: source, Target: target, NoOp: true}, nil
	}

	srcRoom, ok := c.Rooms.Get(source)
	if !ok {
		return SwitchResult{}, app.ErrSourceRoomMissing
	}
	// The switch is user-level intent; the byUser index resolves it to
	// the connection-keyed session.
	peer, ok := srcRoom.PeerByUser(user)
	if !ok {
		return SwitchResult{}, app.ErrSourceRoomMissing
	}
	conn := peer.ConnID

	_ = peer.Leave()
	srcRoom.RemovePeer(conn)
	_ = peer.Detach()

	// The durable pointer moves before any source-side broadcast, so a
	// terminal empty snapshot cannot carry the user as a transitional
	// entry pointing at the room it just left.
	tgt := target
	c.States.Update(user, domain.VoiceStatePatch{ChannelID: &tgt})

	if srcRoom.Count() == 0 {
		c.Rooms.RemoveIfEmpty(source)
		c.Scheduler.Flush(source)
	} else {
		c.Scheduler.Schedule(source)
	}

	// Reinsert under the same connection id, carrying the session flags
	// forward. Speaking is transient and starts false in the new room.
	next, err := domain.NewPeerSession(conn, user, peer.DisplayName)
	if err != nil {
		return SwitchResult{}, err
	}
	next.SetMuted(peer.Muted)
	next.AudioEnabled = peer.AudioEnabled
	next.AvatarRef = peer.AvatarRef
	next.AvatarColor = peer.AvatarColor
	if err := next.Grant(); err != nil {
		return SwitchResult{}, err
	}

	c.Rooms.GetOrCreate(target).AddPeer(next)
	c.conns[conn] = target

	c.Scheduler.Schedule(target)
	if c.Metrics != nil {
		c.Metrics.ChannelSwitches.Inc()
	}
	c.updateRoomGauge()

	log.Info().Str("module", "orch").Str("user", string(user)).Str("conn", string(conn)).
		Str("source", string(source)).Str("target", string(target)).Msg("channel switch")
	return SwitchResult{Conn: conn, Source: source, Target: target}, nil
}

package orch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/relay"
)

type JoinParams struct {
	Conn                domain.ConnID
	Channel             domain.ChannelID
	User                domain.UserID
	Name                string
	InitialMuted        bool
	InitialAudioEnabled bool
	AvatarRef           string
	AvatarColor         string
}

// ExistingPeer mirrors the peerJoined wire shape for the join reply.
type ExistingPeer struct {
	PeerID             domain.ConnID `json:"peerId"`
	UserID             domain.UserID `json:"userId"`
	Name               string        `json:"name"`
	IsMuted            bool          `json:"isMuted"`
	IsAudioEnabled     bool          `json:"isAudioEnabled"`
	IsGlobalAudioMuted bool          `json:"isGlobalAudioMuted"`
}

type JoinResult struct {
	Credential relay.Credential
	Existing   []ExistingPeer
	State      domain.VoiceState
	// Rejoined marks a duplicate join on an already-active connection;
	// no credential was issued and nothing changed.
	Rejoined bool
	// PriorLeave is set when the connection was joined elsewhere and the
	// join displaced it, so observers of the old channel can be told.
	PriorLeave *LeaveResult
}

type LeaveResult struct {
	Conn        domain.ConnID
	User        domain.UserID
	Channel     domain.ChannelID
	RoomRemoved bool
}

// Join admits a connection into a channel. The credential is requested
// first, outside the lock; until it resolves the session does not exist
// anywhere, so a failed call leaves no residual state.
func (c *Coordinator) Join(ctx context.Context, p JoinParams) (JoinResult, error) {
	c.mu.Lock()
	if ch, ok := c.conns[p.Conn]; ok && ch == p.Channel {
		res := JoinResult{Rejoined: true, Existing: c.existingPeersLocked(p.Channel, p.Conn), State: c.States.Get(p.User)}
		c.mu.Unlock()
		log.Info().Str("module", "orch").Str("conn", string(p.Conn)).
			Str("channel", string(p.Channel)).Msg("duplicate join ignored")
		return res, nil
	}
	c.mu.Unlock()

	cred, err := c.Gate.Issue(ctx, string(p.Channel), string(p.User), p.Name)
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.CredentialFailures.Inc()
		}
		return JoinResult{}, fmt.Errorf("%w: %w", app.ErrCredentialIssuance, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check after the blocking call: another join for this connection
	// may have won the race while the gate was in flight.
	var prior *LeaveResult
	if ch, ok := c.conns[p.Conn]; ok {
		if ch == p.Channel {
			return JoinResult{Rejoined: true, Existing: c.existingPeersLocked(p.Channel, p.Conn), State: c.States.Get(p.User)}, nil
		}
		if res, ok := c.leaveLocked(p.Conn, false); ok {
			prior = &res
		}
	}

	peer, err := domain.NewPeerSession(p.Conn, p.User, p.Name)
	if err != nil {
		return JoinResult{}, fmt.Errorf("%w: %w", app.ErrInvalidPayload, err)
	}
	peer.SetMuted(p.InitialMuted)
	peer.AudioEnabled = p.InitialAudioEnabled
	peer.AvatarRef = p.AvatarRef
	peer.AvatarColor = p.AvatarColor
	if err := peer.Grant(); err != nil {
		return JoinResult{}, err
	}

	existing := c.existingPeersLocked(p.Channel, p.Conn)

	room := c.Rooms.GetOrCreate(p.Channel)
	room.AddPeer(peer)
	c.conns[p.Conn] = p.Channel

	audioDisabled := !p.InitialAudioEnabled
	channel := p.Channel
	state, _, _ := c.States.Update(p.User, domain.VoiceStatePatch{
		ChannelID:     &channel,
		Muted:         &p.InitialMuted,
		AudioDisabled: &audioDisabled,
		DisplayName:   &peer.DisplayName,
		AvatarRef:     &p.AvatarRef,
		AvatarColor:   &p.AvatarColor,
	})

	c.Scheduler.Schedule(p.Channel)
	if c.Metrics != nil {
		c.Metrics.Joins.Inc()
		c.Metrics.ActivePeers.Inc()
	}
	c.updateRoomGauge()

	log.Info().Str("module", "orch").Str("conn", string(p.Conn)).Str("user", string(p.User)).
		Str("channel", string(p.Channel)).Msg("peer joined")
	return JoinResult{Credential: cred, Existing: existing, State: state, PriorLeave: prior}, nil
}

func (c *Coordinator) existingPeersLocked(id domain.ChannelID, except domain.ConnID) []ExistingPeer {
	room, ok := c.Rooms.Get(id)
	if !ok {
		return nil
	}
	out := make([]ExistingPeer, 0, room.Count())
	for _, p := range room.Peers() {
		if p.ConnID == except {
			continue
		}
		st, _ := c.States.Lookup(p.UserID)
		out = append(out, ExistingPeer{
			PeerID:             p.ConnID,
			UserID:             p.UserID,
			Name:               p.DisplayName,
			IsMuted:            p.Muted,
			IsAudioEnabled:     p.AudioEnabled,
			IsGlobalAudioMuted: st.AudioDisabled,
		})
	}
	return out
}

// Leave removes the connection's session after an explicit leave event.
func (c *Coordinator) Leave(conn domain.ConnID) (LeaveResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaveLocked(conn, false)
}

// Disconnect is the abrupt variant: no leave payload exists, the session
// is located by connection id alone and cleanup is best-effort.
func (c *Coordinator) Disconnect(conn domain.ConnID) (LeaveResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaveLocked(conn, true)
}

func (c *Coordinator) leaveLocked(conn domain.ConnID, abrupt bool) (LeaveResult, bool) {
	ch, ok := c.conns[conn]
	if !ok {
		return LeaveResult{}, false
	}
	delete(c.conns, conn)

	room, ok := c.Rooms.Get(ch)
	if !ok {
		log.Warn().Str("module", "orch").Str("conn", string(conn)).
			Str("channel", string(ch)).Msg("leave for unknown room")
		return LeaveResult{}, false
	}

	var peer *domain.PeerSession
	if !abrupt {
		if p, ok := room.PeerByConn(conn); ok {
			peer = p
			_ = peer.Leave()
		}
	}
	if removed := room.RemovePeer(conn); removed != nil {
		peer = removed
	}
	if peer == nil {
		return LeaveResult{}, false
	}
	if abrupt {
		_ = peer.Drop()
	} else {
		_ = peer.Detach()
	}

	res := LeaveResult{Conn: conn, User: peer.UserID, Channel: ch}
	if room.Count() == 0 {
		c.Rooms.RemoveIfEmpty(ch)
		res.RoomRemoved = true
	}

	// The session is already detached from the room; only now is the
	// durable channel pointer cleared. A stale disconnect must not stomp
	// a pointer a newer join or switch has moved elsewhere.
	if st := c.States.Get(peer.UserID); st.ChannelID == ch {
		empty := domain.ChannelID("")
		c.States.Update(peer.UserID, domain.VoiceStatePatch{ChannelID: &empty})
	}

	if res.RoomRemoved {
		// A vanished room is a terminal signal worth delivering promptly.
		c.Scheduler.Flush(ch)
	} else {
		c.Scheduler.Schedule(ch)
	}
	if c.Metrics != nil {
		c.Metrics.ActivePeers.Dec()
	}
	c.updateRoomGauge()

	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(peer.UserID)).
		Str("channel", string(ch)).Bool("abrupt", abrupt).Bool("room_removed", res.RoomRemoved).
		Msg("peer left")
	return res, true
}

package domain

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

const MaxDisplayNameLen = 64

var ErrDisplayNameEmpty = errors.New("display name empty")

// Peer session lifecycle states.
// joining   – credential requested, not yet admitted to a room;
// active    – admitted, accepts mute/audio/speaking updates;
// leaving   – removed from its room, global fields not yet cleared;
// gone      – terminal.
const (
	SessionJoining = "joining"
	SessionActive  = "active"
	SessionLeaving = "leaving"
	SessionGone    = "gone"
)

// Events: grant, leave, detach, drop.
// drop models an abrupt disconnect that skips the explicit leave payload.
func newSessionFSM() *fsm.FSM {
	return fsm.NewFSM(
		SessionJoining,
		fsm.Events{
			{Name: "grant", Src: []string{SessionJoining}, Dst: SessionActive},
			{Name: "leave", Src: []string{SessionActive}, Dst: SessionLeaving},
			{Name: "detach", Src: []string{SessionLeaving}, Dst: SessionGone},
			{Name: "drop", Src: []string{SessionActive, SessionLeaving}, Dst: SessionGone},
		}, nil,
	)
}

// PeerSession is the ephemeral record of one connection's presence in a room.
// It is owned by the room it belongs to; access is serialized by the
// coordinator, the session itself carries no lock.
type PeerSession struct {
	ConnID      ConnID
	UserID      UserID
	DisplayName string
	AvatarRef   string
	AvatarColor string

	Muted        bool
	AudioEnabled bool
	Speaking     bool

	lifecycle *fsm.FSM
}

func NewPeerSession(conn ConnID, user UserID, name string) (*PeerSession, error) {
	if name == "" {
		return nil, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		name = name[:MaxDisplayNameLen]
	}
	return &PeerSession{
		ConnID:       conn,
		UserID:       user,
		DisplayName:  name,
		AudioEnabled: true,
		lifecycle:    newSessionFSM(),
	}, nil
}

func (p *PeerSession) State() string { return p.lifecycle.Current() }

func (p *PeerSession) Grant() error {
	return p.lifecycle.Event(context.Background(), "grant")
}

func (p *PeerSession) Leave() error {
	return p.lifecycle.Event(context.Background(), "leave")
}

func (p *PeerSession) Detach() error {
	return p.lifecycle.Event(context.Background(), "detach")
}

func (p *PeerSession) Drop() error {
	return p.lifecycle.Event(context.Background(), "drop")
}

func (p *PeerSession) Active() bool { return p.lifecycle.Current() == SessionActive }

// SetMuted updates the microphone flag. Muting always silences the
// transient speaking flag; the two are never allowed to disagree.
func (p *PeerSession) SetMuted(muted bool) {
	p.Muted = muted
	if muted {
		p.Speaking = false
	}
}

// SetSpeaking reports whether the flag actually changed. A muted session
// rejects speaking updates.
func (p *PeerSession) SetSpeaking(speaking bool) bool {
	if p.Muted {
		return false
	}
	if p.Speaking == speaking {
		return false
	}
	p.Speaking = speaking
	return true
}

package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/domain"
)

// Room is a threadsafe in-memory voice room. It owns the peer sessions
// inside it and keeps a byUser index so user-level operations (switch)
// do not scan the peer map.
type Room struct {
	id domain.ChannelID

	mu     sync.RWMutex
	byConn map[domain.ConnID]*domain.PeerSession
	byUser map[domain.UserID]domain.ConnID
}

func NewRoom(id domain.ChannelID) *Room {
	return &Room{
		id:     id,
		byConn: make(map[domain.ConnID]*domain.PeerSession),
		byUser: make(map[domain.UserID]domain.ConnID),
	}
}

func (r *Room) ID() domain.ChannelID { return r.id }

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

func (r *Room) AddPeer(p *domain.PeerSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[p.ConnID] = p
	r.byUser[p.UserID] = p.ConnID
	log.Info().Str("module", "core.room").Str("channel", string(r.id)).
		Str("conn", string(p.ConnID)).Str("user", string(p.UserID)).Msg("peer added")
}

// RemovePeer detaches the session keyed by conn and returns it, or nil
// if no such peer was present.
func (r *Room) RemovePeer(conn domain.ConnID) *domain.PeerSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byConn[conn]
	if !ok {
		return nil
	}
	delete(r.byConn, conn)
	if r.byUser[p.UserID] == conn {
		delete(r.byUser, p.UserID)
	}
	log.Info().Str("module", "core.room").Str("channel", string(r.id)).
		Str("conn", string(conn)).Msg("peer removed")
	return p
}

func (r *Room) PeerByConn(conn domain.ConnID) (*domain.PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byConn[conn]
	return p, ok
}

func (r *Room) PeerByUser(user domain.UserID) (*domain.PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[user]
	if !ok {
		return nil, false
	}
	p, ok := r.byConn[conn]
	return p, ok
}

// Peers returns the current sessions in map order.
func (r *Room) Peers() []*domain.PeerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.PeerSession, 0, len(r.byConn))
	for _, p := range r.byConn {
		out = append(out, p)
	}
	return out
}

// Conns returns the connection ids of current peers, skipping except.
func (r *Room) Conns(except domain.ConnID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ConnID, 0, len(r.byConn))
	for conn := range r.byConn {
		if conn == except {
			continue
		}
		out = append(out, conn)
	}
	return out
}

package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/domain"
)

// Registry owns the set of active rooms. Rooms come into existence on
// first join and must be removed as soon as they empty out; a room with
// zero peers never persists here.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.ChannelID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.ChannelID]*Room)}
}

func (f *Registry) GetOrCreate(id domain.ChannelID) *Room {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = NewRoom(id)
	f.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("channel", string(id)).Msg("room created")
	return room
}

func (f *Registry) Get(id domain.ChannelID) (*Room, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// RemoveIfEmpty drops the room when its peer map is empty and reports
// whether it was removed.
func (f *Registry) RemoveIfEmpty(id domain.ChannelID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok || room.Count() > 0 {
		return false
	}
	delete(f.rooms, id)
	log.Info().Str("module", "core.registry").Str("channel", string(id)).Msg("empty room removed")
	return true
}

func (f *Registry) List() []domain.ChannelID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.ChannelID, 0, len(f.rooms))
	for id := range f.rooms {
		out = append(out, id)
	}
	return out
}

func (f *Registry) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/telemetry"
)

// Emitter delivers a canonical snapshot to every interested observer.
// Implemented by the signaling gateway.
type Emitter interface {
	EmitParticipants(id domain.ChannelID, participants []domain.Participant)
}

// SnapshotFunc computes the snapshot lazily, at fire time, so a broadcast
// always reflects the state after the last mutation in the window.
type SnapshotFunc func(domain.ChannelID) []domain.Participant

// BroadcastScheduler coalesces repeated mutations of a channel into a
// single outbound snapshot. One pending timer per channel; a mutation
// that finds a pending timer leaves it untouched, so N mutations inside
// one window produce exactly one emission.
type BroadcastScheduler struct {
	delay    time.Duration
	snapshot SnapshotFunc
	emitter  Emitter
	metrics  *telemetry.Metrics

	mu      sync.Mutex
	pending map[domain.ChannelID]*time.Timer
}

func NewBroadcastScheduler(delay time.Duration, snapshot SnapshotFunc, metrics *telemetry.Metrics) *BroadcastScheduler {
	return &BroadcastScheduler{
		delay:    delay,
		snapshot: snapshot,
		metrics:  metrics,
		pending:  make(map[domain.ChannelID]*time.Timer),
	}
}

// Bind attaches the emitter. Wiring happens late because the gateway that
// implements Emitter is constructed after the scheduler.
func (s *BroadcastScheduler) Bind(e Emitter) { s.emitter = e }

func (s *BroadcastScheduler) Schedule(id domain.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; ok {
		return
	}
	s.pending[id] = time.AfterFunc(s.delay, func() { s.fire(id) })
	log.Debug().Str("module", "app.scheduler").Str("channel", string(id)).Msg("broadcast scheduled")
}

// Flush emits now, bypassing the debounce window. A pending timer for the
// channel is stopped so the flush still yields exactly one emission. Used
// for the terminal empty-room signal and on-demand snapshot pulls.
func (s *BroadcastScheduler) Flush(id domain.ChannelID) {
	s.mu.Lock()
	if t, ok := s.pending[id]; ok {
		t.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()
	s.emit(id)
}

func (s *BroadcastScheduler) fire(id domain.ChannelID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
	s.emit(id)
}

func (s *BroadcastScheduler) emit(id domain.ChannelID) {
	if s.emitter == nil {
		return
	}
	participants := s.snapshot(id)
	s.emitter.EmitParticipants(id, participants)
	if s.metrics != nil {
		s.metrics.SnapshotBroadcasts.Inc()
	}
	log.Debug().Str("module", "app.scheduler").Str("channel", string(id)).
		Int("participants", len(participants)).Msg("snapshot broadcast")
}

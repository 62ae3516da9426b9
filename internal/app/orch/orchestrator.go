// Package orch coordinates every signaling operation over the shared
// room registry and voice-state store. One mutex serializes all
// mutations, so each inbound event is fully processed before the next
// one touches the same state; only the credential call on join happens
// outside the lock.
package orch

import (
	"sync"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/relay"
	"github.com/dkeye/Presence/internal/telemetry"
)

type Coordinator struct {
	Rooms     *core.Registry
	States    *app.VoiceStateStore
	Agg       *app.Aggregator
	Gate      relay.CredentialGate
	Scheduler *app.BroadcastScheduler
	Metrics   *telemetry.Metrics

	mu sync.Mutex
	// secondary index: which channel a connection is currently joined to.
	conns map[domain.ConnID]domain.ChannelID
}

func New(rooms *core.Registry, states *app.VoiceStateStore, agg *app.Aggregator,
	gate relay.CredentialGate, sched *app.BroadcastScheduler, metrics *telemetry.Metrics) *Coordinator {
	return &Coordinator{
		Rooms:     rooms,
		States:    states,
		Agg:       agg,
		Gate:      gate,
		Scheduler: sched,
		Metrics:   metrics,
		conns:     make(map[domain.ConnID]domain.ChannelID),
	}
}

// Participants is the on-demand snapshot read; it does not touch state
// and does not go through the debounce window.
func (c *Coordinator) Participants(id domain.ChannelID) []domain.Participant {
	return c.Agg.Snapshot(id)
}

// ConnsInChannel lists the connection ids present in a channel's room,
// skipping except. Used by the gateway for room-scoped sends.
func (c *Coordinator) ConnsInChannel(id domain.ChannelID, except domain.ConnID) []domain.ConnID {
	room, ok := c.Rooms.Get(id)
	if !ok {
		return nil
	}
	return room.Conns(except)
}

type ChannelInfo struct {
	ID    domain.ChannelID `json:"channelId"`
	Peers int              `json:"peerCount"`
}

func (c *Coordinator) Channels() []ChannelInfo {
	ids := c.Rooms.List()
	out := make([]ChannelInfo, 0, len(ids))
	for _, id := range ids {
		if room, ok := c.Rooms.Get(id); ok {
			out = append(out, ChannelInfo{ID: id, Peers: room.Count()})
		}
	}
	return out
}

func (c *Coordinator) updateRoomGauge() {
	if c.Metrics != nil {
		c.Metrics.ActiveRooms.Set(float64(c.Rooms.Count()))
	}
}

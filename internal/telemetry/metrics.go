// Package telemetry exposes the coordinator's prometheus instrumentation.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ActiveRooms        prometheus.Gauge
	ActivePeers        prometheus.Gauge
	SnapshotBroadcasts prometheus.Counter
	Joins              prometheus.Counter
	ChannelSwitches    prometheus.Counter
	CredentialFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "presence",
			Name:      "active_rooms",
			Help:      "Voice rooms with at least one live peer.",
		}),
		ActivePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "presence",
			Name:      "active_peer_sessions",
			Help:      "Live peer sessions across all rooms.",
		}),
		SnapshotBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "snapshot_broadcasts_total",
			Help:      "Participant snapshot broadcasts emitted.",
		}),
		Joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "joins_total",
			Help:      "Successful voice channel joins.",
		}),
		ChannelSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "channel_switches_total",
			Help:      "Completed live channel-to-channel migrations.",
		}),
		CredentialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "credential_failures_total",
			Help:      "Media relay credential calls that failed.",
		}),
	}
	reg.MustRegister(
		m.ActiveRooms,
		m.ActivePeers,
		m.SnapshotBroadcasts,
		m.Joins,
		m.ChannelSwitches,
		m.CredentialFailures,
	)
	return m
}

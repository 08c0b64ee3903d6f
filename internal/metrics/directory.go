package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DirectoryEntries is the current number of (public key -> peer
	// address) entries known to a server, across all peer partitions.
	DirectoryEntries = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "entries",
			Help:      "Current number of directory entries across all peer partitions",
		},
	)

	// LocalClients is the current number of connections in the clients
	// room (spec.md §2).
	LocalClients = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "local_clients",
			Help:      "Current number of locally connected clients",
		},
	)

	// PeerConnections is the current number of connected (dialed or
	// accepted) peer servers.
	PeerConnections = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "peer_connections",
			Help:      "Current number of connected peer servers",
		},
	)

	// GossipPushes tracks client_update/client_list pushes sent.
	GossipPushes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "gossip_pushes_total",
			Help:      "Total number of gossip pushes sent",
		},
		[]string{"kind"}, // client_update, client_list
	)
)

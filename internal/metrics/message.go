package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesRouted tracks envelopes the server has forwarded or fanned
	// out, labeled by inner type (chat, public_chat, client_update, ...)
	// and origin (client, peer).
	MessagesRouted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "routed_total",
			Help:      "Total number of signed envelopes routed",
		},
		[]string{"inner_type", "origin"},
	)

	// MessagesDropped tracks envelopes discarded before routing, labeled
	// by the spec.md §7 error taxonomy bucket.
	MessagesDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped before routing or buffering",
		},
		[]string{"reason"}, // structural, cryptographic, temporal, membership, transport
	)

	// ClientBufferAppends tracks messages a client accepted into its
	// buffer, labeled by inner type.
	ClientBufferAppends = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "buffer_appends_total",
			Help:      "Total number of messages appended to the client buffer",
		},
		[]string{"inner_type"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CryptoOperations tracks sign/verify/seal/open/wrap/unwrap calls.
	CryptoOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operations_total",
			Help:      "Total number of cryptographic operations",
		},
		[]string{"operation"}, // sign, verify, seal, open, wrap, unwrap
	)

	// CryptoFailures tracks verification/decryption failures, which are
	// expected (not-for-me trial decryption) as well as indicative of
	// malformed or forged traffic.
	CryptoFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "failures_total",
			Help:      "Total number of cryptographic operation failures",
		},
		[]string{"operation"},
	)
)

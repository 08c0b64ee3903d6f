package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal tracks upload attempts by outcome.
	UploadsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fileserver",
			Name:      "uploads_total",
			Help:      "Total number of file upload attempts",
		},
		[]string{"status"}, // ok, too_large, bad_request
	)

	// UploadBytes tracks the size distribution of accepted uploads.
	UploadBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fileserver",
			Name:      "upload_size_bytes",
			Help:      "Size in bytes of accepted uploads",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB .. 16MiB
		},
	)

	// DownloadsTotal tracks GET-by-id attempts by outcome.
	DownloadsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fileserver",
			Name:      "downloads_total",
			Help:      "Total number of file download attempts",
		},
		[]string{"status"}, // ok, not_found
	)
)

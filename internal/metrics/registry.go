// Package metrics exposes Prometheus counters and gauges for the
// neighbourhood overlay: message routing, directory size, connection
// counts, crypto operations, and the file endpoint.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "neighbourhood"

// Registry is the Prometheus registry every metric in this package is
// registered against. A dedicated registry (rather than the global
// default) keeps a server's and a client's metrics from colliding when
// both run in the same process, e.g. in tests.
var Registry = prometheus.NewRegistry()

// Handler returns the HTTP handler serving this package's Registry in
// OpenMetrics/Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve starts a standalone metrics listener on addr, as cfg.Metrics.Addr
// configures (spec.md's ambient observability stack), and shuts it down
// when ctx is cancelled. It blocks until the listener stops, so callers
// run it in its own goroutine the way cmd/neighbourhood-server does.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

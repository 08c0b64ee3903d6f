package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
)

// DialAll attempts to dial every address in the configured neighbourhood
// list, skipping this server's own address, per spec.md §4.2's startup
// behaviour. Dial failures are logged, not fatal: the server still
// serves local clients even if every peer is unreachable.
func (s *Server) DialAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	for _, addr := range s.cfg.Neighbourhood.Peers {
		addr := addr
		if addr == "" || addr == s.selfAddr {
			continue
		}
		g.Go(func() error {
			s.dialPeerAtStartup(gctx, addr)
			return nil
		})
	}

	// Errors are already logged per-dial; Wait only blocks until every
	// attempt has been made.
	_ = g.Wait()
}

func (s *Server) dialPeerAtStartup(ctx context.Context, addr string) {
	conn, err := s.outbound.Dial(ctx, addr, s.newConn)
	if err != nil {
		s.log.Warn("startup dial failed", logger.String("peer_addr", addr), logger.Error(err))
		metrics.MessagesDropped.WithLabelValues("transport").Inc()
		return
	}
	go s.readLoop(conn)

	if err := s.sendServerHello(conn); err != nil {
		s.log.Warn("failed to send startup server_hello", logger.String("peer_addr", addr), logger.Error(err))
	}
	if err := s.sendClientUpdateRequest(conn); err != nil {
		s.log.Warn("failed to send startup client_update_request", logger.String("peer_addr", addr), logger.Error(err))
	}
}

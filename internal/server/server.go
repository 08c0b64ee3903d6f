package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/olaf-mesh/neighbourhood/config"
	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/directory"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
)

// frame is one inbound WebSocket message, tagged with the connection it
// arrived on, queued for the single dispatch loop.
type frame struct {
	conn *Conn
	data []byte
}

// Server holds all server-owned state for one neighbourhood node: its
// rooms, directory, peer table, and identity. Every mutation of shared
// state happens inside Run's dispatch loop, giving the single-writer
// discipline spec.md §5 requires without an explicit lock around the
// three tables.
type Server struct {
	cfg     *config.Config
	keyPair *cryptoutil.KeyPair
	log     logger.Logger

	selfAddr string

	rooms        *Rooms
	outbound     *OutboundPeers
	peerTable    *directory.PeerTable
	dir          *directory.Directory
	localClients *directory.LocalClients
	counters     *directory.CounterTracker
	seen         *directory.SeenIDs

	sendCounter uint64

	upgrader websocket.Upgrader
	inbound  chan frame
}

// New constructs a Server. selfAddr is this server's own "host:port",
// used to skip self-dials and to identify local delivery.
func New(cfg *config.Config, keyPair *cryptoutil.KeyPair, log logger.Logger, selfAddr string) *Server {
	peerTable := directory.NewPeerTable()
	return &Server{
		cfg:          cfg,
		keyPair:      keyPair,
		log:          log,
		selfAddr:     selfAddr,
		rooms:        NewRooms(),
		outbound:     NewOutboundPeers(peerTable),
		peerTable:    peerTable,
		dir:          directory.NewDirectory(),
		localClients: directory.NewLocalClients(),
		counters:     directory.NewCounterTracker(),
		seen:         directory.NewSeenIDs(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		inbound: make(chan frame, 256),
	}
}

// nextCounter returns this server's next monotonically increasing
// send counter, for envelopes it signs itself (server_hello).
func (s *Server) nextCounter() uint64 {
	return atomic.AddUint64(&s.sendCounter, 1)
}

func (s *Server) newConn(ws *websocket.Conn) *Conn {
	return NewConn(uuid.NewString(), ws, s.log)
}

// Handler returns the HTTP handler for the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}

		conn := s.newConn(ws)
		s.rooms.Add(RoomPeers, conn)
		metrics.PeerConnections.Set(float64(s.peerTable.Count()))

		conn.log.Debug("connection accepted")
		s.readLoop(conn)
	})
}

// readLoop reads frames off one connection until it closes, forwarding
// each to the shared dispatch channel. Disconnect is handled here too,
// since it's this goroutine that observes the closed socket.
func (s *Server) readLoop(conn *Conn) {
	defer s.handleDisconnect(conn)
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.inbound <- frame{conn: conn, data: data}:
		case <-conn.done:
			return
		}
	}
}

// Run drains the inbound channel, dispatching one frame at a time. This
// is the single event loop: every directory/local-client/peer-table
// mutation happens on this goroutine.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-s.inbound:
			s.dispatch(f.conn, f.data)
		}
	}
}

func (s *Server) handleDisconnect(conn *Conn) {
	conn.Close()
	s.rooms.Remove(conn.ID)

	if addr := conn.PeerAddr(); addr != "" {
		s.outbound.Remove(addr)
		s.dir.PurgePeer(addr)
		s.log.Warn("peer disconnected, directory purged", logger.String("peer_addr", addr))
		metrics.PeerConnections.Set(float64(s.peerTable.Count()))
	}
	if conn.GetRoom() == RoomClients {
		if _, ok := s.localClients.Remove(conn.ID); ok {
			s.dir.ReplacePartition(s.selfAddr, s.localClients.Keys())
			s.broadcastClientUpdate()
		}
		metrics.LocalClients.Set(float64(s.localClients.Count()))
	}
}

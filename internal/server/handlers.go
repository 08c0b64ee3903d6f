package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
	"github.com/olaf-mesh/neighbourhood/internal/wire"
)

func parseCounter(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", s, err)
	}
	return v, nil
}

// handleHello processes a signed_data/hello: an authenticated hello
// promotes the connection to the clients room and records its public
// key, per spec.md §4.2. A second hello on the same connection updates
// the recorded key without creating a duplicate directory entry
// (spec.md §8 boundary behaviour).
func (s *Server) handleHello(conn *Conn, env *wire.Envelope) {
	var hello wire.Hello
	if err := json.Unmarshal(env.Data, &hello); err != nil || hello.PublicKey == "" {
		s.log.Debug("dropping malformed hello")
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	pub, err := cryptoutil.ParsePublicKeyPEM(hello.PublicKey)
	if err != nil {
		s.log.Warn("hello with unparseable public key", logger.Error(err))
		metrics.MessagesDropped.WithLabelValues("cryptographic").Inc()
		return
	}
	counter, err := parseCounter(env.Counter)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}
	if err := cryptoutil.Verify(pub, env.Data, counter, env.Signature); err != nil {
		conn.log.Warn("hello signature does not verify")
		metrics.MessagesDropped.WithLabelValues("cryptographic").Inc()
		return
	}

	conn.SetPublicKey(hello.PublicKey)
	s.rooms.Promote(conn)
	s.localClients.Set(conn.ID, hello.PublicKey)
	s.dir.ReplacePartition(s.selfAddr, s.localClients.Keys())
	metrics.LocalClients.Set(float64(s.localClients.Count()))

	ack, _ := wire.NewHello(hello.PublicKey)
	if err := conn.Send(ack); err != nil {
		s.log.Warn("failed to send hello ack", logger.Error(err))
	}

	s.broadcastClientUpdate()
}

// handleServerHello identifies an inbound peer and triggers a dial-back,
// per spec.md §4.2: "Initial contact: record address, dial back, send
// own server_hello, send client_update_request." Clients sending this
// are rejected.
func (s *Server) handleServerHello(conn *Conn, env *wire.Envelope, origin string) {
	if origin == "client" {
		conn.log.Warn("client sent server_hello, rejecting")
		metrics.MessagesDropped.WithLabelValues("membership").Inc()
		return
	}

	var sh wire.ServerHello
	if err := json.Unmarshal(env.Data, &sh); err != nil || sh.Sender == "" {
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	conn.SetPeerAddr(sh.Sender)
	s.peerTable.Announce(sh.Sender)
	metrics.PeerConnections.Set(float64(s.peerTable.Count()))
	s.log.Debug("peer identified", logger.String("peer_addr", sh.Sender))

	if _, ok := s.outbound.Get(sh.Sender); ok {
		return
	}
	go s.dialBack(sh.Sender)
}

// dialBack opens the outbound socket to addr and announces this server,
// as the receiving end of an unsolicited server_hello must, per
// spec.md §4.2.
func (s *Server) dialBack(addr string) {
	ctx := context.Background()
	conn, err := s.outbound.Dial(ctx, addr, s.newConn)
	if err != nil {
		s.log.Warn("dial-back failed", logger.String("peer_addr", addr), logger.Error(err))
		metrics.MessagesDropped.WithLabelValues("transport").Inc()
		return
	}
	go s.readLoop(conn)

	if err := s.sendServerHello(conn); err != nil {
		s.log.Warn("failed to send server_hello", logger.Error(err))
	}
	if err := s.sendClientUpdateRequest(conn); err != nil {
		s.log.Warn("failed to send client_update_request", logger.Error(err))
	}
}

func (s *Server) sendServerHello(conn *Conn) error {
	sh, err := wire.NewServerHello(s.selfAddr)
	if err != nil {
		return err
	}
	data, err := json.Marshal(sh)
	if err != nil {
		return err
	}
	counter := s.nextCounter()
	sig, err := cryptoutil.Sign(s.keyPair.Private, data, counter)
	if err != nil {
		return err
	}
	return conn.Send(wire.NewEnvelope(data, counter, sig))
}

func (s *Server) sendClientUpdateRequest(conn *Conn) error {
	return conn.Send(wire.NewClientUpdateRequest())
}

// handlePublicChat fans an unencrypted broadcast out per the dispatch
// table: client-origin goes to every peer AND every local client;
// peer-origin goes to local clients only.
func (s *Server) handlePublicChat(conn *Conn, env *wire.Envelope, origin string) {
	fp, ok := s.verifyAgainstDirectory(env)
	if !ok {
		s.log.Warn("public_chat signature does not verify against any known key")
		metrics.MessagesDropped.WithLabelValues("cryptographic").Inc()
		return
	}
	if _, accepted := s.acceptCounter(fp, env.Counter); !accepted {
		s.log.Debug("dropping stale-counter public_chat", logger.String("fingerprint", fp))
		metrics.MessagesDropped.WithLabelValues("temporal").Inc()
		return
	}

	if origin == "client" {
		s.outbound.Broadcast(env)
		metrics.MessagesRouted.WithLabelValues(wire.TypePublicChat, "client").Inc()
	} else {
		metrics.MessagesRouted.WithLabelValues(wire.TypePublicChat, "peer").Inc()
	}
	s.rooms.BroadcastClients(env)
}

// handleChat forwards an encrypted private chat per destination_servers
// (client-origin) or fans it to local clients (peer-origin); servers
// never attempt to decrypt it themselves.
func (s *Server) handleChat(conn *Conn, env *wire.Envelope, origin string) {
	var chat wire.Chat
	if err := json.Unmarshal(env.Data, &chat); err != nil {
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	if origin == "peer" {
		s.rooms.BroadcastClients(env)
		metrics.MessagesRouted.WithLabelValues(wire.TypeChat, "peer").Inc()
		return
	}

	for _, addr := range chat.DestinationServers {
		if addr == s.selfAddr {
			s.rooms.BroadcastClients(env)
			continue
		}
		if out, ok := s.outbound.Get(addr); ok {
			_ = out.Send(env)
		} else {
			s.log.Warn("chat destination server not connected", logger.String("address", addr))
			metrics.MessagesDropped.WithLabelValues("transport").Inc()
		}
	}
	metrics.MessagesRouted.WithLabelValues(wire.TypeChat, "client").Inc()
}

// handleClientUpdateRequest answers with the current local client list,
// base64-PEM keys, per spec.md §4.2. Only peers send this.
func (s *Server) handleClientUpdateRequest(conn *Conn) {
	if conn.GetRoom() == RoomClients {
		conn.log.Warn("client sent client_update_request, rejecting")
		metrics.MessagesDropped.WithLabelValues("membership").Inc()
		return
	}
	update := wire.NewClientUpdate(s.localClients.Keys())
	if err := conn.Send(update); err != nil {
		s.log.Warn("failed to answer client_update_request", logger.Error(err))
	}
}

// handleClientUpdate replaces the sending peer's directory partition and
// pushes a refreshed client_list to every local client, per spec.md
// §4.3. A client_update from an unannounced address (no prior
// server_hello) is dropped.
func (s *Server) handleClientUpdate(conn *Conn, data []byte) {
	if conn.GetRoom() == RoomClients {
		conn.log.Warn("client sent client_update, rejecting")
		metrics.MessagesDropped.WithLabelValues("membership").Inc()
		return
	}

	addr := conn.PeerAddr()
	if addr == "" || !s.peerTable.IsAnnounced(addr) {
		conn.log.Warn("client_update from unannounced peer, dropping")
		metrics.MessagesDropped.WithLabelValues("membership").Inc()
		return
	}

	var update wire.ClientUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	s.dir.ReplacePartition(addr, update.Clients)
	metrics.DirectoryEntries.Set(float64(len(s.dir.AllKeys())))
	metrics.GossipPushes.WithLabelValues("client_update").Inc()
	s.pushClientList()
}

// handleClientListRequest answers a client's request for the current
// directory snapshot, restoring the behaviour original_source's server
// provides that spec.md's dispatch table leaves implicit.
func (s *Server) handleClientListRequest(conn *Conn) {
	if conn.GetRoom() != RoomClients {
		return
	}
	if err := conn.Send(s.buildClientList()); err != nil {
		s.log.Warn("failed to answer client_list_request", logger.Error(err))
	}
}

func (s *Server) buildClientList() *wire.ClientList {
	snap := s.dir.Snapshot()
	servers := make([]wire.ServerClients, 0, len(snap))
	for addr, keys := range snap {
		servers = append(servers, wire.ServerClients{Address: addr, Clients: keys})
	}
	return wire.NewClientList(servers)
}

// broadcastClientUpdate is invoked on every local client-table change
// (hello accepted, disconnect), per spec.md §4.3: a fresh client_update
// to every peer, then a refreshed client_list to every local client.
func (s *Server) broadcastClientUpdate() {
	s.outbound.Broadcast(wire.NewClientUpdate(s.localClients.Keys()))
	metrics.GossipPushes.WithLabelValues("client_update").Inc()
	s.pushClientList()
}

func (s *Server) pushClientList() {
	s.rooms.BroadcastClients(s.buildClientList())
	metrics.GossipPushes.WithLabelValues("client_list").Inc()
}

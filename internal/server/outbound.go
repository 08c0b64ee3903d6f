package server

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/olaf-mesh/neighbourhood/internal/directory"
)

// OutboundPeers is the server's explicit outbound-socket-per-peer-address
// table of spec.md §4.5. Distinct from Rooms.peers (inbound connections):
// "server A sends to server B" always means "A writes on its
// outbound-to-B socket".
type OutboundPeers struct {
	peers *directory.PeerTable

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewOutboundPeers creates an empty outbound table backed by peers for
// announcement bookkeeping.
func NewOutboundPeers(peers *directory.PeerTable) *OutboundPeers {
	return &OutboundPeers{peers: peers, conns: make(map[string]*Conn)}
}

func wsURL(addr string) string {
	return (&url.URL{Scheme: "ws", Host: addr, Path: "/ws"}).String()
}

// Dial opens an outbound connection to addr and registers it. The
// caller is responsible for starting a read goroutine on the returned
// Conn if it wants to observe peer replies on the outbound socket.
func (o *OutboundPeers) Dial(ctx context.Context, addr string, newConn func(*websocket.Conn) *Conn) (*Conn, error) {
	dialer := websocket.DefaultDialer
	ws, _, err := dialer.DialContext(ctx, wsURL(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("dial peer %s: %w", addr, err)
	}
	conn := newConn(ws)
	conn.SetPeerAddr(addr)

	o.mu.Lock()
	o.conns[addr] = conn
	o.mu.Unlock()
	o.peers.SetOutbound(addr, conn.ID)
	return conn, nil
}

// Get returns the outbound connection to addr, if any.
func (o *OutboundPeers) Get(addr string) (*Conn, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.conns[addr]
	return c, ok
}

// Remove tears down and forgets the outbound connection to addr.
func (o *OutboundPeers) Remove(addr string) {
	o.mu.Lock()
	c, ok := o.conns[addr]
	delete(o.conns, addr)
	o.mu.Unlock()

	if ok {
		c.Close()
	}
	o.peers.Forget(addr)
}

// Broadcast sends v on every outbound peer socket.
func (o *OutboundPeers) Broadcast(v interface{}) {
	o.mu.Lock()
	conns := make([]*Conn, 0, len(o.conns))
	for _, c := range o.conns {
		conns = append(conns, c)
	}
	o.mu.Unlock()

	for _, c := range conns {
		_ = c.Send(v)
	}
}

// Addresses returns every address with a live outbound connection.
func (o *OutboundPeers) Addresses() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.conns))
	for addr := range o.conns {
		out = append(out, addr)
	}
	return out
}

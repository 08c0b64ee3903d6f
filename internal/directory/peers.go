package directory

import "sync"

// PeerTable tracks which peer addresses have announced themselves via
// server_hello, and the outbound connection-id (if any) currently
// serving each one. A client_update arriving before its sender's
// server_hello is dropped per spec.md §4.3(ii); this table is the
// source of truth for that check.
type PeerTable struct {
	mu        sync.Mutex
	announced map[string]struct{}
	outbound  map[string]string // peer address -> outbound conn id
}

// NewPeerTable creates an empty table.
func NewPeerTable() *PeerTable {
	return &PeerTable{
		announced: make(map[string]struct{}),
		outbound:  make(map[string]string),
	}
}

// Announce records that addr has identified itself via server_hello.
func (p *PeerTable) Announce(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.announced[addr] = struct{}{}
}

// IsAnnounced reports whether addr has previously sent a server_hello.
func (p *PeerTable) IsAnnounced(addr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.announced[addr]
	return ok
}

// SetOutbound records the outbound connection id serving addr.
func (p *PeerTable) SetOutbound(addr, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outbound[addr] = connID
}

// Outbound returns the outbound connection id serving addr, if any.
func (p *PeerTable) Outbound(addr string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.outbound[addr]
	return id, ok
}

// Forget removes all record of addr: its announcement and its outbound
// entry. Called when the outbound socket to addr is torn down, or when
// the peer is otherwise known gone (spec.md §4.5).
func (p *PeerTable) Forget(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.announced, addr)
	delete(p.outbound, addr)
}

// Addresses returns every currently-known outbound peer address.
func (p *PeerTable) Addresses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.outbound))
	for addr := range p.outbound {
		out = append(out, addr)
	}
	return out
}

// Count returns the number of currently-connected peer addresses.
func (p *PeerTable) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outbound)
}

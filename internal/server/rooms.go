package server

import "sync"

// Rooms is the server-wide "clients"/"peers" publish-subscribe
// abstraction of spec.md §9: two sets of connection handles. "Send to
// clients" iterates one; "send to peers" iterates the other. No
// library-specific machinery required — this is plain maps under a
// mutex.
type Rooms struct {
	mu      sync.RWMutex
	clients map[string]*Conn
	peers   map[string]*Conn
}

// NewRooms creates empty rooms.
func NewRooms() *Rooms {
	return &Rooms{
		clients: make(map[string]*Conn),
		peers:   make(map[string]*Conn),
	}
}

// Add registers conn under r, replacing any existing entry.
func (rm *Rooms) Add(room Room, conn *Conn) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if room == RoomClients {
		rm.clients[conn.ID] = conn
	} else {
		rm.peers[conn.ID] = conn
	}
}

// Promote moves conn from the peers room to the clients room, the
// transition an authenticated hello triggers (spec.md §4.2).
func (rm *Rooms) Promote(conn *Conn) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.peers, conn.ID)
	rm.clients[conn.ID] = conn
	conn.SetRoom(RoomClients)
}

// Remove deletes connID from both rooms.
func (rm *Rooms) Remove(connID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.clients, connID)
	delete(rm.peers, connID)
}

// Clients returns a snapshot slice of every connection in the clients
// room.
func (rm *Rooms) Clients() []*Conn {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Conn, 0, len(rm.clients))
	for _, c := range rm.clients {
		out = append(out, c)
	}
	return out
}

// Peers returns a snapshot slice of every connection in the peers room
// (inbound peer connections, not the outbound dial table).
func (rm *Rooms) Peers() []*Conn {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Conn, 0, len(rm.peers))
	for _, c := range rm.peers {
		out = append(out, c)
	}
	return out
}

// ClientCount returns the number of connections in the clients room.
func (rm *Rooms) ClientCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.clients)
}

// BroadcastClients sends v to every connection in the clients room,
// ignoring (not failing on) a per-connection send error.
func (rm *Rooms) BroadcastClients(v interface{}) {
	for _, c := range rm.Clients() {
		_ = c.Send(v)
	}
}

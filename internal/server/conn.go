// Package server implements the neighbourhood server: the WebSocket
// event loop, its rooms abstraction, message dispatch, and the per-peer
// outbound writer queues. Adapted from the teacher's WSServer/WSTransport
// pair (pkg/agent/transport/websocket), replaced end to end with the
// chat overlay's own routing semantics.
package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/olaf-mesh/neighbourhood/internal/logger"
)

const (
	writeTimeout   = 10 * time.Second
	outboundBuffer = 256
)

// Room tags a connection's current membership, per spec.md §2's
// "clients"/"peers" rooms abstraction.
type Room int

const (
	RoomPeers Room = iota
	RoomClients
)

func (r Room) String() string {
	if r == RoomClients {
		return "clients"
	}
	return "peers"
}

// Conn is one WebSocket connection (accepted or dialed) plus its dedicated
// writer goroutine, fed by a buffered in-memory queue of outboundBuffer
// payloads so sends are
// serialised per connection without holding a lock across a suspending
// network call, per spec.md §9's "outbound-per-peer sockets" note
// generalised to every connection.
type Conn struct {
	ID   string
	conn *websocket.Conn
	log  logger.Logger

	mu        sync.Mutex
	room      Room
	publicKey string // set once hello is processed
	peerAddr  string // set once server_hello identifies the peer

	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewConn wraps ws with a write queue and starts its writer goroutine.
// log is scoped to this connection's id once here via WithFields, so
// every log line this Conn (and the handlers that receive it) emits
// carries conn_id without repeating the field at each call site.
func NewConn(id string, ws *websocket.Conn, log logger.Logger) *Conn {
	c := &Conn{
		ID:     id,
		conn:   ws,
		log:    log.WithFields(logger.String("conn_id", id)),
		room:   RoomPeers,
		outbox: make(chan []byte, outboundBuffer),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for {
		select {
		case payload, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				c.log.Warn("set write deadline failed", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("write failed, closing connection", logger.Error(err))
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send enqueues payload for the writer goroutine. It never blocks the
// caller on network I/O; a full queue (a stalled peer) drops this
// payload by returning an error instead of blocking the event
// loop, matching spec.md §5's "handlers MUST NOT suspend holding state".
func (c *Conn) Send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	select {
	case c.outbox <- payload:
		return nil
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.ID)
	default:
		return fmt.Errorf("connection %s outbound queue full", c.ID)
	}
}

// ReadMessage reads one frame from the underlying connection. Only the
// event loop's read goroutine for this connection calls this.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close tears down the writer goroutine and the underlying socket. Safe
// to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// SetRoom updates the connection's room membership.
func (c *Conn) SetRoom(r Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = r
}

// GetRoom returns the connection's current room.
func (c *Conn) GetRoom() Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// SetPublicKey records the public key learned from a hello.
func (c *Conn) SetPublicKey(pk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publicKey = pk
}

// PublicKey returns the connection's recorded public key, if any.
func (c *Conn) PublicKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publicKey
}

// SetPeerAddr records the advertised address learned from a
// server_hello.
func (c *Conn) SetPeerAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerAddr = addr
}

// PeerAddr returns the connection's recorded peer address, if any.
func (c *Conn) PeerAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerAddr
}

// Package client implements the neighbourhood client: the single
// outbound connection to a home server, the directory of known public
// keys, and the chat pipeline (dedup, verify, counter check, trial
// decryption, buffering). Adapted from the teacher's WSTransport
// (pkg/agent/transport/websocket/client.go) generalised from a
// request/response RPC transport to a long-lived event-driven feed.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/directory"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/wire"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// BufferedMessage is one delivered chat appended to the client's buffer
// (spec.md §3): decrypted or public text, its sender fingerprint, and
// its recipient list ("Public" for broadcasts).
type BufferedMessage struct {
	Text         string
	Sender       string
	Participants []string
}

// Client holds one client's full local state: its identity, its single
// home-server connection, its directory, its replay-protection state,
// and its buffer of delivered messages.
type Client struct {
	keyPair  *cryptoutil.KeyPair
	fp       string
	homeAddr string
	log      logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	helloAck  bool

	dir      *ClientDirectory
	counters *directory.CounterTracker
	seen     *directory.SeenIDs

	bufMu  sync.Mutex
	buffer []BufferedMessage

	sendCounter uint64
}

// New constructs a Client for the given home server address. log is
// scoped to this client's own fingerprint once here via WithFields, so
// every line this client emits (connect, chat pipeline, send errors)
// carries its identity without each call site re-stating it.
func New(keyPair *cryptoutil.KeyPair, homeAddr string, log logger.Logger) (*Client, error) {
	fp, err := cryptoutil.Fingerprint(keyPair.Public)
	if err != nil {
		return nil, fmt.Errorf("compute own fingerprint: %w", err)
	}
	return &Client{
		keyPair:  keyPair,
		fp:       fp,
		homeAddr: homeAddr,
		log:      log.WithFields(logger.String("fingerprint", fp)),
		dir:      NewClientDirectory(),
		counters: directory.NewCounterTracker(),
		seen:     directory.NewSeenIDs(),
	}, nil
}

// Fingerprint returns this client's own fingerprint.
func (c *Client) Fingerprint() string { return c.fp }

// Buffer returns a snapshot of the client's delivered-message buffer.
func (c *Client) Buffer() []BufferedMessage {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	out := make([]BufferedMessage, len(c.buffer))
	copy(out, c.buffer)
	return out
}

func (c *Client) appendBuffer(msg BufferedMessage) {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buffer = append(c.buffer, msg)
}

func (c *Client) nextCounter() uint64 {
	c.sendCounter++
	return c.sendCounter
}

func wsURL(addr string) string {
	return (&url.URL{Scheme: "ws", Host: addr, Path: "/ws"}).String()
}

// Connect dials the home server, sends hello, and starts the read loop
// in a background goroutine. It blocks until the initial dial succeeds
// or fails.
func (c *Client) Connect(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.DialContext(ctx, wsURL(c.homeAddr), nil)
	if err != nil {
		return fmt.Errorf("dial home server %s: %w", c.homeAddr, err)
	}

	c.mu.Lock()
	c.conn = ws
	c.connected = true
	c.mu.Unlock()
	c.log.Debug("connected to home server", logger.String("home_addr", c.homeAddr))

	if err := c.sendHello(); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	go c.readLoop()
	return nil
}

func (c *Client) sendHello() error {
	pemStr, err := cryptoutil.PublicKeyPEM(c.keyPair.Public)
	if err != nil {
		return err
	}
	hello, err := wire.NewHello(pemStr)
	if err != nil {
		return err
	}
	return c.sendSigned(hello)
}

// sendSigned marshals inner, signs it with this client's key and next
// counter, and writes the resulting envelope.
func (c *Client) sendSigned(inner interface{}) error {
	data, err := json.Marshal(inner)
	if err != nil {
		return fmt.Errorf("marshal inner payload: %w", err)
	}
	counter := c.nextCounter()
	sig, err := cryptoutil.Sign(c.keyPair.Private, data, counter)
	if err != nil {
		return fmt.Errorf("sign payload: %w", err)
	}
	env := wire.NewEnvelope(data, counter, sig)
	return c.writeJSON(env)
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return c.conn.WriteJSON(v)
}

// SendPublicChat signs and sends a public_chat message.
func (c *Client) SendPublicChat(message string) error {
	pc, err := wire.NewPublicChat(c.fp, message)
	if err != nil {
		return err
	}
	return c.sendSigned(pc)
}

// SendChat composes a private chat to recipients (fingerprints),
// encrypting message per spec.md §4.1: a fresh AES-128-GCM key and
// nonce encrypt the chat_segment plaintext, and the symmetric key is
// then OAEP-wrapped once per recipient plus once for this client's own
// key (so the sender can decrypt its own echo). destination_servers is
// derived from the recipients' known home addresses, deduplicated.
func (c *Client) SendChat(recipients []string, message string) error {
	participants := append([]string{c.fp}, recipients...)
	segment, err := wire.NewChatSegment(participants, message)
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(segment)
	if err != nil {
		return fmt.Errorf("marshal chat segment: %w", err)
	}

	symmKey, err := cryptoutil.GenerateSymmetricKey()
	if err != nil {
		return err
	}
	nonce, err := cryptoutil.GenerateNonce()
	if err != nil {
		return err
	}
	ciphertext, err := cryptoutil.Seal(symmKey, nonce, plaintext)
	if err != nil {
		return err
	}

	wrapRecipients := append([]string{c.fp}, recipients...)
	destSet := make(map[string]struct{})
	symmKeys := make([]string, 0, len(wrapRecipients))
	for _, fp := range wrapRecipients {
		pub := c.keyPair.Public
		if fp != c.fp {
			found, ok := c.dir.Lookup(fp)
			if !ok {
				c.log.Warn("chat recipient unknown, skipping its key wrap", logger.String("fingerprint", fp))
				continue
			}
			pub = found
			if addr, ok := c.dir.AddressOf(fp); ok {
				destSet[addr] = struct{}{}
			}
		}
		wrapped, err := cryptoutil.WrapKey(pub, symmKey)
		if err != nil {
			return fmt.Errorf("wrap symmetric key for %s: %w", fp, err)
		}
		symmKeys = append(symmKeys, base64.StdEncoding.EncodeToString(wrapped))
	}

	destServers := make([]string, 0, len(destSet))
	for addr := range destSet {
		destServers = append(destServers, addr)
	}

	chat, err := wire.NewChat(
		destServers,
		base64.StdEncoding.EncodeToString(nonce),
		symmKeys,
		base64.StdEncoding.EncodeToString(ciphertext),
	)
	if err != nil {
		return err
	}
	return c.sendSigned(chat)
}

// RequestClientList sends a client_list_request to the home server.
func (c *Client) RequestClientList() error {
	return c.writeJSON(wire.NewClientListRequest())
}

// IsHelloAcked reports whether the home server has acknowledged this
// client's hello.
func (c *Client) IsHelloAcked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.helloAck
}

// readLoop reads frames from the home server connection until it
// closes, dispatching each to handleFrame. Matches spec.md §4.4: client
// reacts to connect/hello/client_list/message on a single connection.
func (c *Client) readLoop() {
	defer c.markDisconnected()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Warn("home server connection closed", logger.Error(err))
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *Client) handleFrame(data []byte) {
	outerType, err := wire.PeekType(data)
	if err != nil {
		c.log.Debug("dropping structurally invalid frame", logger.Error(err))
		return
	}

	switch outerType {
	case wire.TypeHello:
		c.mu.Lock()
		c.helloAck = true
		c.mu.Unlock()
		c.log.Debug("home server acknowledged hello")
	case wire.TypeClientList:
		c.handleClientList(data)
	case wire.TypeSignedData:
		c.handleMessage(data)
	default:
		c.log.Debug("dropping unexpected frame type", logger.String("type", outerType))
	}
}

func (c *Client) handleClientList(data []byte) {
	var cl wire.ClientList
	if err := json.Unmarshal(data, &cl); err != nil {
		c.log.Debug("dropping malformed client_list", logger.Error(err))
		return
	}
	c.dir.Replace(cl.Servers)
}

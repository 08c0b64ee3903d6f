package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaf-mesh/neighbourhood/config"
	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/wire"
)

func testServer(t *testing.T, selfAddr string) (*Server, *httptest.Server, string) {
	t.Helper()
	cfg := config.Default()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	s := New(cfg, kp, logger.NewDefaultLogger(), selfAddr)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return s, ts, wsURL
}

type testClient struct {
	t    *testing.T
	ws   *websocket.Conn
	kp   *cryptoutil.KeyPair
	ctr  uint64
}

func dialTestClient(t *testing.T, wsURL string) *testClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	return &testClient{t: t, ws: ws, kp: kp}
}

func (c *testClient) nextCounter() uint64 {
	c.ctr++
	return c.ctr
}

func (c *testClient) sendHello(t *testing.T) {
	pemStr, err := cryptoutil.PublicKeyPEM(c.kp.Public)
	require.NoError(t, err)
	hello, err := wire.NewHello(pemStr)
	require.NoError(t, err)
	c.sendSigned(t, hello)
}

func (c *testClient) sendSigned(t *testing.T, inner interface{}) {
	data, err := json.Marshal(inner)
	require.NoError(t, err)
	counter := c.nextCounter()
	sig, err := cryptoutil.Sign(c.kp.Private, data, counter)
	require.NoError(t, err)
	env := wire.NewEnvelope(data, counter, sig)
	require.NoError(t, c.ws.WriteJSON(env))
}

func (c *testClient) readRaw(t *testing.T) []byte {
	t.Helper()
	require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ws.ReadMessage()
	require.NoError(t, err)
	return data
}

func TestHelloPromotesAndAcks(t *testing.T) {
	_, _, wsURL := testServer(t, "S1:4678")
	client := dialTestClient(t, wsURL)
	client.sendHello(t)

	raw := client.readRaw(t)
	typ, err := wire.PeekType(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeHello, typ)
}

func TestPublicChatDeliveredToOtherClient(t *testing.T) {
	_, _, wsURL := testServer(t, "S1:4678")

	a := dialTestClient(t, wsURL)
	a.sendHello(t)
	a.readRaw(t) // hello ack
	a.readRaw(t) // client_list push after A's own hello

	b := dialTestClient(t, wsURL)
	b.sendHello(t)
	b.readRaw(t) // hello ack

	// both receive a further client_list push after B's hello
	a.readRaw(t)
	b.readRaw(t)

	fpA, err := cryptoutil.Fingerprint(a.kp.Public)
	require.NoError(t, err)
	pc, err := wire.NewPublicChat(fpA, "hi")
	require.NoError(t, err)
	a.sendSigned(t, pc)

	raw := b.readRaw(t)
	var env wire.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var got wire.PublicChat
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, fpA, got.Sender)
}

func TestDuplicateEnvelopeIDDropped(t *testing.T) {
	cfg := config.Default()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	s := New(cfg, kp, logger.NewDefaultLogger(), "S1:4678")

	data, _ := json.Marshal(map[string]string{"type": wire.TypePublicChat, "sender": "fp", "message": "hi"})
	sig, err := cryptoutil.Sign(kp.Private, data, 1)
	require.NoError(t, err)
	env := wire.NewEnvelope(data, 1, sig)

	assert.True(t, s.seen.CheckAndRecord(env.ID))
	assert.False(t, s.seen.CheckAndRecord(env.ID))
}

func TestParseCounter(t *testing.T) {
	v, err := parseCounter("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	_, err = parseCounter("not-a-number")
	assert.Error(t, err)
}

// TestTwoServerGossipAndCrossServerChat exercises spec.md §8 scenarios
// 2, 3, and 5: two servers dial each other at startup, exchange
// client_update gossip so each learns the other's local clients, a
// client on one server reaches a client on the other via chat's
// destination_servers, and killing a peer purges its directory
// partition.
func TestTwoServerGossipAndCrossServerChat(t *testing.T) {
	cfg1 := config.Default()
	kp1, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	s1 := New(cfg1, kp1, logger.NewDefaultLogger(), "")
	ts1 := httptest.NewServer(s1.Handler())
	t.Cleanup(ts1.Close)
	s1.selfAddr = strings.TrimPrefix(ts1.URL, "http://")

	cfg2 := config.Default()
	kp2, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	s2 := New(cfg2, kp2, logger.NewDefaultLogger(), "")
	ts2 := httptest.NewServer(s2.Handler())
	t.Cleanup(ts2.Close)
	s2.selfAddr = strings.TrimPrefix(ts2.URL, "http://")

	s1.cfg.Neighbourhood.Peers = []string{s1.selfAddr, s2.selfAddr}
	s2.cfg.Neighbourhood.Peers = []string{s1.selfAddr, s2.selfAddr}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s1.Run(ctx)
	go s2.Run(ctx)

	s1.DialAll(ctx)
	s2.DialAll(ctx)

	wsURL1 := "ws" + strings.TrimPrefix(ts1.URL, "http")
	wsURL2 := "ws" + strings.TrimPrefix(ts2.URL, "http")

	a := dialTestClient(t, wsURL1)
	a.sendHello(t)
	b := dialTestClient(t, wsURL2)
	b.sendHello(t)

	// The directory is keyed by base64-PEM public key, as hello and
	// client_update carry it.
	pemA, err := cryptoutil.PublicKeyPEM(a.kp.Public)
	require.NoError(t, err)
	pemB, err := cryptoutil.PublicKeyPEM(b.kp.Public)
	require.NoError(t, err)

	eventually(t, func() bool {
		addr, ok := s1.dir.AddressOf(pemB)
		return ok && addr == s2.selfAddr
	})
	eventually(t, func() bool {
		addr, ok := s2.dir.AddressOf(pemA)
		return ok && addr == s1.selfAddr
	})

	chat, err := wire.NewChat([]string{s2.selfAddr}, "iv", []string{"k"}, "ct")
	require.NoError(t, err)
	a.sendSigned(t, chat)

	require.True(t, b.waitForInnerType(t, wire.TypeChat, 2*time.Second),
		"B never received the forwarded chat envelope")

	// Kill S2's inbound connections by closing the test server; S1's
	// outbound-to-S2 socket observes the close and purges S2's partition.
	ts2.Close()
	eventually(t, func() bool {
		_, ok := s1.dir.AddressOf(pemB)
		return !ok
	})
}

// waitForInnerType drains frames off c's socket until one decodes as a
// signed_data envelope with the given inner type, or the deadline
// passes. Intervening frames (hello acks, client_list pushes) are
// discarded.
func (c *testClient) waitForInnerType(t *testing.T, innerType string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			continue
		}
		outerType, err := wire.PeekType(data)
		if err != nil || outerType != wire.TypeSignedData {
			continue
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if got, err := env.InnerType(); err == nil && got == innerType {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Fail(t, "condition not met before deadline")
}

func TestBuildClientListReflectsDirectory(t *testing.T) {
	cfg := config.Default()
	kp, _ := cryptoutil.GenerateKeyPair()
	s := New(cfg, kp, logger.NewDefaultLogger(), "S1:4678")

	s.dir.Put("pkA", "S1:4678")
	cl := s.buildClientList()
	require.Len(t, cl.Servers, 1)
	assert.Equal(t, "S1:4678", cl.Servers[0].Address)
	assert.Equal(t, []string{"pkA"}, cl.Servers[0].Clients)
}

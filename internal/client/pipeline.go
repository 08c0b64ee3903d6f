package client

import (
	"encoding/json"

	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
	"github.com/olaf-mesh/neighbourhood/internal/wire"
)

// handleMessage is the chat pipeline entry point for a signed_data frame:
// dedup by id, then branch on public_chat vs chat; each branch verifies
// the signature against every known key and then checks the claimed
// sender's monotonic counter. Every
// rejection is silent to the network (spec.md §4.4) and only logged
// locally.
func (c *Client) handleMessage(data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug("dropping malformed envelope", logger.Error(err))
		return
	}
	if env.ID == "" || env.Data == nil || env.Signature == "" {
		c.log.Debug("dropping envelope missing required fields")
		return
	}
	if !c.seen.CheckAndRecord(env.ID) {
		c.log.Debug("dropping duplicate envelope id", logger.String("id", env.ID))
		return
	}

	innerType, err := env.InnerType()
	if err != nil {
		c.log.Debug("dropping envelope with unreadable inner type", logger.Error(err))
		return
	}

	switch innerType {
	case wire.TypePublicChat:
		c.handlePublicChat(&env)
	case wire.TypeChat:
		c.handleChat(&env)
	default:
		c.log.Debug("dropping envelope with unknown inner type", logger.String("inner_type", innerType))
	}
}

func (c *Client) parseCounter(s string) (uint64, bool) {
	v, err := parseCounter(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// handlePublicChat verifies the envelope's signature against the full
// set of currently known public keys — not just the key claimed by
// pc.Sender — per spec.md §4.1/§4.4, mirroring internal/server's
// verifyAgainstDirectory. Only once some known key verifies is the
// claimed sender read out of the payload, for counter tracking and
// attribution.
func (c *Client) handlePublicChat(env *wire.Envelope) {
	var pc wire.PublicChat
	if err := json.Unmarshal(env.Data, &pc); err != nil || pc.Sender == "" {
		c.log.Debug("dropping malformed public_chat")
		return
	}

	counter, ok := c.parseCounter(env.Counter)
	if !ok {
		return
	}
	if _, err := cryptoutil.VerifyAny(c.dir.AllPublicKeys(), env.Data, counter, env.Signature); err != nil {
		c.log.Warn("public_chat signature does not verify against any known key")
		metrics.CryptoFailures.WithLabelValues("verify").Inc()
		return
	}
	metrics.CryptoOperations.WithLabelValues("verify").Inc()

	sender := pc.Sender
	if !c.counters.Accept(sender, counter) {
		c.log.Debug("dropping stale-counter public_chat", logger.String("fingerprint", sender))
		return
	}

	c.appendBuffer(BufferedMessage{
		Text:         pc.Message,
		Sender:       sender,
		Participants: []string{"Public"},
	})
}

// handleChat trial-decrypts a private chat envelope against this
// client's own key, then verifies the envelope's signature against the
// full set of currently known public keys — not just the key for the
// sender claimed by the decrypted segment — per spec.md §4.1/§4.4,
// mirroring internal/server's verifyAgainstDirectory. Only once some
// known key verifies is the claimed sender read out of the segment, for
// counter tracking and attribution. A chat this client is not a
// recipient of fails trial decryption silently and is simply dropped
// (spec.md §4.4).
func (c *Client) handleChat(env *wire.Envelope) {
	var chat wire.Chat
	if err := json.Unmarshal(env.Data, &chat); err != nil {
		c.log.Debug("dropping malformed chat")
		return
	}

	plaintext, ok := cryptoutil.TrialDecrypt(c.keyPair.Private, chat.SymmKeys, chat.IV, chat.Chat)
	if !ok {
		metrics.CryptoFailures.WithLabelValues("open").Inc()
		c.log.Debug("chat not addressed to this client, dropping")
		return
	}
	metrics.CryptoOperations.WithLabelValues("open").Inc()

	var segment wire.ChatSegment
	if err := json.Unmarshal(plaintext, &segment); err != nil || len(segment.Participants) == 0 {
		c.log.Debug("dropping chat with unparseable plaintext segment")
		return
	}

	counter, ok := c.parseCounter(env.Counter)
	if !ok {
		return
	}
	if _, err := cryptoutil.VerifyAny(c.dir.AllPublicKeys(), env.Data, counter, env.Signature); err != nil {
		c.log.Warn("chat signature does not verify against any known key")
		metrics.CryptoFailures.WithLabelValues("verify").Inc()
		return
	}
	metrics.CryptoOperations.WithLabelValues("verify").Inc()

	sender := segment.Sender()
	if !c.counters.Accept(sender, counter) {
		c.log.Debug("dropping stale-counter chat", logger.String("fingerprint", sender))
		return
	}

	if sender == c.fp {
		// Self-echo: the sender's own outbound wrap lets it recover the
		// plaintext it just sent, but there is nothing new to buffer.
		return
	}

	c.appendBuffer(BufferedMessage{
		Text:         segment.Message,
		Sender:       sender,
		Participants: segment.Recipients(),
	})
}

package server

import (
	"encoding/json"

	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
	"github.com/olaf-mesh/neighbourhood/internal/wire"
)

// dispatch is the single entry point for every inbound frame, called
// only from Run's event loop. It performs structural validation
// (spec.md §4.1) before classification, then routes by outer type.
func (s *Server) dispatch(conn *Conn, data []byte) {
	outerType, err := wire.PeekType(data)
	if err != nil {
		s.log.Debug("dropping structurally invalid message", logger.Error(err))
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	switch outerType {
	case wire.TypeSignedData:
		s.dispatchEnvelope(conn, data)
	case wire.TypeClientListRequest:
		s.handleClientListRequest(conn)
	case wire.TypeClientUpdate:
		s.handleClientUpdate(conn, data)
	case wire.TypeClientUpdateRequest:
		s.handleClientUpdateRequest(conn)
	default:
		s.log.Debug("dropping unrecognised or server-only message type", logger.String("type", outerType))
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
	}
}

func (s *Server) dispatchEnvelope(conn *Conn, data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Debug("dropping malformed envelope", logger.Error(err))
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}
	if env.ID == "" || env.Data == nil || env.Signature == "" {
		s.log.Debug("dropping envelope missing required fields")
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	if !s.seen.CheckAndRecord(env.ID) {
		s.log.Debug("dropping duplicate envelope id", logger.String("id", env.ID))
		metrics.MessagesDropped.WithLabelValues("temporal").Inc()
		return
	}

	innerType, err := env.InnerType()
	if err != nil {
		s.log.Debug("dropping envelope with unreadable inner type", logger.Error(err))
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
		return
	}

	origin := "client"
	if conn.GetRoom() == RoomPeers {
		origin = "peer"
	}

	switch innerType {
	case wire.TypeHello:
		s.handleHello(conn, &env)
	case wire.TypeServerHello:
		s.handleServerHello(conn, &env, origin)
	case wire.TypePublicChat:
		s.handlePublicChat(conn, &env, origin)
	case wire.TypeChat:
		s.handleChat(conn, &env, origin)
	default:
		s.log.Debug("dropping envelope with unknown inner type", logger.String("inner_type", innerType))
		metrics.MessagesDropped.WithLabelValues("structural").Inc()
	}
}

// acceptCounter parses counterStr, checks signer fingerprint's
// monotonic counter, and returns the parsed counter and acceptance.
func (s *Server) acceptCounter(fingerprint, counterStr string) (uint64, bool) {
	counter, err := parseCounter(counterStr)
	if err != nil {
		return 0, false
	}
	return counter, s.counters.Accept(fingerprint, counter)
}

// verifyAgainstDirectory verifies env's signature against every key the
// server currently knows (local clients and gossiped peer clients),
// returning the verifying public key's fingerprint.
func (s *Server) verifyAgainstDirectory(env *wire.Envelope) (string, bool) {
	counter, err := parseCounter(env.Counter)
	if err != nil {
		return "", false
	}

	for _, keyPEM := range s.dir.AllKeys() {
		pub, err := cryptoutil.ParsePublicKeyPEM(keyPEM)
		if err != nil {
			continue
		}
		if cryptoutil.Verify(pub, env.Data, counter, env.Signature) == nil {
			fp, err := cryptoutil.Fingerprint(pub)
			if err != nil {
				continue
			}
			return fp, true
		}
	}
	return "", false
}

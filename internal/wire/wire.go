// Package wire defines the JSON envelope and payload types exchanged
// between neighbourhood servers and clients: the signed envelope and its
// inner tagged-variant payloads, and the bare-JSON gossip messages.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Inner payload type discriminators, carried in signed_data.data.type.
const (
	TypeHello       = "hello"
	TypeServerHello = "server_hello"
	TypePublicChat  = "public_chat"
	TypeChat        = "chat"
)

// Envelope type discriminators, carried in the outer message's type.
const (
	TypeSignedData          = "signed_data"
	TypeClientList          = "client_list"
	TypeClientListRequest   = "client_list_request"
	TypeClientUpdate        = "client_update"
	TypeClientUpdateRequest = "client_update_request"
)

// Envelope is the signed_data wrapper: {type, id, data, counter,
// signature}. Data carries the raw JSON of the inner payload so it can be
// re-serialised byte-for-byte for signature verification, then decoded
// into a typed inner payload once its "type" field is known.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Counter   string          `json:"counter"`
	Signature string          `json:"signature"`
}

// innerType is a helper struct to peek the inner payload's type
// discriminator before fully decoding it.
type innerType struct {
	Type string `json:"type"`
}

// InnerType returns the discriminator of Data without fully decoding it.
func (e *Envelope) InnerType() (string, error) {
	var it innerType
	if err := json.Unmarshal(e.Data, &it); err != nil {
		return "", fmt.Errorf("decode inner type: %w", err)
	}
	if it.Type == "" {
		return "", fmt.Errorf("missing inner type field")
	}
	return it.Type, nil
}

// NewEnvelope builds a signed_data envelope with a fresh uuid id. The
// caller is responsible for signing: computing Signature over
// data+counter before the envelope is considered valid to send.
func NewEnvelope(data json.RawMessage, counter uint64, signature string) *Envelope {
	return &Envelope{
		Type:      TypeSignedData,
		ID:        uuid.NewString(),
		Data:      data,
		Counter:   fmt.Sprintf("%d", counter),
		Signature: signature,
	}
}

// Hello is the inner payload a client sends to register with its home
// server, and the payload a server's acknowledgement hello carries.
type Hello struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"` // base64-PEM
}

// NewHello constructs a valid Hello; the constructor precondition
// collapses validation, per spec.md §9's "validation collapses into
// constructor preconditions" note.
func NewHello(publicKeyPEM string) (*Hello, error) {
	if publicKeyPEM == "" {
		return nil, fmt.Errorf("hello: empty public key")
	}
	return &Hello{Type: TypeHello, PublicKey: publicKeyPEM}, nil
}

// ServerHello identifies an inbound peer and advertises its dial-back
// address.
type ServerHello struct {
	Type   string `json:"type"`
	Sender string `json:"sender"` // host:port
}

func NewServerHello(sender string) (*ServerHello, error) {
	if sender == "" {
		return nil, fmt.Errorf("server_hello: empty sender")
	}
	return &ServerHello{Type: TypeServerHello, Sender: sender}, nil
}

// PublicChat is an unencrypted broadcast chat message.
type PublicChat struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"` // fingerprint
	Message string `json:"message"`
}

func NewPublicChat(sender, message string) (*PublicChat, error) {
	if sender == "" {
		return nil, fmt.Errorf("public_chat: empty sender")
	}
	return &PublicChat{Type: TypePublicChat, Sender: sender, Message: message}, nil
}

// Chat is an encrypted private chat envelope payload: one AES-GCM
// ciphertext plus one OAEP-wrapped symmetric key per recipient
// (including the sender, for self-echo).
type Chat struct {
	Type              string   `json:"type"`
	DestinationServers []string `json:"destination_servers"`
	IV                string   `json:"iv"`         // base64 nonce
	SymmKeys          []string `json:"symm_keys"` // base64, parallel to recipients
	Chat              string   `json:"chat"`      // base64 AES-GCM ciphertext
}

func NewChat(destinationServers []string, iv string, symmKeys []string, ciphertext string) (*Chat, error) {
	if iv == "" {
		return nil, fmt.Errorf("chat: empty iv")
	}
	if len(symmKeys) == 0 {
		return nil, fmt.Errorf("chat: no wrapped symmetric keys")
	}
	if ciphertext == "" {
		return nil, fmt.Errorf("chat: empty ciphertext")
	}
	return &Chat{
		Type:               TypeChat,
		DestinationServers: destinationServers,
		IV:                 iv,
		SymmKeys:           symmKeys,
		Chat:               ciphertext,
	}, nil
}

// ChatSegment is the plaintext recovered by decrypting a Chat's
// ciphertext: participants[0] is the sender fingerprint,
// participants[1:] are recipient fingerprints.
type ChatSegment struct {
	Participants []string `json:"participants"`
	Message      string   `json:"message"`
}

func NewChatSegment(participants []string, message string) (*ChatSegment, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("chat_segment: no participants")
	}
	return &ChatSegment{Participants: participants, Message: message}, nil
}

// Sender returns the chat segment's sender fingerprint.
func (c *ChatSegment) Sender() string {
	return c.Participants[0]
}

// Recipients returns the chat segment's recipient fingerprints.
func (c *ChatSegment) Recipients() []string {
	if len(c.Participants) < 2 {
		return nil
	}
	return c.Participants[1:]
}

// ServerClients is one entry of a ClientList snapshot: a peer address and
// the base64-PEM public keys of the clients it currently hosts.
type ServerClients struct {
	Address string   `json:"address"`
	Clients []string `json:"clients"`
}

// ClientList is the bare-JSON snapshot a server pushes to its local
// clients after any directory change.
type ClientList struct {
	Type    string          `json:"type"`
	Servers []ServerClients `json:"servers"`
}

func NewClientList(servers []ServerClients) *ClientList {
	return &ClientList{Type: TypeClientList, Servers: servers}
}

// ClientListRequest is a bare-JSON request for the current ClientList,
// sent by a client to its server.
type ClientListRequest struct {
	Type string `json:"type"`
}

func NewClientListRequest() *ClientListRequest {
	return &ClientListRequest{Type: TypeClientListRequest}
}

// ClientUpdate is the bare-JSON gossip message a server sends to its
// peers: the full current list of its local clients' base64-PEM keys.
type ClientUpdate struct {
	Type    string   `json:"type"`
	Clients []string `json:"clients"`
}

func NewClientUpdate(clients []string) *ClientUpdate {
	return &ClientUpdate{Type: TypeClientUpdate, Clients: clients}
}

// ClientUpdateRequest is the bare-JSON request a server sends a newly
// contacted peer to ask for its current client list.
type ClientUpdateRequest struct {
	Type string `json:"type"`
}

func NewClientUpdateRequest() *ClientUpdateRequest {
	return &ClientUpdateRequest{Type: TypeClientUpdateRequest}
}

// PeekType returns the "type" discriminator of a bare top-level JSON
// message (an Envelope or one of the gossip messages), without decoding
// the rest of the body. Used by the server/client read loops to route
// an inbound frame to its decoder.
func PeekType(raw []byte) (string, error) {
	var it innerType
	if err := json.Unmarshal(raw, &it); err != nil {
		return "", fmt.Errorf("peek message type: %w", err)
	}
	if it.Type == "" {
		return "", fmt.Errorf("missing type field")
	}
	return it.Type, nil
}

package client

import (
	"crypto/rsa"
	"sync"

	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/wire"
)

// ClientDirectory is a client-side view of the overlay's known public
// keys, rebuilt wholesale from each client_list push. It exists
// alongside internal/directory.Directory rather than reusing it: a
// client has no peer partitions to reconcile, only a flat fingerprint
// lookup it needs for signature verification and trial decryption.
type ClientDirectory struct {
	mu    sync.RWMutex
	keys  map[string]*rsa.PublicKey // fingerprint -> parsed public key
	pems  map[string]string         // fingerprint -> original base64-PEM
	addrs map[string]string         // fingerprint -> home server address
}

// NewClientDirectory constructs an empty ClientDirectory.
func NewClientDirectory() *ClientDirectory {
	return &ClientDirectory{
		keys:  make(map[string]*rsa.PublicKey),
		pems:  make(map[string]string),
		addrs: make(map[string]string),
	}
}

// Replace rebuilds the directory from a full client_list snapshot.
// Unparseable keys are skipped rather than rejecting the whole push.
func (d *ClientDirectory) Replace(servers []wire.ServerClients) {
	keys := make(map[string]*rsa.PublicKey)
	pems := make(map[string]string)
	addrs := make(map[string]string)

	for _, server := range servers {
		for _, pemStr := range server.Clients {
			pub, err := cryptoutil.ParsePublicKeyPEM(pemStr)
			if err != nil {
				continue
			}
			fp, err := cryptoutil.Fingerprint(pub)
			if err != nil {
				continue
			}
			keys[fp] = pub
			pems[fp] = pemStr
			addrs[fp] = server.Address
		}
	}

	d.mu.Lock()
	d.keys = keys
	d.pems = pems
	d.addrs = addrs
	d.mu.Unlock()
}

// Lookup returns the parsed public key for a fingerprint, if known.
func (d *ClientDirectory) Lookup(fingerprint string) (*rsa.PublicKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pub, ok := d.keys[fingerprint]
	return pub, ok
}

// AddressOf returns the home server address of fingerprint, if known.
func (d *ClientDirectory) AddressOf(fingerprint string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.addrs[fingerprint]
	return addr, ok
}

// All returns every currently known (fingerprint, public key) pair.
func (d *ClientDirectory) All() map[string]*rsa.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*rsa.PublicKey, len(d.keys))
	for fp, pub := range d.keys {
		out[fp] = pub
	}
	return out
}

// AllPublicKeys returns every currently known public key, with no
// fingerprint attached, for a signature-verification sweep across the
// full known-key set (spec.md §4.1/§4.4: "Verify signature against the
// set of all currently known public keys").
func (d *ClientDirectory) AllPublicKeys() []*rsa.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*rsa.PublicKey, 0, len(d.keys))
	for _, pub := range d.keys {
		out = append(out, pub)
	}
	return out
}

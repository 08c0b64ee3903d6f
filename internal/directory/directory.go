package directory

import (
	"errors"
	"sync"
)

// ErrUnknownPeer is returned when a client_update is received from an
// address that has not announced itself via server_hello, per spec.md
// §4.3 edge case (ii).
var ErrUnknownPeer = errors.New("directory: client_update from unannounced peer")

// Directory is a server's best current knowledge of which client public
// keys (base64-PEM) live on which peer address. It is the union,
// partitioned by peer address, of a server's own local clients and the
// most recent client_update received from each peer (spec.md §3).
//
// Directory guards its maps with its own mutex, so each method is safe
// to call from any goroutine.
type Directory struct {
	mu sync.Mutex
	// keyToAddr maps a client public key to the peer address that owns
	// it.
	keyToAddr map[string]string
	// addrToKeys maps a peer address to the set of keys it currently
	// owns, for O(partition size) purge/replace.
	addrToKeys map[string]map[string]struct{}
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		keyToAddr:  make(map[string]string),
		addrToKeys: make(map[string]map[string]struct{}),
	}
}

// Put inserts or updates a single (key, address) entry. If key was
// previously owned by a different address, that address's partition is
// updated too — the "last write wins" tie-break of spec.md §4.3(i).
func (d *Directory) Put(key, addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putLocked(key, addr)
}

func (d *Directory) putLocked(key, addr string) {
	if old, ok := d.keyToAddr[key]; ok && old != addr {
		delete(d.addrToKeys[old], key)
	}
	d.keyToAddr[key] = addr
	if d.addrToKeys[addr] == nil {
		d.addrToKeys[addr] = make(map[string]struct{})
	}
	d.addrToKeys[addr][key] = struct{}{}
}

// ReplacePartition implements spec.md §4.3's "replace by peer partition"
// reconciliation: every existing entry owned by addr is deleted, then
// keys is inserted under addr. This is atomic with respect to other
// directory operations under the caller's single-writer discipline.
func (d *Directory) ReplacePartition(addr string, keys []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k := range d.addrToKeys[addr] {
		delete(d.keyToAddr, k)
	}
	delete(d.addrToKeys, addr)

	for _, k := range keys {
		d.putLocked(k, addr)
	}
}

// PurgePeer removes every directory entry owned by addr, used when a
// peer outbound connection is torn down (spec.md §4.3, §4.5).
func (d *Directory) PurgePeer(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k := range d.addrToKeys[addr] {
		delete(d.keyToAddr, k)
	}
	delete(d.addrToKeys, addr)
}

// AddressOf returns the peer address owning key, if any.
func (d *Directory) AddressOf(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addr, ok := d.keyToAddr[key]
	return addr, ok
}

// Snapshot returns the full directory as peer address -> sorted-free
// list of keys, suitable for building a client_list payload.
func (d *Directory) Snapshot() map[string][]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string][]string, len(d.addrToKeys))
	for addr, keys := range d.addrToKeys {
		list := make([]string, 0, len(keys))
		for k := range keys {
			list = append(list, k)
		}
		out[addr] = list
	}
	return out
}

// AllKeys returns every public key currently known across all peer
// partitions, used as the candidate set for signature verification
// (spec.md §4.1 "against a set of candidate public keys").
func (d *Directory) AllKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, 0, len(d.keyToAddr))
	for k := range d.keyToAddr {
		out = append(out, k)
	}
	return out
}

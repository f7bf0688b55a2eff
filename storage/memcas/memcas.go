// Package memcas is an in-memory content-addressable store.
//
// It backs tests and the vault daemon's throwaway mode; nothing survives
// the process. Semantics match every other VeriBound CAS: immutable
// objects, CIDs derived from the stored bytes.
package memcas

import (
	"flag"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
	"github.com/dhwcmoore/veribound-mvp/storage"
	"github.com/dhwcmoore/veribound-mvp/storage/casregistry"
)

// CAS stores objects in a map keyed by CID string. Safe for concurrent use.
type CAS struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func New() *CAS {
	return &CAS{objects: make(map[string][]byte)}
}

var _ storage.CAS = (*CAS)(nil)

func (c *CAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	cp := make([]byte, len(bytes))
	copy(cp, bytes)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Idempotent by construction: identical bytes map to the identical CID,
	// so an existing entry can only ever hold the same content.
	c.objects[id.String()] = cp
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.objects[id.String()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	_, ok := c.objects[id.String()]
	c.mu.RUnlock()
	return ok
}

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "mem",
		Description: "In-memory CAS (non-persistent; for tests and throwaway vaults)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			// No configuration.
			_ = fs
		},
		Open: func() (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
	})
}

package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

// NamedCAS associates a CAS with a stable backend name.
//
// Multi-backend orchestration keeps per-backend metadata (for audit
// reporting: which vaults hold a given sealed record).
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes to all configured backends.
//
// Reads fall back in order. Writes go to all backends and require all returned
// CIDs to match (otherwise ErrCIDMismatch is returned).
//
// Use PutAll when you need the per-backend CID mapping.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = (*ReplicatingCAS)(nil)

func (r ReplicatingCAS) checkBackends() error {
	if len(r.Backends) == 0 {
		return fmt.Errorf("storage: ReplicatingCAS has no backends")
	}
	for _, b := range r.Backends {
		if b.CAS == nil {
			return fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
	}
	return nil
}

// PutAll writes the same bytes to every backend and returns the canonical
// CID (computed locally from the bytes) plus a backend-name-to-CID map.
//
// A backend that files the evidence under any other CID fails the whole
// write with ErrCIDMismatch; the partial map is returned so the caller can
// report which vault diverged.
func (r ReplicatingCAS) PutAll(data []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	if !want.Defined() {
		return cid.Undef, nil, ErrInvalidCID
	}
	if err := r.checkBackends(); err != nil {
		return cid.Undef, nil, err
	}

	placed := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		got, err := b.CAS.Put(data)
		if err != nil {
			return cid.Undef, nil, err
		}
		placed[b.Name] = got
		if got != want {
			return cid.Undef, placed, ErrCIDMismatch
		}
	}
	return want, placed, nil
}

func (r ReplicatingCAS) Put(data []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(data)
	return id, err
}

// Get reads from the first backend holding the block. Only ErrNotFound
// falls through to the next backend; any other failure stops the scan.
func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.CAS == nil {
			continue
		}
		data, err := b.CAS.Get(id)
		switch {
		case err == nil:
			return data, nil
		case IsNotFound(err):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}

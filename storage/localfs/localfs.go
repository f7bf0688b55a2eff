// Package localfs is the filesystem-backed evidence store: one immutable
// file per object, keyed strictly by CID.
package localfs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
	"github.com/dhwcmoore/veribound-mvp/storage"
)

// CAS is a local filesystem-backed content-addressable store.
//
// This implementation is offline and deterministic: it never uses the
// network and never depends on wall-clock time. Stored files are created
// read-only with O_EXCL, so a seal vault on disk cannot be silently
// rewritten through this adapter.
type CAS struct {
	root string
}

// New constructs a filesystem CAS rooted at root. The directory will be created if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}
	if err := c.writeExclusive(path, data); err != nil {
		if os.IsExist(err) {
			return c.reconcileExisting(id, data)
		}
		return cid.Undef, err
	}
	return id, nil
}

// writeExclusive creates path read-only with O_EXCL and fsyncs the
// content. A partial write removes the file so a rerun can retry cleanly.
func (c *CAS) writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		return err
	}

	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return werr
	}
	return nil
}

// reconcileExisting decides whether an already-present file satisfies the
// Put. Same bytes under the same CID is an idempotent success; anything
// else is an immutability violation Put must not repair.
func (c *CAS) reconcileExisting(id cid.Cid, data []byte) (cid.Cid, error) {
	existing, err := c.Get(id)
	if err != nil {
		return cid.Undef, storage.ErrImmutable
	}
	if !bytes.Equal(existing, data) {
		return cid.Undef, storage.ErrImmutable
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	data, err := os.ReadFile(c.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	// Re-hash on every read. A flipped bit on disk must surface as
	// ErrCIDMismatch, never as valid evidence.
	got, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return data, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

// pathFor shards by the first two characters of the CID string to keep
// directory fan-out bounded.
func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[:2], s)
}

// Package storage defines the content-addressed evidence store the
// VeriBound pipeline persists into: sealed records, boundary policies, and
// verification reports are all immutable byte artifacts keyed by CID.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written (callers are responsible for supplying canonical bytes).
// - Get MUST return ErrNotFound when the CID is absent.
//
// The CID contract across VeriBound is CIDv1 raw + sha2-256
// (cidutil.CIDv1RawSHA256CID). Adapters validate bytes against the
// requested CID on read, so a store can never silently hand back evidence
// that does not match the identity it was asked for.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

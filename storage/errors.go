package storage

import "errors"

// Sentinel errors shared by every evidence store backend. Backends wrap
// their own detail around these so callers can branch with errors.Is
// without knowing which backend is in play.
var (
	// ErrNotFound reports that no object exists under the requested CID.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidCID reports a CID that is undefined or not the
	// CIDv1 raw + sha2-256 form this store requires.
	ErrInvalidCID = errors.New("storage: invalid cid")
	// ErrCIDMismatch reports stored bytes whose recomputed CID differs
	// from the CID they were filed under.
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	// ErrImmutable reports an attempt to replace an existing object with
	// different bytes. Sealed evidence is written once.
	ErrImmutable = errors.New("storage: immutable object mismatch")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Package seal produces and verifies tamper-evident seals over
// classification results.
//
// A seal is the SHA-256 digest of the canonical serialization of a result
// payload. Verification recomputes the digest from the stored payload and
// compares it to the stored hash with exact string equality: any change to
// the payload after sealing surfaces as a mismatch. A mismatch is a normal
// verification outcome, not an error.
package seal

import (
	"encoding/json"
	"math"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

// IrrationalSignature is the fixed constant stored in every sealed record
// under the "irrational_signature" key. It is a format marker only: the
// value is public, constant, and proves nothing about who produced the
// record. Authenticity, when required, comes from the attest package's
// signed attestations.
const IrrationalSignature = math.Pi

// DigestHex returns the lowercase 64-character hex SHA-256 digest of b.
func DigestHex(b []byte) string {
	return cidutil.SHA256Hex(b)
}

// Record is a sealed result payload.
type Record struct {
	// Results holds the canonical serialization of the sealed payload.
	Results json.RawMessage
	// SealHash is the lowercase hex SHA-256 digest of Results.
	SealHash string
	// IrrationalSignature is the stored format-marker constant.
	IrrationalSignature float64
}

// Seal canonicalizes results and returns the sealed record.
func Seal(results any) (*Record, error) {
	canon, err := Canonicalize(results)
	if err != nil {
		return nil, err
	}
	return newRecord(canon), nil
}

// SealJSON seals an already-encoded JSON payload.
func SealJSON(raw []byte) (*Record, error) {
	canon, err := CanonicalizeJSON(raw)
	if err != nil {
		return nil, err
	}
	return newRecord(canon), nil
}

func newRecord(canon []byte) *Record {
	return &Record{
		Results:             canon,
		SealHash:            DigestHex(canon),
		IrrationalSignature: IrrationalSignature,
	}
}

// Verdict is the outcome of verifying a sealed record.
type Verdict struct {
	OK           bool   `json:"ok"`
	StoredHash   string `json:"stored_hash"`
	ComputedHash string `json:"computed_hash,omitempty"`
	Message      string `json:"message"`
}

// Verify recomputes the seal over the record's results and compares it to
// the stored hash. The stored payload may carry any formatting: it is
// re-canonicalized before hashing, so only logical changes to the results
// (or a corrupted hash) produce a mismatch.
func Verify(rec *Record) Verdict {
	canon, err := CanonicalizeJSON(rec.Results)
	if err != nil {
		return Verdict{
			StoredHash: rec.SealHash,
			Message:    "seal mismatch: results not canonicalizable: " + err.Error(),
		}
	}
	computed := DigestHex(canon)
	if computed != rec.SealHash {
		return Verdict{
			StoredHash:   rec.SealHash,
			ComputedHash: computed,
			Message:      "seal mismatch: record tampered or corrupted",
		}
	}
	return Verdict{
		OK:           true,
		StoredHash:   rec.SealHash,
		ComputedHash: computed,
		Message:      "seal verified",
	}
}

// VerifyBytes parses a persisted sealed record and verifies it. A
// structurally malformed record is an error; a well-formed record that
// fails verification is a Verdict with OK=false.
func VerifyBytes(data []byte) (Verdict, error) {
	rec, err := ParseRecord(data)
	if err != nil {
		return Verdict{}, err
	}
	return Verify(rec), nil
}

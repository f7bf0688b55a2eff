package storage

import (
	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/seal"
)

// PutRecord encodes a sealed record into its persisted layout and stores
// it. The returned CID identifies the exact encoded bytes; because the
// encoding is canonical, sealing the same results twice stores the same
// object.
func PutRecord(cas CAS, rec *seal.Record) (cid.Cid, error) {
	b, err := seal.EncodeRecord(rec)
	if err != nil {
		return cid.Undef, err
	}
	return cas.Put(b)
}

// GetRecord loads and parses a stored sealed record. Byte integrity
// against the CID is the adapter's job; this only adds the record-shape
// parse.
func GetRecord(cas CAS, id cid.Cid) (*seal.Record, error) {
	b, err := cas.Get(id)
	if err != nil {
		return nil, err
	}
	return seal.ParseRecord(b)
}

// VerifyRecord loads a stored sealed record and runs seal verification
// over it. A record that fails to parse is an error; a parsed record that
// fails verification is a Verdict with OK=false.
func VerifyRecord(cas CAS, id cid.Cid) (seal.Verdict, error) {
	rec, err := GetRecord(cas, id)
	if err != nil {
		return seal.Verdict{}, err
	}
	return seal.Verify(rec), nil
}

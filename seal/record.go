package seal

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Persisted layout. Key order is fixed and the encoding carries no
// trailing newline:
//
//	{"results":<canonical payload>,"seal_hash":"<64 hex>","irrational_signature":3.141592653589793}

// EncodeRecord renders the persisted sealed-record layout. The results
// payload is re-canonicalized, so hand-built records encode the same bytes
// Seal would have produced.
func EncodeRecord(rec *Record) ([]byte, error) {
	canon, err := CanonicalizeJSON(rec.Results)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"results":`)
	buf.Write(canon)
	buf.WriteString(`,"seal_hash":"`)
	buf.WriteString(rec.SealHash)
	buf.WriteString(`","irrational_signature":`)
	if err := writeCanonicalNumber(&buf, rec.IrrationalSignature); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type recordEnvelope struct {
	Results             json.RawMessage `json:"results"`
	SealHash            *string         `json:"seal_hash"`
	IrrationalSignature *float64        `json:"irrational_signature"`
}

// ParseRecord reads a persisted sealed record.
//
// The envelope is strict: all three fields must be present, no unknown
// fields, seal_hash must be 64 lowercase hex characters. The stored
// results payload is kept as-is; Verify re-canonicalizes it, so interior
// whitespace or key order introduced by other tooling does not break
// verification.
func ParseRecord(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var env recordEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, wrapError(KindParse, "VB-REC-401", "not a sealed record", err)
	}
	if dec.More() {
		return nil, newError(KindParse, "VB-REC-402", "trailing data after sealed record")
	}
	if env.Results == nil {
		return nil, newError(KindParse, "VB-REC-403", "sealed record missing results")
	}
	if env.SealHash == nil {
		return nil, newError(KindParse, "VB-REC-404", "sealed record missing seal_hash")
	}
	if env.IrrationalSignature == nil {
		return nil, newError(KindParse, "VB-REC-405", "sealed record missing irrational_signature")
	}
	if !isHexDigest(*env.SealHash) {
		return nil, newError(KindParse, "VB-REC-406",
			"seal_hash is not a 64-character lowercase hex digest: "+strconv.Quote(*env.SealHash))
	}
	return &Record{
		Results:             env.Results,
		SealHash:            *env.SealHash,
		IrrationalSignature: *env.IrrationalSignature,
	}, nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Package attest implements the VeriBound attestation text format
// (veribound-att-1): canonical, line-oriented attestations that bind an
// issuer's signed claims to sealed records and boundary policies by CID.
package attest

import (
	"bytes"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

// SectionOrder defines the canonical order of attestation sections.
var SectionOrder = []string{"META", "SUBJECT", "CLAIMS", "CRYPTO"}

const (
	Preamble  = "-----BEGIN VERIBOUND ATTESTATION-----"
	Postamble = "-----END VERIBOUND ATTESTATION-----"
)

// Attestation is a parsed, canonical attestation.
//
// The canonical bytes and the signature scope are held internally;
// CanonicalBytes and SignedBytes return defensive copies so callers
// cannot mutate parsed state.
type Attestation struct {
	Sections map[string]Section

	raw    []byte // canonical bytes
	signed []byte // signature scope: preamble through the blank line before CRYPTO
}

type Section struct {
	Name  string
	Pairs map[string]string // key-value pairs, canonically sorted
}

// Parse parses an attestation and enforces the v1 canonical serialization
// rules. Non-canonical inputs are rejected with structured errors.
func Parse(data []byte) (*Attestation, error) {
	if err := applyParseRules(data, parseRulesV1()); err != nil {
		return nil, err
	}

	parsed, err := parseSectionsV1(data)
	if err != nil {
		return nil, err
	}
	sections := parsed.sections

	// Enforce full canonical byte identity by re-rendering and comparing.
	// This makes Parse strictly reject any non-canonical input the
	// line-level rules cannot see.
	canonical, rerr := Render(Document{
		Meta:    sections["META"].Pairs,
		Subject: sections["SUBJECT"].Pairs,
		Claims:  sections["CLAIMS"].Pairs,
		Crypto:  sections["CRYPTO"].Pairs,
	})
	if rerr != nil {
		return nil, rerr
	}
	if !bytes.Equal(data, canonical) {
		return nil, newError(KindCanonical, "VB-ATT-CANON-004", "non-canonical attestation")
	}

	signed, err := signedScopeFromCanonical(canonical)
	if err != nil {
		return nil, err
	}
	return &Attestation{Sections: sections, raw: canonical, signed: signed}, nil
}

// CanonicalBytes returns a copy of the canonical attestation bytes.
func (a *Attestation) CanonicalBytes() []byte {
	if a == nil {
		return nil
	}
	return append([]byte(nil), a.raw...)
}

// SignedBytes returns a copy of the bytes covered by the signature.
func (a *Attestation) SignedBytes() []byte {
	if a == nil {
		return nil
	}
	return append([]byte(nil), a.signed...)
}

// CID returns the CIDv1 (raw + sha2-256) of the canonical attestation
// bytes.
func (a *Attestation) CID() (string, error) {
	if a == nil || len(a.raw) == 0 {
		return "", newError(KindCID, "VB-ATT-CID-001", "nil attestation")
	}
	canon, err := CanonicalizeAttestation(a.raw)
	if err != nil {
		return "", wrapError(KindCID, "VB-ATT-CID-002", "attestation bytes are not canonical", err)
	}
	return cidutil.CIDv1RawSHA256(canon), nil
}

// SubjectCID returns the CID of the attested subject, or "".
func (a *Attestation) SubjectCID() string {
	if sec, ok := a.Sections["SUBJECT"]; ok {
		return sec.Pairs["CID"]
	}
	return ""
}

// SubjectType returns the declared subject type (for example
// "sealed-record" or "boundary-policy"), or "".
func (a *Attestation) SubjectType() string {
	if sec, ok := a.Sections["SUBJECT"]; ok {
		return sec.Pairs["Type"]
	}
	return ""
}

// ClaimType returns the claim type, or "".
func (a *Attestation) ClaimType() string {
	if sec, ok := a.Sections["CLAIMS"]; ok {
		return sec.Pairs["Type"]
	}
	return ""
}

// IssuerKey returns the encoded issuer public key, or "".
func (a *Attestation) IssuerKey() string {
	if sec, ok := a.Sections["CRYPTO"]; ok {
		return sec.Pairs["Issuer-Key"]
	}
	return ""
}

// signedScopeFromCanonical extracts the signature scope from canonical
// bytes: everything from the preamble through the blank line that
// precedes the CRYPTO header. The CRYPTO section itself, where the
// signature lives, is excluded.
func signedScopeFromCanonical(canonical []byte) ([]byte, error) {
	marker := []byte("\nCRYPTO\n")
	idx := bytes.Index(canonical, marker)
	if idx < 0 {
		return nil, newError(KindInternal, "VB-ATT-INTERNAL-003", "cannot determine signature scope")
	}
	return append([]byte(nil), canonical[:idx+1]...), nil
}

func isSectionHeader(line string) bool {
	for _, s := range SectionOrder {
		if line == s {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

package attest

import (
	"bytes"
	"errors"
)

// NormalizeAttestation canonicalizes an attestation by parsing into the
// section model and re-rendering under the canonical rendering rules.
//
// Unlike Parse, NormalizeAttestation tolerates some non-canonical
// byte-level forms (optional UTF-8 BOM, CRLF line endings, and trailing
// newlines) and produces canonical output bytes. Structural violations
// such as unsorted keys or non-canonical field spacing are still
// rejected: they change the (section,key,value) model or are
// indistinguishable from data corruption.
func NormalizeAttestation(input []byte) ([]byte, error) {
	b := input

	// Tolerate a UTF-8 BOM by removing it.
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		b = b[3:]
	}

	// Tolerate CRLF by normalizing to LF; reject bare CR.
	if bytes.Contains(b, []byte("\r")) {
		b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
		if bytes.Contains(b, []byte("\r")) {
			return nil, newError(KindCanonical, "VB-ATT-CANON-001", "CR line endings not allowed")
		}
	}

	// Tolerate trailing newlines by trimming them.
	for len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}

	// Validate the remaining byte-level invariants that we still require.
	if err := applyParseRules(b, parseRulesV1()); err != nil {
		return nil, err
	}

	parsed, err := parseSectionsV1(b)
	if err != nil {
		return nil, err
	}
	sections := parsed.sections

	canonical, rerr := Render(Document{
		Meta:    sections["META"].Pairs,
		Subject: sections["SUBJECT"].Pairs,
		Claims:  sections["CLAIMS"].Pairs,
		Crypto:  sections["CRYPTO"].Pairs,
	})
	if rerr != nil {
		var e *Error
		if errors.As(rerr, &e) {
			return nil, rerr
		}
		return nil, wrapError(KindRender, "VB-ATT-RENDER-001", "render failure", rerr)
	}

	// Defensive: ensure output is strict-canonical according to Parse.
	if _, perr := Parse(canonical); perr != nil {
		return nil, perr
	}

	return canonical, nil
}

package attest

import (
	"bytes"
	"strings"
	"testing"
)

func TestNormalizeAttestation_ToleratesCRLFAndBOMAndTrailingNewlines(t *testing.T) {
	canonical := validAttestationBytes(t)

	crlf := []byte(strings.ReplaceAll(string(canonical), "\n", "\r\n"))
	if _, err := Parse(crlf); err == nil {
		t.Fatalf("expected Parse(CRLF) to reject non-canonical bytes")
	}
	norm, err := NormalizeAttestation(crlf)
	if err != nil {
		t.Fatalf("NormalizeAttestation(CRLF): %v", err)
	}
	if !bytes.Equal(norm, canonical) {
		t.Fatalf("normalized CRLF bytes differ from canonical")
	}

	bom := append([]byte{0xEF, 0xBB, 0xBF}, canonical...)
	norm, err = NormalizeAttestation(bom)
	if err != nil {
		t.Fatalf("NormalizeAttestation(BOM): %v", err)
	}
	if !bytes.Equal(norm, canonical) {
		t.Fatalf("normalized BOM bytes differ from canonical")
	}

	trailing := append(append([]byte(nil), canonical...), '\n', '\n')
	norm, err = NormalizeAttestation(trailing)
	if err != nil {
		t.Fatalf("NormalizeAttestation(trailing newlines): %v", err)
	}
	if !bytes.Equal(norm, canonical) {
		t.Fatalf("normalized trailing-newline bytes differ from canonical")
	}
}

func TestNormalizeAttestation_DoesNotFixDoubleSpaceDelimiter(t *testing.T) {
	canonical := validAttestationBytes(t)
	doubleSpace := []byte(strings.Replace(string(canonical), "Spec: ", "Spec:  ", 1))
	if _, err := NormalizeAttestation(doubleSpace); err == nil {
		t.Fatalf("expected NormalizeAttestation to reject double-space delimiter variant")
	}
}

func TestNormalizeAttestation_DoesNotFixUnsortedKeys(t *testing.T) {
	nonCanonical := []byte(
		Preamble + "\n" +
			"META\n" +
			"Version: 1\n" +
			"Spec: veribound-att-1\n" +
			"\n" +
			"SUBJECT\n" +
			"Type: sealed-record\n" +
			"CID: bafy-record-1\n" +
			"\n" +
			"CLAIMS\n" +
			"Type: seal-witness\n" +
			"Seal-Hash: " + testSealHash + "\n" +
			"\n" +
			"CRYPTO\n" +
			"Signature: AA==\n" +
			"Signature-Alg: ed25519\n" +
			"Issuer-Key: ed25519:AA==\n" +
			"Hash-Alg: sha256\n" +
			Postamble,
	)

	if _, err := Parse(nonCanonical); err == nil {
		t.Fatalf("expected Parse to reject unsorted keys")
	}
	if _, err := NormalizeAttestation(nonCanonical); err == nil {
		t.Fatalf("expected NormalizeAttestation to reject unsorted keys variant")
	}
}

func TestNormalizeAttestation_IdentityOnCanonical(t *testing.T) {
	canonical := validAttestationBytes(t)
	norm, err := NormalizeAttestation(canonical)
	if err != nil {
		t.Fatalf("NormalizeAttestation(canonical): %v", err)
	}
	if !bytes.Equal(norm, canonical) {
		t.Fatalf("NormalizeAttestation should be identity on canonical bytes")
	}
}

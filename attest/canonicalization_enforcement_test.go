package attest

import (
	"bytes"
	"strings"
	"testing"
)

func TestRender_IsDeterministicAcrossMapInsertionOrder(t *testing.T) {
	// Same semantic document, different map insertion order.
	m1 := map[string]string{}
	m1["Version"] = "1"
	m1["Spec"] = "veribound-att-1"

	m2 := map[string]string{}
	m2["Spec"] = "veribound-att-1"
	m2["Version"] = "1"

	d1 := Document{
		Meta:    m1,
		Subject: map[string]string{"CID": "bafy-record-1", "Type": "sealed-record"},
		Claims:  map[string]string{"Type": "seal-witness", "Seal-Hash": testSealHash},
		Crypto:  map[string]string{"Hash-Alg": "sha256", "Issuer-Key": "ed25519:AA==", "Signature-Alg": "ed25519", "Signature": "AA=="},
	}
	d2 := Document{
		Meta:    m2,
		Subject: map[string]string{"Type": "sealed-record", "CID": "bafy-record-1"},
		Claims:  map[string]string{"Seal-Hash": testSealHash, "Type": "seal-witness"},
		Crypto:  map[string]string{"Signature": "AA==", "Signature-Alg": "ed25519", "Issuer-Key": "ed25519:AA==", "Hash-Alg": "sha256"},
	}

	b1, err := Render(d1)
	if err != nil {
		t.Fatalf("Render(d1): %v", err)
	}
	b2, err := Render(d2)
	if err != nil {
		t.Fatalf("Render(d2): %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("Render output must be byte-identical for equivalent Documents")
	}

	// Repeated runs must stay stable.
	for i := 0; i < 25; i++ {
		bi, err := Render(d1)
		if err != nil {
			t.Fatalf("Render(d1) run %d: %v", i, err)
		}
		if !bytes.Equal(b1, bi) {
			t.Fatalf("Render output changed across runs")
		}
	}
}

func TestCanonicalizeAttestation_RejectsNonCanonicalInput(t *testing.T) {
	canonical := validAttestationBytes(t)

	// Canonical input is accepted and preserved.
	canon, err := CanonicalizeAttestation(canonical)
	if err != nil {
		t.Fatalf("CanonicalizeAttestation(canonical): %v", err)
	}
	if !bytes.Equal(canon, canonical) {
		t.Fatalf("CanonicalizeAttestation must be identity on canonical bytes")
	}

	// Non-canonical variants must fail loudly.
	crlf := []byte(strings.ReplaceAll(string(canonical), "\n", "\r\n"))
	if _, err := CanonicalizeAttestation(crlf); err == nil {
		t.Fatalf("expected CanonicalizeAttestation(CRLF) to reject non-canonical bytes")
	}

	doubleSpace := []byte(strings.Replace(string(canonical), "Spec: ", "Spec:  ", 1))
	if _, err := CanonicalizeAttestation(doubleSpace); err == nil {
		t.Fatalf("expected CanonicalizeAttestation(double-space) to reject non-canonical bytes")
	}

	if _, err := CanonicalizeAttestation(append(append([]byte(nil), canonical...), '\n')); err == nil {
		t.Fatalf("expected CanonicalizeAttestation(trailing newline) to reject non-canonical bytes")
	}
}

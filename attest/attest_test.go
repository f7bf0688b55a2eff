package attest

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dhwcmoore/veribound-mvp/keys"
)

const testSealHash = "aa11bb22cc33dd44ee55ff660011223344556677889900aabbccddeeff001122"

func mustKeypair(t *testing.T, seedByte byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return pub, priv
}

func issuerKey(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	k, err := keys.IssuerKeyFromPublicKey(pub)
	if err != nil {
		t.Fatalf("IssuerKeyFromPublicKey: %v", err)
	}
	return k
}

func validAttestationBytes(t *testing.T) []byte {
	t.Helper()
	pub, priv := mustKeypair(t, 0xA1)

	// First render with a placeholder Signature to compute the signed scope.
	doc := Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": "bafy-record-1", "Seal-Hash": testSealHash, "Type": "sealed-record"},
		Claims:  map[string]string{"Seal-Hash": testSealHash, "Type": "seal-witness"},
		Crypto: map[string]string{
			"Hash-Alg":      "sha256",
			"Issuer-Key":    issuerKey(t, pub),
			"Signature":     "0",
			"Signature-Alg": "ed25519",
		},
	}
	pre, err := Render(doc)
	if err != nil {
		t.Fatalf("render pre: %v", err)
	}
	parsed, err := Parse(pre)
	if err != nil {
		t.Fatalf("parse pre: %v", err)
	}

	doc.Crypto["Signature"] = keys.SignEd25519SHA256(parsed.SignedBytes(), priv)
	out, err := Render(doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	final, err := Parse(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := final.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return out
}

func TestParseValidAttestation(t *testing.T) {
	a, err := Parse(validAttestationBytes(t))
	if err != nil {
		t.Fatalf("expected valid attestation, got error: %v", err)
	}
	if a.ClaimType() != "seal-witness" {
		t.Errorf("expected Type=seal-witness, got %v", a.ClaimType())
	}
	if a.SubjectCID() != "bafy-record-1" {
		t.Errorf("expected subject CID bafy-record-1, got %v", a.SubjectCID())
	}
	if a.SubjectType() != "sealed-record" {
		t.Errorf("expected subject type sealed-record, got %v", a.SubjectType())
	}
	if len(a.SignedBytes()) == 0 {
		t.Fatalf("expected non-empty signed bytes")
	}
	if err := ValidateCoreClaims(a); err != nil {
		t.Fatalf("ValidateCoreClaims: %v", err)
	}
}

func TestParseInvalid_MissingPreamble(t *testing.T) {
	_, err := Parse([]byte("META\nVersion: 1\n"))
	if err == nil {
		t.Error("expected error for missing preamble")
	}
}

func TestParseInvalid_TrailingWhitespace(t *testing.T) {
	good := string(validAttestationBytes(t))
	bad := good[:len(good)-1] + " "
	if _, err := Parse([]byte(bad)); err == nil {
		t.Error("expected error for trailing whitespace")
	}
}

func TestParseInvalid_UnsortedKeys(t *testing.T) {
	bad := Preamble + `
META
Version: 1
Spec: veribound-att-1

SUBJECT
CID: bafy-record-1
Type: sealed-record

CLAIMS
Type: seal-witness
Seal-Hash: ` + testSealHash + `

CRYPTO
Issuer-Key: ed25519:AA==
Signature-Alg: ed25519
Hash-Alg: sha256
Signature: AA==
` + Postamble
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for unsorted keys")
	}
}

func TestVerify_RejectsMutatedSignedScope(t *testing.T) {
	a, err := Parse(validAttestationBytes(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify (baseline): %v", err)
	}

	// Verify must be derived from canonical bytes, not caller-controlled
	// fields; mutating the returned copy must not change the outcome.
	signed := a.SignedBytes()
	if len(signed) == 0 {
		t.Fatalf("expected non-empty signed scope")
	}
	signed[0] ^= 0x01
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify should remain stable after mutating SignedBytes() copy: %v", err)
	}
}

func TestCID_RejectsMutatedRawBytes(t *testing.T) {
	a, err := Parse(validAttestationBytes(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := a.CID(); err != nil {
		t.Fatalf("CID (baseline): %v", err)
	}

	raw := a.CanonicalBytes()
	if len(raw) == 0 {
		t.Fatalf("expected non-empty raw bytes")
	}
	raw[0] ^= 0x01
	if _, err := a.CID(); err != nil {
		t.Fatalf("CID should remain stable after mutating CanonicalBytes() copy: %v", err)
	}
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify should remain stable after mutating CanonicalBytes() copy: %v", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	good := validAttestationBytes(t)
	text := string(good)
	forged := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
	start := strings.Index(text, "Signature: ")
	end := strings.Index(text[start:], "\n") + start
	text = text[:start] + "Signature: " + forged + text[end:]
	a, err := Parse([]byte(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := a.Verify(); err == nil {
		t.Fatalf("expected verify error")
	}
}

func TestParseInvalid_ExtraBlankLineBetweenSections(t *testing.T) {
	good := string(validAttestationBytes(t))
	bad := strings.Replace(good, "\n\nSUBJECT\n", "\n\n\nSUBJECT\n", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatalf("expected error for extra blank line between sections")
	}
}

func TestParseInvalid_MissingBlankLineBetweenSections(t *testing.T) {
	good := string(validAttestationBytes(t))
	bad := strings.Replace(good, "\n\nSUBJECT\n", "\nSUBJECT\n", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatalf("expected error for missing blank line between sections")
	}
}

func TestParseInvalid_DoubleSpaceAfterColon(t *testing.T) {
	good := string(validAttestationBytes(t))
	bad := strings.Replace(good, "Spec: veribound-att-1", "Spec:  veribound-att-1", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatalf("expected error for non-canonical spacing after colon")
	}
}

func TestParseInvalid_NonUTF8(t *testing.T) {
	good := validAttestationBytes(t)
	bad := append([]byte(nil), good...)
	bad[10] = 0xFF
	if _, err := Parse(bad); err == nil {
		t.Fatalf("expected error for non-UTF8 input")
	}
}

func TestParseInvalid_TrailingNewline(t *testing.T) {
	good := validAttestationBytes(t)
	bad := append(append([]byte(nil), good...), '\n')
	if _, err := Parse(bad); err == nil {
		t.Fatalf("expected error for trailing newline")
	}
}

func TestValidateCoreClaims_SealWitnessMismatch(t *testing.T) {
	otherHash := strings.Repeat("ab", 32)
	doc := Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": "bafy-record-1", "Seal-Hash": testSealHash, "Type": "sealed-record"},
		Claims:  map[string]string{"Seal-Hash": otherHash, "Type": "seal-witness"},
		Crypto: map[string]string{
			"Hash-Alg":      "sha256",
			"Issuer-Key":    "ed25519:AA==",
			"Signature":     "AA==",
			"Signature-Alg": "ed25519",
		},
	}
	b, err := Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parsed, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	verr := ValidateCoreClaims(parsed)
	if verr == nil {
		t.Fatal("expected validation error for mismatched Seal-Hash")
	}
	if RuleID(verr) != "VB-ATT-VAL-253" {
		t.Fatalf("expected VB-ATT-VAL-253, got %s", RuleID(verr))
	}
}

func TestValidateCoreClaims_SealWitnessBadHash(t *testing.T) {
	doc := Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": "bafy-record-1", "Type": "sealed-record"},
		Claims:  map[string]string{"Seal-Hash": "NOT-A-DIGEST", "Type": "seal-witness"},
		Crypto: map[string]string{
			"Hash-Alg":      "sha256",
			"Issuer-Key":    "ed25519:AA==",
			"Signature":     "AA==",
			"Signature-Alg": "ed25519",
		},
	}
	b, err := Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parsed, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	verr := ValidateCoreClaims(parsed)
	if verr == nil {
		t.Fatal("expected validation error for malformed Seal-Hash")
	}
	if RuleID(verr) != "VB-ATT-VAL-252" {
		t.Fatalf("expected VB-ATT-VAL-252, got %s", RuleID(verr))
	}
}

func TestValidateCoreClaims_ApprovalRequiresEffectiveDate(t *testing.T) {
	doc := Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": "bafy-record-1", "Type": "sealed-record"},
		Claims:  map[string]string{"Role": "compliance-officer", "Type": "approval"},
		Crypto: map[string]string{
			"Hash-Alg":      "sha256",
			"Issuer-Key":    "ed25519:AA==",
			"Signature":     "AA==",
			"Signature-Alg": "ed25519",
		},
	}
	b, err := Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parsed, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	verr := ValidateCoreClaims(parsed)
	if verr == nil {
		t.Fatal("expected validation error for missing Effective-Date")
	}
	if RuleID(verr) != "VB-ATT-VAL-212" {
		t.Fatalf("expected VB-ATT-VAL-212, got %s", RuleID(verr))
	}
}

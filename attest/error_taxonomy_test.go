package attest

import (
	"errors"
	"testing"
)

func TestParse_ErrorTaxonomy_UTF8RuleID(t *testing.T) {
	bad := []byte{0xff, 0xfe, 0xfd}
	_, err := Parse(bad)
	if err == nil {
		t.Fatalf("expected error")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected structured *attest.Error, got %T", err)
	}
	if e.Kind != KindParse {
		t.Fatalf("expected KindParse, got %s", e.Kind)
	}
	if e.RuleID != "VB-ATT-STR-001" {
		t.Fatalf("expected RuleID VB-ATT-STR-001, got %s", e.RuleID)
	}
}

func TestParse_ErrorTaxonomy_CRLFRuleID(t *testing.T) {
	bad := []byte(Preamble + "\r\n")
	// Suffix checks will fail too, but CRLF is checked early.
	_, err := Parse(bad)
	if err == nil {
		t.Fatalf("expected error")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected structured *attest.Error, got %T", err)
	}
	if e.Kind != KindCanonical {
		t.Fatalf("expected KindCanonical, got %s", e.Kind)
	}
	if e.RuleID != "VB-ATT-CANON-001" {
		t.Fatalf("expected RuleID VB-ATT-CANON-001, got %s", e.RuleID)
	}
}

func TestValidateCoreClaims_ErrorTaxonomy_RuleID(t *testing.T) {
	// Structurally canonical attestation with no claim Type; triggers VB-ATT-VAL-102.
	doc := Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": "bafy-record-1", "Type": "sealed-record"},
		Claims:  map[string]string{"Note": "n"},
		Crypto:  map[string]string{"Hash-Alg": "sha256", "Issuer-Key": "ed25519:AA==", "Signature": "AA==", "Signature-Alg": "ed25519"},
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
		t.Fatalf("expected validation error")
	}
	var e *Error
	if !errors.As(verr, &e) {
		t.Fatalf("expected structured *attest.Error, got %T", verr)
	}
	if e.Kind != KindValidation {
		t.Fatalf("expected KindValidation, got %s", e.Kind)
	}
	if e.RuleID != "VB-ATT-VAL-102" {
		t.Fatalf("expected RuleID VB-ATT-VAL-102, got %s", e.RuleID)
	}
}

func TestCID_ErrorTaxonomy_NilReceiver(t *testing.T) {
	var a *Attestation
	_, err := a.CID()
	if err == nil {
		t.Fatalf("expected error")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected structured *attest.Error, got %T", err)
	}
	if e.Kind != KindCID {
		t.Fatalf("expected KindCID, got %s", e.Kind)
	}
	if e.RuleID != "VB-ATT-CID-001" {
		t.Fatalf("expected RuleID VB-ATT-CID-001, got %s", e.RuleID)
	}
}

func TestVerify_ErrorTaxonomy_MissingSignatureAlg(t *testing.T) {
	// Omit Signature-Alg to force VB-ATT-CRYPTO-101.
	doc := Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": "bafy-record-1", "Type": "sealed-record"},
		Claims:  map[string]string{"Seal-Hash": testSealHash, "Type": "seal-witness"},
		Crypto:  map[string]string{"Hash-Alg": "sha256", "Issuer-Key": "ed25519:AA==", "Signature": "AA=="},
	}
	b, err := Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parsed, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	verr := parsed.Verify()
	if verr == nil {
		t.Fatalf("expected error")
	}
	var e *Error
	if !errors.As(verr, &e) {
		t.Fatalf("expected structured *attest.Error, got %T", verr)
	}
	if e.Kind != KindCrypto {
		t.Fatalf("expected KindCrypto, got %s", e.Kind)
	}
	if e.RuleID != "VB-ATT-CRYPTO-101" {
		t.Fatalf("expected RuleID VB-ATT-CRYPTO-101, got %s", e.RuleID)
	}
}

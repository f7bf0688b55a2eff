package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
)

func TestDeriveRoleSeedIsDeterministicPerRole(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	for i := range root {
		root[i] = byte(i)
	}

	analyst1, err := DeriveRoleSeed(root, "analyst")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	analyst2, err := DeriveRoleSeed(root, "analyst")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(analyst1) != string(analyst2) {
		t.Fatal("same root and role derived different seeds")
	}

	auditor, err := DeriveRoleSeed(root, "auditor")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(analyst1) == string(auditor) {
		t.Fatal("different roles derived the same seed")
	}
}

func TestDeriveRoleSeedRejectsBadInputs(t *testing.T) {
	if _, err := DeriveRoleSeed([]byte("short"), "analyst"); err == nil {
		t.Fatal("expected error for wrong seed size")
	}
	root := make([]byte, ed25519.SeedSize)
	if _, err := DeriveRoleSeed(root, "not a role!"); err == nil {
		t.Fatal("expected error for invalid role name")
	}
}

func TestGenerateIssuerKeyFromSeedFormat(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x42
	}
	issuerKey := GenerateIssuerKeyFromSeed(seed)
	if !strings.HasPrefix(issuerKey, "ed25519:") {
		t.Fatalf("issuer key = %q, want ed25519: prefix", issuerKey)
	}
	pubBytes, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(issuerKey, "ed25519:"))
	if err != nil {
		t.Fatalf("issuer key payload is not base64: %v", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		t.Fatalf("public key length = %d, want %d", len(pubBytes), ed25519.PublicKeySize)
	}
}

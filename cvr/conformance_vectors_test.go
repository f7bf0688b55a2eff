package cvr

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Conformance vectors are produced by internal/tools/cvrvector_gen. The
// tests skip when the vectors have not been generated so a fresh checkout
// still passes.
func TestConformanceVectors_CanonicalAndCID(t *testing.T) {
	root := filepath.Join("..", "testdata", "conformance", "cvr", "veribound-cvr-1")

	cvrBytes, err := os.ReadFile(filepath.Join(root, "reference_policy_1.cvr"))
	if err != nil {
		t.Skipf("conformance vector not generated: %v", err)
	}
	wantCIDBytes, err := os.ReadFile(filepath.Join(root, "reference_policy_1.cid"))
	if err != nil {
		t.Skipf("conformance vector not generated: %v", err)
	}
	wantCID := strings.TrimSpace(string(wantCIDBytes))
	if wantCID == "" {
		t.Fatal("empty expected CID")
	}

	canon, err := CanonicalizeCVR(cvrBytes)
	if err != nil {
		t.Fatalf("CanonicalizeCVR(canonical): %v", err)
	}
	if !bytes.Equal(canon, cvrBytes) {
		t.Fatal("canonical bytes mismatch")
	}
	if err := ValidateConsistency(cvrBytes); err != nil {
		t.Fatalf("ValidateConsistency: %v", err)
	}

	gotCID, err := CID(cvrBytes)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	if gotCID != wantCID {
		t.Fatalf("CID mismatch: got %s want %s", gotCID, wantCID)
	}
}

package cvr

import (
	"strings"
	"testing"
	"time"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

func TestSupersessionAccepted(t *testing.T) {
	old := renderReference(t, RenderOptions{})
	oldCID, err := CID(old)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}

	updated := renderReference(t, RenderOptions{SupersedesCVRCID: oldCID})
	if err := ValidateSupersession(updated, old); err != nil {
		t.Fatalf("ValidateSupersession: %v", err)
	}

	got, ok, err := SupersedesCVRCID(updated)
	if err != nil {
		t.Fatalf("SupersedesCVRCID: %v", err)
	}
	if !ok || got != oldCID {
		t.Fatalf("SupersedesCVRCID = %q, %v; want %q, true", got, ok, oldCID)
	}
}

func TestSupersessionRequiresDeclaration(t *testing.T) {
	old := renderReference(t, RenderOptions{})
	// Different bytes, but no Supersedes-CVR-CID declared.
	updated := renderReference(t, RenderOptions{
		VerifiedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	})
	err := ValidateSupersession(updated, old)
	if err == nil || !strings.Contains(err.Error(), "does not declare") {
		t.Fatalf("expected missing-declaration error, got %v", err)
	}
}

func TestSupersessionRejectsWrongTarget(t *testing.T) {
	old := renderReference(t, RenderOptions{})
	other := renderReference(t, RenderOptions{
		VerifiedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	})
	otherCID, err := CID(other)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}

	updated := renderReference(t, RenderOptions{SupersedesCVRCID: otherCID})
	err = ValidateSupersession(updated, old)
	if err == nil || !strings.Contains(err.Error(), "does not name") {
		t.Fatalf("expected target-mismatch error, got %v", err)
	}
}

func TestSupersessionRejectsDifferentPolicy(t *testing.T) {
	old := renderReference(t, RenderOptions{})
	oldCID, err := CID(old)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}

	otherPolicy := cidutil.CIDv1RawSHA256([]byte("a different policy"))
	rep := referenceSet(t).Verify(0, 100)
	updated := Render(rep, otherPolicy, 0, 100, RenderOptions{SupersedesCVRCID: oldCID})

	err = ValidateSupersession(updated, old)
	if err == nil || !strings.Contains(err.Error(), "Policy-CID differs") {
		t.Fatalf("expected policy-mismatch error, got %v", err)
	}
}

func TestSupersessionRejectsSelf(t *testing.T) {
	old := renderReference(t, RenderOptions{})
	err := ValidateSupersession(old, old)
	if err == nil || !strings.Contains(err.Error(), "identical") {
		t.Fatalf("expected identity error, got %v", err)
	}
}

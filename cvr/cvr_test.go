package cvr

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

func mustBand(t *testing.T, lo, hi float64, cat string) boundary.Boundary {
	t.Helper()
	b, err := boundary.New(lo, hi, cat)
	if err != nil {
		t.Fatalf("New(%v, %v, %q): %v", lo, hi, cat, err)
	}
	return b
}

func referenceSet(t *testing.T) *boundary.Set {
	t.Helper()
	s, err := boundary.Build([]boundary.Boundary{
		mustBand(t, 0, 4.5, "Critical"),
		mustBand(t, 4.5, 6, "Watch"),
		mustBand(t, 6, 8, "Adequate"),
		mustBand(t, 8, 100, "Strong"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func gappedSet(t *testing.T) *boundary.Set {
	t.Helper()
	s, err := boundary.Build([]boundary.Boundary{
		mustBand(t, 0, 50, "Low"),
		mustBand(t, 60, 100, "High"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func testPolicyCID(t *testing.T) string {
	t.Helper()
	return cidutil.CIDv1RawSHA256([]byte("test policy bytes"))
}

func renderReference(t *testing.T, opts RenderOptions) []byte {
	t.Helper()
	rep := referenceSet(t).Verify(0, 100)
	if !rep.Passed() {
		t.Fatalf("reference set should verify clean: %+v", rep.Failures())
	}
	return Render(rep, testPolicyCID(t), 0, 100, opts)
}

func TestRenderIsCanonical(t *testing.T) {
	out := renderReference(t, RenderOptions{})
	canonical, err := CanonicalizeCVR(out)
	if err != nil {
		t.Fatalf("CanonicalizeCVR: %v", err)
	}
	if !bytes.Equal(canonical, out) {
		t.Fatal("canonicalization changed rendered bytes")
	}
	if err := ValidateConsistency(out); err != nil {
		t.Fatalf("ValidateConsistency: %v", err)
	}
}

func TestRenderLayout(t *testing.T) {
	out := renderReference(t, RenderOptions{
		EngineID:   "veribound-engine-test",
		VerifiedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	s := string(out)

	if !strings.HasPrefix(s, Preamble+"\n") {
		t.Fatal("missing preamble")
	}
	if !strings.HasSuffix(s, Postamble+"\n") {
		t.Fatal("missing postamble")
	}
	for _, want := range []string{
		"\nMETA\n",
		"Engine-ID: veribound-engine-test\n",
		"Spec: veribound-cvr-1\n",
		"Verified-At: 2026-03-01T12:00:00Z\n",
		"\nINPUTS\nPolicy-CID: " + testPolicyCID(t) + "\n",
		"\nRESULT\n",
		"Checks-Failed: 0\n",
		"Checks-Total: 10\n",
		"Domain-Lower: 0\n",
		"Domain-Upper: 100\n",
		"Outcome: Passed\n",
		"\nCHECKS\nCheck-ID: VB-CHK-EXCLUSION\nName: mutual exclusion\nPassed: true\n",
		"Check-ID: VB-CHK-COVERAGE\nName: complete coverage\nPassed: true\n",
		"\nCRYPTO\n",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("rendered CVR missing %q\n%s", want, s)
		}
	}
	if strings.Contains(s, "Detail: ") {
		t.Fatal("clean run should have no Detail lines")
	}
}

func TestRenderDeterministic(t *testing.T) {
	opts := RenderOptions{
		EngineID:   "veribound-engine-test",
		VerifiedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	first := renderReference(t, opts)
	for i := 0; i < 50; i++ {
		if got := renderReference(t, opts); !bytes.Equal(got, first) {
			t.Fatalf("render %d differs from first render", i)
		}
	}
	id1, err := CID(first)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	id2, err := CID(renderReference(t, opts))
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("CID not stable: %s vs %s", id1, id2)
	}
}

func TestRenderFailedReport(t *testing.T) {
	rep := gappedSet(t).Verify(0, 100)
	if rep.Passed() {
		t.Fatal("gapped set should not verify clean")
	}
	out := Render(rep, testPolicyCID(t), 0, 100, RenderOptions{})
	if _, err := CanonicalizeCVR(out); err != nil {
		t.Fatalf("CanonicalizeCVR: %v", err)
	}
	if err := ValidateConsistency(out); err != nil {
		t.Fatalf("ValidateConsistency: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "Outcome: Failed\n") {
		t.Fatalf("expected Outcome: Failed\n%s", s)
	}
	if !strings.Contains(s, "Passed: false\nDetail: ") {
		t.Fatalf("expected a failed record with Detail\n%s", s)
	}
}

func TestCanonicalizeRejects(t *testing.T) {
	valid := string(renderReference(t, RenderOptions{}))

	cases := []struct {
		name    string
		corrupt func(string) string
	}{
		{"crlf", func(s string) string {
			return strings.Replace(s, "\n", "\r\n", 1)
		}},
		{"bom", func(s string) string {
			return "\xEF\xBB\xBF" + s
		}},
		{"trailing whitespace", func(s string) string {
			return strings.Replace(s, "Version: 1\n", "Version: 1 \n", 1)
		}},
		{"no final newline", func(s string) string {
			return strings.TrimSuffix(s, "\n")
		}},
		{"section order", func(s string) string {
			return strings.Replace(s, "META\n", "RESULT\n", 1)
		}},
		{"double blank line", func(s string) string {
			return strings.Replace(s, "\n\nRESULT", "\n\n\nRESULT", 1)
		}},
		{"unsorted meta", func(s string) string {
			return strings.Replace(s,
				"Engine-ID: veribound-engine-reference\nSpec: veribound-cvr-1",
				"Spec: veribound-cvr-1\nEngine-ID: veribound-engine-reference", 1)
		}},
		{"unknown spec", func(s string) string {
			return strings.Replace(s, "Spec: veribound-cvr-1", "Spec: veribound-cvr-2", 1)
		}},
		{"unknown meta field", func(s string) string {
			return strings.Replace(s, "Version: 1\n", "Version: 1\nZone: a\n", 1)
		}},
		{"empty inputs", func(s string) string {
			return strings.Replace(s, "Policy-CID: "+testPolicyCID(t)+"\n", "", 1)
		}},
		{"missing result field", func(s string) string {
			return strings.Replace(s, "Domain-Lower: 0\n", "", 1)
		}},
		{"bad outcome", func(s string) string {
			return strings.Replace(s, "Outcome: Passed", "Outcome: Maybe", 1)
		}},
		{"bad checks record", func(s string) string {
			return strings.Replace(s, "Name: mutual exclusion", "Label: mutual exclusion", 1)
		}},
		{"bad passed value", func(s string) string {
			return strings.Replace(s, "Passed: true", "Passed: yes", 1)
		}},
		{"preamble", func(s string) string {
			return strings.Replace(s, "BEGIN VERIBOUND", "BEGIN VERIBOND", 1)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := tc.corrupt(valid)
			if bad == valid {
				t.Fatal("corruption did not change the document")
			}
			if _, err := CanonicalizeCVR([]byte(bad)); err == nil {
				t.Fatal("expected canonicalization error")
			}
		})
	}
}

func TestValidateConsistencyRejects(t *testing.T) {
	valid := string(renderReference(t, RenderOptions{}))

	cases := []struct {
		name    string
		corrupt func(string) string
	}{
		{"wrong total", func(s string) string {
			return strings.Replace(s, "Checks-Total: 10", "Checks-Total: 9", 1)
		}},
		{"wrong outcome", func(s string) string {
			return strings.Replace(s, "Outcome: Passed", "Outcome: Failed", 1)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := []byte(tc.corrupt(valid))
			if _, err := CanonicalizeCVR(bad); err != nil {
				t.Fatalf("corruption should stay canonical, got %v", err)
			}
			if err := ValidateConsistency(bad); err == nil {
				t.Fatal("expected consistency error")
			}
		})
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	out, id, err := RenderWithCID(referenceSet(t).Verify(0, 100), testPolicyCID(t), 0, 100, RenderOptions{})
	if err != nil {
		t.Fatalf("RenderWithCID: %v", err)
	}
	doc, err := NewDocumentFromBytes(out)
	if err != nil {
		t.Fatalf("NewDocumentFromBytes: %v", err)
	}
	if doc.CID != id {
		t.Fatalf("document CID %s, want %s", doc.CID, id)
	}
	if !bytes.Equal(doc.Bytes, out) {
		t.Fatal("document bytes differ from rendered bytes")
	}
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	rep := referenceSet(t).Verify(0, 100)
	out, err := RenderSigned(rep, testPolicyCID(t), 0, 100, RenderOptions{
		EngineKey:  EngineKeyField(pub),
		PrivateKey: priv,
	})
	if err != nil {
		t.Fatalf("RenderSigned: %v", err)
	}

	ok, err := VerifySignature(out)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !ok {
		t.Fatal("signature should verify")
	}

	tampered := bytes.Replace(out, []byte("Outcome: Passed"), []byte("Outcome: Failed"), 1)
	ok, err = VerifySignature(tampered)
	if err != nil {
		t.Fatalf("VerifySignature(tampered): %v", err)
	}
	if ok {
		t.Fatal("tampered CVR must not verify")
	}
}

func TestVerifyUnsigned(t *testing.T) {
	out := renderReference(t, RenderOptions{})
	ok, err := VerifySignature(out)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Fatal("unsigned CVR must not report a valid signature")
	}
}

func TestRenderSignedRequiresKey(t *testing.T) {
	rep := referenceSet(t).Verify(0, 100)
	if _, err := RenderSigned(rep, testPolicyCID(t), 0, 100, RenderOptions{}); err == nil {
		t.Fatal("expected error when signing without a key")
	}
}

func TestVerifyRejectsBadKeyEncoding(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	out, err := RenderSigned(referenceSet(t).Verify(0, 100), testPolicyCID(t), 0, 100, RenderOptions{
		EngineKey:  EngineKeyField(pub),
		PrivateKey: priv,
	})
	if err != nil {
		t.Fatalf("RenderSigned: %v", err)
	}
	bad := bytes.Replace(out, []byte("Engine-Key: ed25519:"), []byte("Engine-Key: rsa4096:"), 1)
	if _, err := VerifySignature(bad); err == nil {
		t.Fatal("expected error for non-ed25519 Engine-Key")
	}
}

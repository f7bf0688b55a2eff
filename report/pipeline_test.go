package report_test

import (
	"os"
	"strings"
	"testing"

	"github.com/dhwcmoore/veribound-mvp/basel"
	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/compliance"
	"github.com/dhwcmoore/veribound-mvp/report"
	"github.com/dhwcmoore/veribound-mvp/storage/memcas"
)

func referenceSet(t *testing.T) *boundary.Set {
	t.Helper()
	set, err := boundary.Build(basel.ReferencePolicy())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return set
}

func newFilePipeline(t *testing.T, mode compliance.Mode) *report.Pipeline {
	t.Helper()
	p, err := report.New(referenceSet(t), basel.ReferenceDomainLower, basel.ReferenceDomainUpper,
		mode, report.FilePersister{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRunBasel_FullPipeline(t *testing.T) {
	p := newFilePipeline(t, compliance.Strict)

	run, err := p.RunBasel([]byte(`{"cet1_capital": 75, "rwa": 1000}`))
	if err != nil {
		t.Fatalf("RunBasel: %v", err)
	}
	if run.Stage != report.StageVerified {
		t.Fatalf("expected verified stage, got %s", run.Stage)
	}
	if run.Results.Status != basel.StatusPass {
		t.Fatalf("expected PASS, got %s", run.Results.Status)
	}
	if run.Results.Category != "Adequate" {
		t.Fatalf("expected Adequate for 7.5%%, got %s", run.Results.Category)
	}
	if !run.Verdict.OK {
		t.Fatalf("expected verified seal, got: %s", run.Verdict.Message)
	}
	if _, err := os.Stat(run.Location); err != nil {
		t.Fatalf("persisted record missing: %v", err)
	}
}

func TestRunBasel_InvalidInputNeverPersists(t *testing.T) {
	dir := t.TempDir()
	p, err := report.New(referenceSet(t), basel.ReferenceDomainLower, basel.ReferenceDomainUpper,
		compliance.Strict, report.FilePersister{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		name  string
		input string
	}{
		{"missing rwa", `{"cet1_capital": 75}`},
		{"non-numeric", `{"cet1_capital": "lots", "rwa": 1000}`},
		{"zero denominator", `{"cet1_capital": 75, "rwa": 0}`},
		{"negative denominator", `{"cet1_capital": 75, "rwa": -10}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run, err := p.RunBasel([]byte(tc.input))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !report.IsCode(err, report.ErrInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if run.Stage != report.StageInput {
				t.Fatalf("run advanced past input on invalid data: %s", run.Stage)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("invalid inputs persisted %d records", len(entries))
	}
}

func TestNew_RejectsUnsoundPolicy(t *testing.T) {
	gapped, err := boundary.Build([]boundary.Boundary{
		{Lower: 0, Upper: 4, Category: "Low"},
		{Lower: 6, Upper: 10, Category: "High"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = report.New(gapped, 0, 10, compliance.Strict, report.FilePersister{Dir: t.TempDir()})
	if err == nil {
		t.Fatalf("expected gapped policy to be rejected")
	}
	if !report.IsCode(err, report.ErrPolicyInvalid) {
		t.Fatalf("expected POLICY_INVALID, got %v", err)
	}
}

func TestRunBasel_CASPersister(t *testing.T) {
	p, err := report.New(referenceSet(t), basel.ReferenceDomainLower, basel.ReferenceDomainUpper,
		compliance.Strict, report.CASPersister{CAS: memcas.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run, err := p.RunBasel([]byte(`{"cet1_capital": 40, "rwa": 1000}`))
	if err != nil {
		t.Fatalf("RunBasel: %v", err)
	}
	if run.Results.Status != basel.StatusFail {
		t.Fatalf("expected FAIL below the minimum, got %s", run.Results.Status)
	}
	if run.Results.Category != "Critical" {
		t.Fatalf("expected Critical for 4.0%%, got %s", run.Results.Category)
	}
	if !strings.HasPrefix(run.Location, "b") {
		t.Fatalf("expected CIDv1 location, got %q", run.Location)
	}
}

func TestClassify_SharedEndpoint(t *testing.T) {
	p := newFilePipeline(t, compliance.Strict)

	out, err := p.Classify(4.5)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	// Half-open bands: a shared endpoint belongs to the higher band.
	if out.Category != "Watch" {
		t.Fatalf("classify(4.5) = %s, want Watch", out.Category)
	}
}

func TestClassify_StrictVsPermissive(t *testing.T) {
	strict := newFilePipeline(t, compliance.Strict)
	permissive := newFilePipeline(t, compliance.Permissive)

	if _, err := strict.Classify(250); err == nil {
		t.Fatalf("strict mode accepted an out-of-domain value")
	} else if !report.IsCode(err, report.ErrUnclassified) {
		t.Fatalf("expected UNCLASSIFIED, got %v", err)
	}

	out, err := permissive.Classify(250)
	if err != nil {
		t.Fatalf("permissive Classify: %v", err)
	}
	if out.Classified {
		t.Fatalf("expected unclassified outcome")
	}
	if out.Label() != boundary.UnclassifiedLabel {
		t.Fatalf("expected %s label, got %s", boundary.UnclassifiedLabel, out.Label())
	}
}

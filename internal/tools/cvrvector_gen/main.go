// Command cvrvector_gen regenerates the verification-report conformance
// vectors under testdata/conformance/cvr/veribound-cvr-1: the reference
// boundary policy, its canonical verification report, and the report CID.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhwcmoore/veribound-mvp/bdl"
	"github.com/dhwcmoore/veribound-mvp/cvr"
)

func main() {
	outDir := flag.String("out", filepath.Join("testdata", "conformance", "cvr", "veribound-cvr-1"), "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir: %v", err)
	}

	policy := &bdl.Policy{
		Meta: map[string]string{
			"Spec": bdl.SpecID,
			"Name": "basel-cet1-reference",
		},
		Domain: bdl.Domain{Lower: 0, Upper: 100, Unit: "percent"},
		Bands: []bdl.Band{
			{Lower: 0, Upper: 4.5, Category: "Critical"},
			{Lower: 4.5, Upper: 6, Category: "Watch"},
			{Lower: 6, Upper: 8, Category: "Adequate"},
			{Lower: 8, Upper: 100, Category: "Excellent"},
		},
	}
	policyBytes := bdl.Render(policy)
	if _, err := bdl.ParseStrict(policyBytes); err != nil {
		fatalf("rendered policy failed strict parse: %v", err)
	}

	rep, err := policy.Verify()
	if err != nil {
		fatalf("policy.Verify: %v", err)
	}
	if !rep.Passed() {
		fatalf("reference policy failed well-formedness: %v", rep.Err())
	}

	// Omit VerifiedAt so regenerated vectors are byte-stable.
	cvrBytes, cvrCID, err := cvr.RenderWithCID(rep, bdl.PolicyCID(policyBytes), policy.Domain.Lower, policy.Domain.Upper, cvr.RenderOptions{
		EngineID: "veribound-engine-reference",
	})
	if err != nil {
		fatalf("cvr.RenderWithCID: %v", err)
	}
	if err := cvr.ValidateConsistency(cvrBytes); err != nil {
		fatalf("cvr.ValidateConsistency: %v", err)
	}

	write(*outDir, "reference_policy_1.bdl", policyBytes)
	write(*outDir, "reference_policy_1.cvr", cvrBytes)
	write(*outDir, "reference_policy_1.cid", []byte(cvrCID+"\n"))

	fmt.Printf("wrote cvr vectors to %s (CID=%s)\n", *outDir, cvrCID)
}

func write(dir, name string, data []byte) {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		fatalf("write %s: %v", name, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Command sealvector_gen regenerates the sealed-record conformance
// vectors under testdata/conformance/seal/veribound-seal-1: a canonical
// sealed record, its seal hash, and a tampered copy whose results were
// edited after sealing.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhwcmoore/veribound-mvp/basel"
	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/seal"
)

func main() {
	outDir := flag.String("out", filepath.Join("testdata", "conformance", "seal", "veribound-seal-1"), "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir: %v", err)
	}

	results, err := basel.Compute(basel.Input{CET1Capital: 75, RWA: 1000})
	if err != nil {
		fatalf("basel.Compute: %v", err)
	}
	set, err := boundary.Build(basel.ReferencePolicy())
	if err != nil {
		fatalf("boundary.Build: %v", err)
	}
	results.Category = set.Classify(results.RatioPercent()).Label()

	rec, err := seal.Seal(results)
	if err != nil {
		fatalf("seal.Seal: %v", err)
	}
	encoded, err := seal.EncodeRecord(rec)
	if err != nil {
		fatalf("seal.EncodeRecord: %v", err)
	}
	verdict := seal.Verify(rec)
	if !verdict.OK {
		fatalf("freshly sealed record failed verification: %s", verdict.Message)
	}

	write(*outDir, "basel_results_1.rec", encoded)
	write(*outDir, "basel_results_1.hash", []byte(rec.SealHash+"\n"))

	// Flip the status inside the stored results while keeping the original
	// seal hash. Verification of this vector must report a mismatch.
	tampered := bytes.Replace(encoded, []byte(`"status":"PASS"`), []byte(`"status":"FAIL"`), 1)
	if bytes.Equal(tampered, encoded) {
		fatalf("tamper edit did not apply")
	}
	write(*outDir, "basel_results_1.tampered.rec", tampered)

	fmt.Printf("wrote seal vectors to %s (hash=%s)\n", *outDir, rec.SealHash)
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

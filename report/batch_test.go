package report_test

import (
	"testing"

	"github.com/dhwcmoore/veribound-mvp/report"
	"github.com/dhwcmoore/veribound-mvp/seal"
)

func TestSealBatch_OrderAndIndependence(t *testing.T) {
	payloads := make([]any, 64)
	for i := range payloads {
		payloads[i] = map[string]any{"status": "PASS", "index": float64(i)}
	}

	recs, err := report.SealBatch(payloads)
	if err != nil {
		t.Fatalf("SealBatch: %v", err)
	}
	if len(recs) != len(payloads) {
		t.Fatalf("got %d records, want %d", len(recs), len(payloads))
	}

	// Every record verifies, and output order matches input order: the
	// record at index i seals exactly payload i.
	for i, rec := range recs {
		if v := seal.Verify(rec); !v.OK {
			t.Fatalf("record %d failed verification: %s", i, v.Message)
		}
		want, err := seal.Seal(payloads[i])
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if rec.SealHash != want.SealHash {
			t.Fatalf("record %d out of order", i)
		}
	}
}

func TestSealBatch_FailureIsAllOrNothing(t *testing.T) {
	payloads := []any{
		map[string]any{"ok": true},
		make(chan int), // not serializable
		map[string]any{"ok": true},
	}
	recs, err := report.SealBatch(payloads)
	if err == nil {
		t.Fatalf("expected error for unsealable payload")
	}
	if !report.IsCode(err, report.ErrSeal) {
		t.Fatalf("expected SEAL code, got %v", err)
	}
	if recs != nil {
		t.Fatalf("expected no partial batch output")
	}
}

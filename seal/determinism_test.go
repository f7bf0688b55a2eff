package seal

import (
	"strconv"
	"sync"
	"testing"
)

func TestDeterminism_RepeatedSealByteIdentical(t *testing.T) {
	payload := map[string]any{"cet1_ratio": 0.075, "status": "PASS", "category": "Adequate"}
	golden, err := Seal(payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	for i := 0; i < 100; i++ {
		rec, err := Seal(payload)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if string(rec.Results) != string(golden.Results) {
			t.Fatal("canonical results changed across runs")
		}
		if rec.SealHash != golden.SealHash {
			t.Fatal("seal hash changed across runs")
		}
	}
}

func TestDeterminism_ConcurrentSealAndVerify(t *testing.T) {
	// Independent payloads sealed and verified in parallel must neither
	// interfere nor diverge from their serial results.
	const workers = 16
	const perWorker = 25

	serial := make([]string, workers)
	for w := 0; w < workers; w++ {
		rec, err := Seal(map[string]any{"run": strconv.Itoa(w), "cet1_ratio": float64(w) / 1000})
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		serial[w] = rec.SealHash
	}

	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec, err := Seal(map[string]any{"run": strconv.Itoa(w), "cet1_ratio": float64(w) / 1000})
				if err != nil {
					errs <- "Seal: " + err.Error()
					return
				}
				if rec.SealHash != serial[w] {
					errs <- "concurrent seal diverged from serial seal"
					return
				}
				if v := Verify(rec); !v.OK {
					errs <- "concurrent verify failed: " + v.Message
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	if msg, ok := <-errs; ok {
		t.Fatal(msg)
	}
}

// Package testkit holds the conformance suite every VeriBound CAS adapter
// must pass. Backend tests call RunCASConformance with a constructor for a
// fresh store.
package testkit

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
	"github.com/dhwcmoore/veribound-mvp/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

func mustCID(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}
	return id
}

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		record := []byte(`{"results":{"status":"PASS"},"seal_hash":"00"}`)

		id, err := cas.Put(record)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if want := mustCID(t, record); id != want {
			t.Fatalf("Put CID mismatch: got %s want %s", id, want)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, record) {
			t.Fatalf("Get bytes mismatch")
		}
		if mustCID(t, got) != id {
			t.Fatalf("Get returned bytes not matching requested CID")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		record := []byte(`{"results":{"cet1_ratio":0.075}}`)

		first, err := cas.Put(record)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		second, err := cas.Put(record)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if first != second {
			t.Fatalf("Put not idempotent: %s vs %s", first, second)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		record := []byte("never stored")
		id := mustCID(t, record)

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := cas.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := cas.Put(record); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if cas.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})
}

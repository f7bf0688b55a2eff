// Command attvector_gen regenerates the attestation conformance vectors
// under testdata/conformance/attest/veribound-att-1. The vectors pin the
// canonical bytes, the CID, and two non-canonical mutations that Parse
// must reject.
package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhwcmoore/veribound-mvp/attest"
	"github.com/dhwcmoore/veribound-mvp/basel"
	"github.com/dhwcmoore/veribound-mvp/cidutil"
	"github.com/dhwcmoore/veribound-mvp/keys"
	"github.com/dhwcmoore/veribound-mvp/seal"
)

func main() {
	outDir := flag.String("out", filepath.Join("testdata", "conformance", "attest", "veribound-att-1"), "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir: %v", err)
	}

	// The subject is the CID of a deterministic sealed record, so the
	// vector chain mirrors real use: seal first, attest to the seal.
	results, err := basel.Compute(basel.Input{CET1Capital: 75, RWA: 1000})
	if err != nil {
		fatalf("basel.Compute: %v", err)
	}
	rec, err := seal.Seal(results)
	if err != nil {
		fatalf("seal.Seal: %v", err)
	}
	encoded, err := seal.EncodeRecord(rec)
	if err != nil {
		fatalf("seal.EncodeRecord: %v", err)
	}
	subject := cidutil.CIDv1RawSHA256(encoded)

	pub, priv := keypairFromSeedByte(0xA1)
	doc := attest.Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": subject, "Description": "Sealed CET1 adequacy record"},
		Claims:  map[string]string{"Role": "analyst", "Type": "verification"},
		Crypto: map[string]string{
			"Hash-Alg":      "sha256",
			"Issuer-Key":    "ed25519:" + base64.StdEncoding.EncodeToString(pub),
			"Signature":     "0",
			"Signature-Alg": "ed25519",
		},
	}

	pre, err := attest.Render(doc)
	if err != nil {
		fatalf("attest.Render(pre): %v", err)
	}
	parsed, err := attest.Parse(pre)
	if err != nil {
		fatalf("attest.Parse(pre): %v", err)
	}
	doc.Crypto["Signature"] = keys.SignEd25519SHA256(parsed.SignedBytes(), priv)
	canonical, err := attest.Render(doc)
	if err != nil {
		fatalf("attest.Render(final): %v", err)
	}
	final, err := attest.Parse(canonical)
	if err != nil {
		fatalf("attest.Parse(final): %v", err)
	}
	if err := final.Verify(); err != nil {
		fatalf("attest.Verify(final): %v", err)
	}
	attCID, err := final.CID()
	if err != nil {
		fatalf("attest CID: %v", err)
	}

	write(*outDir, "seal_witness_1.att", canonical)
	write(*outDir, "seal_witness_1.cid", []byte(attCID+"\n"))

	crlf := []byte(strings.ReplaceAll(string(canonical), "\n", "\r\n"))
	write(*outDir, "seal_witness_1.noncanonical_crlf.att", crlf)

	doubleSpace := []byte(strings.Replace(string(canonical), "Spec: ", "Spec:  ", 1))
	write(*outDir, "seal_witness_1.noncanonical_double_space.att", doubleSpace)

	fmt.Printf("wrote attestation vectors to %s (CID=%s)\n", *outDir, attCID)
}

func keypairFromSeedByte(seedByte byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv
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

package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

type countingReader struct{ b byte }

func (r *countingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestSignEd25519SHA256VerifiesOverDigest(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	msg := []byte("sealed record bytes")
	sig, err := base64.StdEncoding.DecodeString(SignEd25519SHA256(msg, priv))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	// The signature covers sha256(message), not the raw message.
	digest := sha256.Sum256(msg)
	if !ed25519.Verify(pub, digest[:], sig) {
		t.Fatal("signature did not verify over the digest")
	}
	if ed25519.Verify(pub, msg, sig) {
		t.Fatal("signature unexpectedly verified over the raw message")
	}
}

func TestSignDilithium3Verifies(t *testing.T) {
	pk, sk, err := GenerateDilithium3Keypair(&countingReader{})
	if err != nil {
		t.Fatalf("GenerateDilithium3Keypair: %v", err)
	}

	msg := []byte("sealed record bytes")
	sigB64, err := SignDilithium3(msg, "sha3-256", sk)
	if err != nil {
		t.Fatalf("SignDilithium3: %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != mode3.SignatureSize {
		t.Fatalf("signature size = %d, want %d", len(sig), mode3.SignatureSize)
	}

	digest, err := digestFor("sha3-256", msg)
	if err != nil {
		t.Fatalf("digestFor: %v", err)
	}
	if !mode3.Verify(pk, digest, sig) {
		t.Fatal("signature did not verify")
	}
}

func TestSignDilithium3RejectsUnknownHash(t *testing.T) {
	_, sk, err := GenerateDilithium3Keypair(&countingReader{})
	if err != nil {
		t.Fatalf("GenerateDilithium3Keypair: %v", err)
	}
	if _, err := SignDilithium3([]byte("x"), "md5", sk); err == nil {
		t.Fatal("expected unsupported hash algorithm error")
	}
	if _, err := SignDilithium3([]byte("x"), "sha256", nil); err == nil {
		t.Fatal("expected missing private key error")
	}
}

package cvr

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// VerifySignature checks the CRYPTO section of a canonical CVR.
//
// Returns (false, nil) for a well-formed unsigned CVR. Returns an error
// for malformed documents, unsupported algorithms or undecodable key or
// signature material. Returns (true, nil) only when the ed25519 signature
// verifies over the signature scope, which is the canonical bytes with
// the Signature: line removed.
func VerifySignature(cvrBytes []byte) (bool, error) {
	canonical, err := CanonicalizeCVR(cvrBytes)
	if err != nil {
		return false, err
	}

	cryptoLines, err := sectionLines(canonical, "CRYPTO")
	if err != nil {
		return false, err
	}
	if len(cryptoLines) == 0 {
		return false, nil
	}

	fields := fieldValues(cryptoLines)
	if fields["Hash-Alg"] != "sha256" {
		return false, fmt.Errorf("unsupported Hash-Alg %q", fields["Hash-Alg"])
	}
	if fields["Signature-Alg"] != "ed25519" {
		return false, fmt.Errorf("unsupported Signature-Alg %q", fields["Signature-Alg"])
	}

	pub, err := parseEd25519PublicKey(fields["Engine-Key"])
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(fields["Signature"])
	if err != nil {
		return false, fmt.Errorf("undecodable Signature: %v", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("signature is %d bytes, want %d", len(sig), ed25519.SignatureSize)
	}

	scope, err := cvrSignatureScope(canonical)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(scope)
	return ed25519.Verify(pub, digest[:], sig), nil
}

func parseEd25519PublicKey(field string) (ed25519.PublicKey, error) {
	raw, ok := strings.CutPrefix(field, "ed25519:")
	if !ok {
		return nil, errors.New("Engine-Key must use the ed25519: prefix")
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("undecodable Engine-Key: %v", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("Engine-Key is %d bytes, want %d", len(b), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(b), nil
}

// EngineKeyField formats an ed25519 public key for the Engine-Key field.
func EngineKeyField(pub ed25519.PublicKey) string {
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub)
}

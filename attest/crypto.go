package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

func (a *Attestation) SignatureAlg() string {
	if sec, ok := a.Sections["CRYPTO"]; ok {
		return sec.Pairs["Signature-Alg"]
	}
	return ""
}

func (a *Attestation) HashAlg() string {
	if sec, ok := a.Sections["CRYPTO"]; ok {
		return sec.Pairs["Hash-Alg"]
	}
	return ""
}

func (a *Attestation) Signature() string {
	if sec, ok := a.Sections["CRYPTO"]; ok {
		return sec.Pairs["Signature"]
	}
	return ""
}

// IssuerPublicKeyBytes returns the raw public key bytes for the issuer.
// Supported encodings:
// - ed25519:<base64>
// - dilithium3:<base64>
func (a *Attestation) IssuerPublicKeyBytes() ([]byte, error) {
	issuer := a.IssuerKey()
	if issuer == "" {
		return nil, newError(KindCrypto, "VB-ATT-CRYPTO-103", "missing Issuer-Key")
	}

	alg, enc, ok := strings.Cut(issuer, ":")
	if !ok {
		return nil, newError(KindCrypto, "VB-ATT-CRYPTO-111", "invalid Issuer-Key encoding")
	}
	pub, err := decodeBase64(enc)
	if err != nil {
		return nil, wrapError(KindCrypto, "VB-ATT-CRYPTO-113", "invalid issuer key base64", err)
	}

	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return nil, newError(KindCrypto, "VB-ATT-CRYPTO-114", "invalid ed25519 public key length")
		}
		return pub, nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return nil, wrapError(KindCrypto, "VB-ATT-CRYPTO-115", "invalid dilithium3 public key", err)
		}
		return pub, nil
	default:
		return nil, newError(KindCrypto, "VB-ATT-CRYPTO-112", "unsupported issuer key encoding")
	}
}

func (a *Attestation) SignatureBytes() ([]byte, error) {
	s := a.Signature()
	if s == "" {
		return nil, newError(KindCrypto, "VB-ATT-CRYPTO-104", "missing Signature")
	}
	sig, err := decodeBase64(s)
	if err != nil {
		return nil, wrapError(KindCrypto, "VB-ATT-CRYPTO-131", "invalid signature base64", err)
	}
	if a.SignatureAlg() == "" {
		return nil, newError(KindCrypto, "VB-ATT-CRYPTO-101", "missing Signature-Alg")
	}
	// Validate signature lengths where the scheme is fixed-size.
	switch a.SignatureAlg() {
	case "ed25519":
		if len(sig) != ed25519.SignatureSize {
			return nil, newError(KindCrypto, "VB-ATT-CRYPTO-132", "invalid ed25519 signature length")
		}
	case "dilithium3":
		if len(sig) != mode3.SignatureSize {
			return nil, newError(KindCrypto, "VB-ATT-CRYPTO-133", "invalid dilithium3 signature length")
		}
	}
	return sig, nil
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, newError(KindCrypto, "VB-ATT-CRYPTO-201", "unsupported Hash-Alg")
	}
}

// Verify verifies the attestation signature according to v1 rules.
// For Signature-Alg=ed25519 and Hash-Alg=sha256, the signed message is
// sha256(SignedBytes). Also supported:
// - Hash-Alg: sha512, sha3-256
// - Signature-Alg: dilithium3 (post-quantum)
func (a *Attestation) Verify() error {
	if a == nil {
		return newError(KindCrypto, "VB-ATT-CRYPTO-001", "nil attestation")
	}
	// Re-parse the receiver bytes so canonicalization cannot be bypassed
	// via a manually-constructed Attestation or mutated fields.
	parsed, err := Parse(a.raw)
	if err != nil {
		return err
	}
	a = parsed

	if a.SignatureAlg() == "" {
		return newError(KindCrypto, "VB-ATT-CRYPTO-101", "missing Signature-Alg")
	}
	if a.HashAlg() == "" {
		return newError(KindCrypto, "VB-ATT-CRYPTO-102", "missing Hash-Alg")
	}

	issuer := a.IssuerKey()
	if issuer == "" {
		return newError(KindCrypto, "VB-ATT-CRYPTO-103", "missing Issuer-Key")
	}
	issuerAlg, _, ok := strings.Cut(issuer, ":")
	if !ok {
		return newError(KindCrypto, "VB-ATT-CRYPTO-111", "invalid Issuer-Key encoding")
	}
	if issuerAlg != a.SignatureAlg() {
		return newError(KindCrypto, "VB-ATT-CRYPTO-121", "Issuer-Key alg does not match Signature-Alg")
	}

	pub, err := a.IssuerPublicKeyBytes()
	if err != nil {
		return err
	}
	sig, err := a.SignatureBytes()
	if err != nil {
		return err
	}
	digest, err := digestFor(a.HashAlg(), a.signed)
	if err != nil {
		return err
	}

	switch a.SignatureAlg() {
	case "ed25519":
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return newError(KindCrypto, "VB-ATT-CRYPTO-401", "signature invalid")
		}
		return nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return wrapError(KindCrypto, "VB-ATT-CRYPTO-115", "invalid dilithium3 public key", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return newError(KindCrypto, "VB-ATT-CRYPTO-401", "signature invalid")
		}
		return nil
	default:
		return newError(KindCrypto, "VB-ATT-CRYPTO-301", "unsupported Signature-Alg")
	}
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

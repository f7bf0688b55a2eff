package attest

// CanonicalizeAttestation is the single mandatory canonicalization choke
// point for attestations.
//
// Byte-level canonical form is mandatory for deterministic hashing and
// signing: UTF-8, LF endings, no BOM, no trailing whitespace or final
// newline, fixed section order and sorted keys. This function enforces
// those rules by rejecting any non-canonical input.
//
// All attestation hashing, signing, CID derivation, and storage ingestion
// MUST pass through CanonicalizeAttestation.
func CanonicalizeAttestation(input []byte) ([]byte, error) {
	a, err := Parse(input)
	if err != nil {
		return nil, err
	}
	// Return a copy to prevent callers from mutating internal slices.
	return a.CanonicalBytes(), nil
}

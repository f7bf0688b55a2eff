package attest

import (
	"fmt"
)

// ValidateCoreClaims enforces the v1 core required claims per claim type.
// This is separate from Parse so callers can choose whether missing
// semantics are treated as parse failures or as exclusions.
func ValidateCoreClaims(a *Attestation) error {
	subject, ok := a.Sections["SUBJECT"]
	if !ok {
		return newError(KindValidation, "VB-ATT-VAL-110", "missing SUBJECT")
	}
	if subject.Pairs["CID"] == "" {
		return newError(KindValidation, "VB-ATT-VAL-111", "missing subject CID")
	}

	claims, ok := a.Sections["CLAIMS"]
	if !ok {
		return newError(KindValidation, "VB-ATT-VAL-101", "missing CLAIMS")
	}
	typ := claims.Pairs["Type"]
	if typ == "" {
		return newError(KindValidation, "VB-ATT-VAL-102", "missing required claim: Type")
	}

	required := func(ruleID, key string) Rule {
		return Rule{ID: ruleID, Apply: func(_ *Attestation) error {
			if claims.Pairs[key] == "" {
				return newError(KindValidation, ruleID, fmt.Sprintf("missing required claim: %s", key))
			}
			return nil
		}}
	}

	// Deterministic evaluation order per claim type.
	var rules []Rule
	switch typ {
	case "seal-witness":
		rules = []Rule{
			required("VB-ATT-VAL-251", "Seal-Hash"),
			{ID: "VB-ATT-VAL-252", Apply: func(_ *Attestation) error {
				if h := claims.Pairs["Seal-Hash"]; h != "" && !isHex64(h) {
					return newError(KindValidation, "VB-ATT-VAL-252", "Seal-Hash must be a 64-character lowercase hex digest")
				}
				return nil
			}},
			{ID: "VB-ATT-VAL-253", Apply: func(_ *Attestation) error {
				sub := subject.Pairs["Seal-Hash"]
				if sub != "" && sub != claims.Pairs["Seal-Hash"] {
					return newError(KindValidation, "VB-ATT-VAL-253", "Seal-Hash claim does not match subject Seal-Hash")
				}
				return nil
			}},
		}
	case "authorship":
		rules = []Rule{required("VB-ATT-VAL-201", "Role")}
	case "approval":
		rules = []Rule{required("VB-ATT-VAL-211", "Role"), required("VB-ATT-VAL-212", "Effective-Date")}
	case "supersedes":
		rules = []Rule{required("VB-ATT-VAL-221", "Supersedes")}
	case "revocation":
		rules = []Rule{required("VB-ATT-VAL-231", "Target-Attestation")}
	default:
		// Unknown claim types are permitted; this function only validates v1 core.
		return nil
	}

	for _, r := range rules {
		if r.ID == "" {
			return newError(KindInternal, "VB-ATT-INTERNAL-002", "empty validation rule ID")
		}
	}
	return ValidateRules(a, rules)
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}

package cvr

import (
	"errors"
	"fmt"
	"strings"
)

// sectionLines extracts the field lines of a named section from canonical
// CVR bytes. Only safe to call on canonicalized input: section headers
// are bare names and field lines always contain ": ", so a header line
// cannot be shadowed by a value.
func sectionLines(cvrBytes []byte, name string) ([]string, error) {
	lines := strings.Split(string(cvrBytes), "\n")
	for i := 0; i < len(lines); i++ {
		if lines[i] != name {
			continue
		}
		start := i + 1
		j := start
		for j < len(lines) && lines[j] != "" {
			j++
		}
		return lines[start:j], nil
	}
	return nil, fmt.Errorf("section %s not found", name)
}

func fieldValues(lines []string) map[string]string {
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		if k, v, ok := strings.Cut(l, ": "); ok {
			out[k] = v
		}
	}
	return out
}

func requiredFieldFromSection(cvrBytes []byte, section, field string) (string, error) {
	lines, err := sectionLines(cvrBytes, section)
	if err != nil {
		return "", err
	}
	v, ok := fieldValues(lines)[field]
	if !ok {
		return "", fmt.Errorf("%s: missing %s", section, field)
	}
	return v, nil
}

func optionalFieldFromSection(cvrBytes []byte, section, field string) (string, bool, error) {
	lines, err := sectionLines(cvrBytes, section)
	if err != nil {
		return "", false, err
	}
	v, ok := fieldValues(lines)[field]
	return v, ok, nil
}

// SupersedesCVRCID reports the Supersedes-CVR-CID declared in META, if
// any. The input is canonicalized first.
func SupersedesCVRCID(cvrBytes []byte) (string, bool, error) {
	canonical, err := CanonicalizeCVR(cvrBytes)
	if err != nil {
		return "", false, err
	}
	return optionalFieldFromSection(canonical, "META", "Supersedes-CVR-CID")
}

// ValidateSupersession checks that newCVR legitimately supersedes oldCVR.
//
// Both documents must be canonical, must bind the same Policy-CID, and
// newCVR must declare a Supersedes-CVR-CID equal to oldCVR's CID. A CVR
// never supersedes itself.
func ValidateSupersession(newCVR, oldCVR []byte) error {
	oldCID, err := CID(oldCVR)
	if err != nil {
		return fmt.Errorf("old CVR: %v", err)
	}
	newCID, err := CID(newCVR)
	if err != nil {
		return fmt.Errorf("new CVR: %v", err)
	}
	if newCID == oldCID {
		return errors.New("supersession rejected: new CVR is identical to old CVR")
	}

	sup, ok, err := SupersedesCVRCID(newCVR)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("supersession rejected: new CVR does not declare Supersedes-CVR-CID")
	}
	if sup != oldCID {
		return fmt.Errorf("supersession rejected: Supersedes-CVR-CID %s does not name old CVR %s", sup, oldCID)
	}

	oldPolicy, err := requiredFieldFromSection(oldCVR, "INPUTS", "Policy-CID")
	if err != nil {
		return fmt.Errorf("old CVR: %v", err)
	}
	newPolicy, err := requiredFieldFromSection(newCVR, "INPUTS", "Policy-CID")
	if err != nil {
		return fmt.Errorf("new CVR: %v", err)
	}
	if oldPolicy != newPolicy {
		return fmt.Errorf("supersession rejected: Policy-CID differs (%s vs %s)", oldPolicy, newPolicy)
	}
	return nil
}

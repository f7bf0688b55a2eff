package cvr

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var sectionOrder = []string{"META", "INPUTS", "RESULT", "CHECKS", "CRYPTO"}

// CanonicalizeCVR validates that input is already in canonical CVR form
// and returns the canonical bytes.
//
// Canonical form is strict: exact preamble and postamble, LF line endings,
// no BOM, no trailing whitespace, the five sections in fixed order, sorted
// field lines inside META, RESULT and CRYPTO, and well-formed check
// records inside CHECKS. Check records are not sorted; their order is the
// execution order of the checks and is preserved as written.
func CanonicalizeCVR(input []byte) ([]byte, error) {
	if !utf8.Valid(input) {
		return nil, errors.New("CVR is not valid UTF-8")
	}
	if bytes.HasPrefix(input, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("CVR must not start with a BOM")
	}
	s := string(input)
	if strings.Contains(s, "\r") {
		return nil, errors.New("CVR must use LF line endings")
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 2 || lines[len(lines)-1] != "" {
		return nil, errors.New("CVR must end with a single trailing newline")
	}
	lines = lines[:len(lines)-1]

	for i, l := range lines {
		if strings.TrimRight(l, " \t") != l {
			return nil, fmt.Errorf("line %d has trailing whitespace", i+1)
		}
	}

	if lines[0] != Preamble {
		return nil, errors.New("missing or malformed preamble")
	}
	if lines[len(lines)-1] != Postamble {
		return nil, errors.New("missing or malformed postamble")
	}

	body := lines[1 : len(lines)-1]
	sections, err := splitSections(body)
	if err != nil {
		return nil, err
	}

	if err := validateMeta(sections["META"]); err != nil {
		return nil, err
	}
	if err := validateInputs(sections["INPUTS"]); err != nil {
		return nil, err
	}
	if err := validateResult(sections["RESULT"]); err != nil {
		return nil, err
	}
	if err := validateChecks(sections["CHECKS"]); err != nil {
		return nil, err
	}
	if err := validateCrypto(sections["CRYPTO"]); err != nil {
		return nil, err
	}

	return input, nil
}

// splitSections walks the body and enforces the fixed section order. Each
// section header is a bare uppercase name; sections are separated by
// exactly one blank line.
func splitSections(body []string) (map[string][]string, error) {
	sections := make(map[string][]string, len(sectionOrder))
	idx := 0
	i := 0
	for i < len(body) {
		if idx >= len(sectionOrder) {
			return nil, fmt.Errorf("unexpected content after %s section", sectionOrder[len(sectionOrder)-1])
		}
		want := sectionOrder[idx]
		if body[i] != want {
			return nil, fmt.Errorf("expected section %s, found %q", want, body[i])
		}
		i++
		start := i
		for i < len(body) && body[i] != "" {
			i++
		}
		sections[want] = body[start:i]
		if i < len(body) {
			if body[i] != "" {
				return nil, errors.New("sections must be separated by a blank line")
			}
			i++
			if i < len(body) && body[i] == "" {
				return nil, errors.New("sections must be separated by exactly one blank line")
			}
		}
		idx++
	}
	if idx != len(sectionOrder) {
		return nil, fmt.Errorf("missing section %s", sectionOrder[idx])
	}
	return sections, nil
}

func validateKVLine(l string) (key, value string, err error) {
	key, value, ok := strings.Cut(l, ": ")
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("malformed field line %q", l)
	}
	if strings.TrimSpace(key) != key {
		return "", "", fmt.Errorf("malformed field key in %q", l)
	}
	return key, value, nil
}

func validateSortedStrict(section string, lines []string) error {
	for i, l := range lines {
		if _, _, err := validateKVLine(l); err != nil {
			return fmt.Errorf("%s: %v", section, err)
		}
		if i > 0 && !(lines[i-1] < l) {
			return fmt.Errorf("%s: lines not in canonical sorted order at %q", section, l)
		}
	}
	return nil
}

func requireFields(section string, lines []string, required ...string) error {
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		k, _, err := validateKVLine(l)
		if err != nil {
			return fmt.Errorf("%s: %v", section, err)
		}
		if seen[k] {
			return fmt.Errorf("%s: duplicate field %s", section, k)
		}
		seen[k] = true
	}
	for _, k := range required {
		if !seen[k] {
			return fmt.Errorf("%s: missing required field %s", section, k)
		}
	}
	return nil
}

func validateMeta(lines []string) error {
	if err := validateSortedStrict("META", lines); err != nil {
		return err
	}
	if err := requireFields("META", lines, "Engine-ID", "Spec", "Version"); err != nil {
		return err
	}
	for _, l := range lines {
		k, v, _ := validateKVLine(l)
		switch k {
		case "Engine-ID", "Spec", "Version", "Verified-At", "Supersedes-CVR-CID":
		default:
			return fmt.Errorf("META: unknown field %s", k)
		}
		if k == "Spec" && v != "veribound-cvr-1" {
			return fmt.Errorf("META: unsupported Spec %q", v)
		}
	}
	return nil
}

func validateInputs(lines []string) error {
	if len(lines) != 1 {
		return errors.New("INPUTS: expected exactly one Policy-CID line")
	}
	k, _, err := validateKVLine(lines[0])
	if err != nil {
		return fmt.Errorf("INPUTS: %v", err)
	}
	if k != "Policy-CID" {
		return fmt.Errorf("INPUTS: unknown field %s", k)
	}
	return nil
}

func validateResult(lines []string) error {
	if err := validateSortedStrict("RESULT", lines); err != nil {
		return err
	}
	if err := requireFields("RESULT", lines,
		"Checks-Failed", "Checks-Total", "Domain-Lower", "Domain-Upper", "Outcome"); err != nil {
		return err
	}
	if len(lines) != 5 {
		return errors.New("RESULT: unexpected extra fields")
	}
	for _, l := range lines {
		k, v, _ := validateKVLine(l)
		switch k {
		case "Checks-Failed", "Checks-Total":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("RESULT: %s must be a non-negative integer, got %q", k, v)
			}
		case "Domain-Lower", "Domain-Upper":
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("RESULT: %s must be numeric, got %q", k, v)
			}
		case "Outcome":
			if v != "Passed" && v != "Failed" {
				return fmt.Errorf("RESULT: Outcome must be Passed or Failed, got %q", v)
			}
		}
	}
	return nil
}

// validateChecks validates the record structure of the CHECKS section.
// Each record is Check-ID, Name, Passed and an optional Detail, in that
// order. An empty section is allowed only when RESULT says so; counting
// consistency is checked by ValidateConsistency, not here.
func validateChecks(lines []string) error {
	i := 0
	for i < len(lines) {
		k, _, err := validateKVLine(lines[i])
		if err != nil {
			return fmt.Errorf("CHECKS: %v", err)
		}
		if k != "Check-ID" {
			return fmt.Errorf("CHECKS: expected Check-ID to start a record, found %s", k)
		}
		i++
		if i >= len(lines) {
			return errors.New("CHECKS: record truncated, missing Name")
		}
		if k, _, err = validateKVLine(lines[i]); err != nil || k != "Name" {
			return fmt.Errorf("CHECKS: expected Name after Check-ID at %q", lines[i])
		}
		i++
		if i >= len(lines) {
			return errors.New("CHECKS: record truncated, missing Passed")
		}
		k, v, err := validateKVLine(lines[i])
		if err != nil || k != "Passed" {
			return fmt.Errorf("CHECKS: expected Passed after Name at %q", lines[i])
		}
		if v != "true" && v != "false" {
			return fmt.Errorf("CHECKS: Passed must be true or false, got %q", v)
		}
		i++
		if i < len(lines) {
			if k, _, err := validateKVLine(lines[i]); err == nil && k == "Detail" {
				i++
			}
		}
	}
	return nil
}

func validateCrypto(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := validateSortedStrict("CRYPTO", lines); err != nil {
		return err
	}
	if err := requireFields("CRYPTO", lines,
		"Engine-Key", "Hash-Alg", "Signature", "Signature-Alg"); err != nil {
		return err
	}
	if len(lines) != 4 {
		return errors.New("CRYPTO: unexpected extra fields")
	}
	return nil
}

// ValidateConsistency cross-checks RESULT against CHECKS: declared totals
// must match the records, and Outcome must agree with the failure count.
// Input must already be canonical.
func ValidateConsistency(cvrBytes []byte) error {
	if _, err := CanonicalizeCVR(cvrBytes); err != nil {
		return err
	}
	total, err := requiredFieldFromSection(cvrBytes, "RESULT", "Checks-Total")
	if err != nil {
		return err
	}
	failed, err := requiredFieldFromSection(cvrBytes, "RESULT", "Checks-Failed")
	if err != nil {
		return err
	}
	outcome, err := requiredFieldFromSection(cvrBytes, "RESULT", "Outcome")
	if err != nil {
		return err
	}
	wantTotal, _ := strconv.Atoi(total)
	wantFailed, _ := strconv.Atoi(failed)

	checkLines, err := sectionLines(cvrBytes, "CHECKS")
	if err != nil {
		return err
	}
	gotTotal := 0
	gotFailed := 0
	for _, l := range checkLines {
		k, v, _ := strings.Cut(l, ": ")
		switch k {
		case "Check-ID":
			gotTotal++
		case "Passed":
			if v == "false" {
				gotFailed++
			}
		}
	}
	if gotTotal != wantTotal {
		return fmt.Errorf("Checks-Total is %d but CHECKS has %d records", wantTotal, gotTotal)
	}
	if gotFailed != wantFailed {
		return fmt.Errorf("Checks-Failed is %d but CHECKS has %d failed records", wantFailed, gotFailed)
	}
	if wantFailed > wantTotal {
		return fmt.Errorf("Checks-Failed %d exceeds Checks-Total %d", wantFailed, wantTotal)
	}
	wantOutcome := "Passed"
	if wantFailed > 0 {
		wantOutcome = "Failed"
	}
	if outcome != wantOutcome {
		return fmt.Errorf("Outcome is %s but failure count implies %s", outcome, wantOutcome)
	}
	return nil
}

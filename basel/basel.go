// Package basel computes Basel III CET1 capital adequacy results: the
// ratio of common equity tier 1 capital to risk-weighted assets, judged
// against the regulatory minimum and classified into adequacy bands.
package basel

import (
	"encoding/json"
	"strconv"

	"github.com/dhwcmoore/veribound-mvp/boundary"
)

// MinimumCET1Ratio is the Basel III common equity tier 1 minimum.
const MinimumCET1Ratio = 0.045

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Input is a raw capital adequacy computation request.
type Input struct {
	// CET1Capital is common equity tier 1 capital.
	CET1Capital float64
	// RWA is total risk-weighted assets. Must be positive.
	RWA float64
}

// ParseInput reads a computation request of the form
// {"cet1_capital": <number>, "rwa": <number>}. Unknown fields are
// tolerated; the two required fields must be present and numeric.
func ParseInput(data []byte) (Input, error) {
	var env struct {
		CET1Capital *float64 `json:"cet1_capital"`
		RWA         *float64 `json:"rwa"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Input{}, wrapError(KindValidation, "VB-VAL-301", "input is not a valid computation request", err)
	}
	if env.CET1Capital == nil {
		return Input{}, newError(KindValidation, "VB-VAL-302", "input missing numeric field cet1_capital")
	}
	if env.RWA == nil {
		return Input{}, newError(KindValidation, "VB-VAL-303", "input missing numeric field rwa")
	}
	return Input{CET1Capital: *env.CET1Capital, RWA: *env.RWA}, nil
}

// Results is the sealable outcome of a capital adequacy computation.
// Category is filled in after classification against a boundary policy.
type Results struct {
	CET1Ratio float64 `json:"cet1_ratio"`
	Status    string  `json:"status"`
	Category  string  `json:"category,omitempty"`
}

// RatioPercent returns the ratio scaled for classification: boundary
// policies for capital adequacy are expressed in percent.
func (r *Results) RatioPercent() float64 {
	return r.CET1Ratio * 100
}

// Compute validates the input and derives the CET1 ratio and PASS/FAIL
// status. Validation failures abort before any result exists.
func Compute(in Input) (*Results, error) {
	if in.RWA <= 0 {
		return nil, newError(KindValidation, "VB-VAL-304",
			"rwa must be positive, got "+strconv.FormatFloat(in.RWA, 'g', -1, 64))
	}
	ratio := in.CET1Capital / in.RWA
	status := StatusFail
	if ratio >= MinimumCET1Ratio {
		status = StatusPass
	}
	return &Results{CET1Ratio: ratio, Status: status}, nil
}

// Reference adequacy bands, expressed in percent of RWA.
const (
	ReferenceDomainLower = 0.0
	ReferenceDomainUpper = 100.0
)

// ReferencePolicy returns the built-in CET1 adequacy bands. Callers that
// need different bands load them from a boundary policy file instead.
func ReferencePolicy() []boundary.Boundary {
	return []boundary.Boundary{
		{Lower: 0, Upper: 4.5, Category: "Critical"},
		{Lower: 4.5, Upper: 6.0, Category: "Watch"},
		{Lower: 6.0, Upper: 8.0, Category: "Adequate"},
		{Lower: 8.0, Upper: 100.0, Category: "Excellent"},
	}
}

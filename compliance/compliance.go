// Package compliance selects how classification outcomes outside every
// band are handled.
package compliance

import "github.com/dhwcmoore/veribound-mvp/boundary"

// Mode selects how aggressively a pipeline rejects ambiguity.
//
// Strict mode prefers explicit failure over silent acceptance: a value no
// band contains aborts the run. Permissive mode records the unclassified
// outcome explicitly and carries on.
type Mode int

const (
	Permissive Mode = iota
	Strict
)

func (m Mode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	}
	return "unknown"
}

// ParseMode reads a mode name as it appears in flags and config files.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "permissive", "":
		return Permissive, true
	case "strict":
		return Strict, true
	}
	return Permissive, false
}

// Judge applies the mode to a classification outcome. Under Strict an
// unclassified outcome becomes a terminal error; under Permissive it is
// returned unchanged carrying the reserved Unclassified label.
func Judge(m Mode, out boundary.Outcome) (boundary.Outcome, error) {
	if m == Strict && !out.Classified {
		return out, boundary.UnclassifiedError(out.Value)
	}
	return out, nil
}

package boundary

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
//
// NOTE: Error() strings are intentionally kept human-readable and may evolve.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindMalformed marks a single boundary that is not a valid interval.
	KindMalformed Kind = "MalformedBoundary"
	// KindInvalid marks a boundary set that failed a well-formedness check.
	KindInvalid Kind = "BoundarySetInvalid"
	// KindUnclassified marks a value no boundary contains, surfaced as an
	// error only under strict compliance handling.
	KindUnclassified Kind = "Unclassified"
	KindInternal     Kind = "Internal"
)

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g., VB-BND-001, VB-SET-101) that names
// the violated invariant.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

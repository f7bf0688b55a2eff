package report

import "fmt"

type ErrorCode string

const (
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrPolicyInvalid ErrorCode = "POLICY_INVALID"
	ErrUnclassified  ErrorCode = "UNCLASSIFIED"
	ErrSeal          ErrorCode = "SEAL"
	ErrPersist       ErrorCode = "PERSIST"
	ErrReload        ErrorCode = "RELOAD"
	ErrSealMismatch  ErrorCode = "SEAL_MISMATCH"
	ErrInternal      ErrorCode = "INTERNAL"
)

// CodedError is a stable pipeline error: a machine-readable code, the
// stage that failed, and a human message. Stages fail terminally; a
// CodedError is never the result of a retryable condition.
type CodedError struct {
	Code    ErrorCode
	Stage   Stage
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Stage, e.Message)
}

func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(code ErrorCode, stage Stage, message string, cause error) *CodedError {
	return &CodedError{Code: code, Stage: stage, Message: message, Cause: cause}
}

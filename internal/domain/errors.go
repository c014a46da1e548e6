package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code and message, so wrapped
// copies created with WithCause still match the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error carrying an underlying cause
func (e *DomainError) WithCause(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeTimeout          = "TIMEOUT"
)

// Validation errors
var (
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChannel         = NewDomainError(ErrCodeValidation, "invalid channel")
	ErrInvalidDraftStatus     = NewDomainError(ErrCodeValidation, "invalid draft status")
	ErrInvalidMemoryScope     = NewDomainError(ErrCodeValidation, "invalid memory scope")
	ErrInvalidArtifactStage   = NewDomainError(ErrCodeValidation, "invalid pipeline artifact stage")
	ErrInvalidJobStatus       = NewDomainError(ErrCodeValidation, "invalid job status")
	ErrInvalidContextProfile  = NewDomainError(ErrCodeValidation, "invalid context profile")
	ErrInvalidJudgePayload    = NewDomainError(ErrCodeValidation, "invalid judge payload")
	ErrInvalidRevisionPayload = NewDomainError(ErrCodeValidation, "invalid revision payload")
	ErrInvalidEvaluation      = NewDomainError(ErrCodeValidation, "invalid evaluation payload")
)

// Not found errors
var (
	ErrDraftNotFound     = NewDomainError(ErrCodeNotFound, "draft not found")
	ErrArtifactNotFound  = NewDomainError(ErrCodeNotFound, "pipeline artifact not found")
	ErrWorkspaceNotFound = NewDomainError(ErrCodeNotFound, "workspace settings not found")
	ErrMemoryNotFound    = NewDomainError(ErrCodeNotFound, "memory entry not found")
	ErrJobNotFound       = NewDomainError(ErrCodeNotFound, "job not found")
	ErrPromptNotFound    = NewDomainError(ErrCodeNotFound, "prompt template not found")
)

// Authorization errors
var (
	ErrInvalidAPIToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Operation errors
var (
	ErrDraftNotPending     = NewDomainError(ErrCodeInvalidOperation, "draft is no longer pending")
	ErrLeadContextTimeout  = NewDomainError(ErrCodeTimeout, "lead context assembly timed out")
	ErrStructuredRunFailed = NewDomainError(ErrCodeInternalError, "structured prompt run failed")
)

// ErrorCode returns the code of the first DomainError in err's chain, or
// an empty string.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code
func IsNotFound(err error) bool {
	return ErrorCode(err) == ErrCodeNotFound
}

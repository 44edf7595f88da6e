package errors

import "fmt"

// ErrorCode represents a kwprobe error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrKeywordMismatch ErrorCode = "KEYWORD_MISMATCH" // 409
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"   // 429
	ErrStorage         ErrorCode = "STORAGE_ERROR"    // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
	ErrProvider        ErrorCode = "PROVIDER_ERROR"   // 502
)

// ProbeError represents a structured error with code, status, and details.
type ProbeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ProbeError {
	return &ProbeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing session, persona, or record.
func NewNotFound(kind string, id any) *ProbeError {
	return &ProbeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %v", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewKeywordMismatch creates a 409 error when sessions selected for a
// multi-session report do not share the same keyword.
func NewKeywordMismatch() *ProbeError {
	return &ProbeError{
		Code:    ErrKeywordMismatch,
		Status:  409,
		Message: "sessions selected for comparison must use the same keyword",
	}
}

// NewQuotaExceeded creates a 429 error when the rolling daily call cap is hit.
func NewQuotaExceeded(limit int) *ProbeError {
	return &ProbeError{
		Code:    ErrQuotaExceeded,
		Status:  429,
		Message: "You have run out of runs for today. Contact admin for more or return tomorrow.",
		Details: map[string]any{"daily_limit": limit},
	}
}

// NewStorage creates a 500 error for a persistence failure.
func NewStorage(err error) *ProbeError {
	msg := "storage error"
	if err != nil {
		msg = err.Error()
	}
	return &ProbeError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ProbeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ProbeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewProvider creates a 502 error for a failed model call.
func NewProvider(err error) *ProbeError {
	msg := "model call failed"
	if err != nil {
		msg = fmt.Sprintf("model call failed: %s", err.Error())
	}
	return &ProbeError{
		Code:    ErrProvider,
		Status:  502,
		Message: msg,
	}
}

// Is checks if an error is a ProbeError with the given code.
func Is(err error, code ErrorCode) bool {
	if pErr, ok := err.(*ProbeError); ok {
		return pErr.Code == code
	}
	return false
}

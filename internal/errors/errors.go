package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of recognition failure.
type ErrorCode string

const (
	ErrEngineUnavailable  ErrorCode = "ENGINE_UNAVAILABLE"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrNoText             ErrorCode = "NO_TEXT"
	ErrTimeout            ErrorCode = "TIMEOUT"
)

// ScanError is the structured error returned at component boundaries.
type ScanError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// New creates a ScanError with the given code.
func New(code ErrorCode, message string, cause error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: cause}
}

// NewEngineUnavailable reports an engine that could not be initialized.
func NewEngineUnavailable(engine string, cause error) *ScanError {
	return New(ErrEngineUnavailable, fmt.Sprintf("%s engine unavailable", engine), cause)
}

// NewNotFound reports that nothing was recognized or resolved.
func NewNotFound(msg string) *ScanError {
	return New(ErrNotFound, msg, nil)
}

// NewServiceUnavailable reports a transport or upstream failure.
func NewServiceUnavailable(service string, cause error) *ScanError {
	return New(ErrServiceUnavailable, fmt.Sprintf("%s unavailable", service), cause)
}

// NewInvalidInput reports a nil, empty or undecodable input.
func NewInvalidInput(msg string) *ScanError {
	return New(ErrInvalidInput, msg, nil)
}

// NewNoText reports OCR output that was empty after cleanup.
func NewNoText() *ScanError {
	return New(ErrNoText, "no text extracted", nil)
}

// NewTimeout reports an operation that exceeded its budget.
func NewTimeout(op string, cause error) *ScanError {
	return New(ErrTimeout, fmt.Sprintf("%s timed out", op), cause)
}

// Is checks if err (or anything it wraps) is a ScanError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ScanError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first ScanError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var sErr *ScanError
	if stderrors.As(err, &sErr) {
		return sErr.Code
	}
	return ""
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an aka error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrInvalidChunkSize    ErrorCode = "INVALID_CHUNK_SIZE"   // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrParse               ErrorCode = "PARSE_ERROR"          // 502
	ErrCollaboratorFailure ErrorCode = "COLLABORATOR_FAILURE" // 502
	ErrCacheCorrupt        ErrorCode = "CACHE_CORRUPT"        // 500
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// AkaError represents a structured error with code, status, and details.
type AkaError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *AkaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AkaError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AkaError {
	return &AkaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidChunkSize creates a 400 error for a non-positive chunk size.
func NewInvalidChunkSize(size int) *AkaError {
	return &AkaError{
		Code:    ErrInvalidChunkSize,
		Status:  400,
		Message: fmt.Sprintf("chunk size must be positive, got %d", size),
		Details: map[string]any{"max_context": size},
	}
}

// NewNotFound creates a 404 error for a missing cache entry or record.
func NewNotFound(identifier string) *AkaError {
	return &AkaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewParse creates a 502 error for a collaborator response with an unexpected shape.
func NewParse(what, msg string) *AkaError {
	return &AkaError{
		Code:    ErrParse,
		Status:  502,
		Message: fmt.Sprintf("%s response: %s", what, msg),
		Details: map[string]any{"response": what},
	}
}

// NewCollaboratorFailure creates a 502 error wrapping a failed embedding or chat call.
func NewCollaboratorFailure(what string, err error) *AkaError {
	msg := what + " call failed"
	if err != nil {
		msg = fmt.Sprintf("%s call failed: %v", what, err)
	}
	return &AkaError{
		Code:    ErrCollaboratorFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"collaborator": what},
		cause:   err,
	}
}

// NewCacheCorrupt creates a 500 error for a cache entry that cannot be decoded.
func NewCacheCorrupt(path string, err error) *AkaError {
	msg := "corrupt cache entry " + path
	if err != nil {
		msg = fmt.Sprintf("corrupt cache entry %s: %v", path, err)
	}
	return &AkaError{
		Code:    ErrCacheCorrupt,
		Status:  500,
		Message: msg,
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *AkaError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AkaError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err is (or wraps) an AkaError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AkaError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// As extracts the first AkaError in err's chain.
func As(err error) (*AkaError, bool) {
	var aErr *AkaError
	if stderrors.As(err, &aErr) {
		return aErr, true
	}
	return nil, false
}

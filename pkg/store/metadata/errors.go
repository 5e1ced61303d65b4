package metadata

import "errors"

// StoreError represents a domain error from store and drive operations.
//
// These are business logic errors (entry not found, name collision, quota
// exceeded) as opposed to infrastructure errors (network failure, disk
// error). The HTTP layer translates StoreError codes to status codes.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the entry path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested entry or user doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrConflict indicates a name collision on create/rename/move/restore
	ErrConflict

	// ErrPermissionDenied indicates the permission check returned false
	ErrPermissionDenied

	// ErrQuotaExceeded indicates a quota reservation failed
	ErrQuotaExceeded

	// ErrInvalidTarget indicates a move that would create a cycle
	ErrInvalidTarget

	// ErrValidation indicates a malformed name or path
	ErrValidation

	// ErrStorageBackend indicates an I/O failure in a storage backend
	ErrStorageBackend
)

// NewError creates a StoreError with the given code, message and path.
func NewError(code ErrorCode, message, path string) *StoreError {
	return &StoreError{Code: code, Message: message, Path: path}
}

// NewNotFound creates a not-found error for the given path or ID.
func NewNotFound(path string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "entry not found", Path: path}
}

// NewConflict creates a name-collision error for the given path.
func NewConflict(path string) *StoreError {
	return &StoreError{Code: ErrConflict, Message: "name already in use", Path: path}
}

// NewPermissionDenied creates a permission error for the given path.
func NewPermissionDenied(path string) *StoreError {
	return &StoreError{Code: ErrPermissionDenied, Message: "permission denied", Path: path}
}

// NewValidation creates a validation error with a specific message.
func NewValidation(message, path string) *StoreError {
	return &StoreError{Code: ErrValidation, Message: message, Path: path}
}

// codeIs reports whether err is (or wraps) a StoreError with the given code.
func codeIs(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found StoreError.
func IsNotFound(err error) bool { return codeIs(err, ErrNotFound) }

// IsConflict reports whether err is a conflict StoreError.
func IsConflict(err error) bool { return codeIs(err, ErrConflict) }

// IsPermissionDenied reports whether err is a permission StoreError.
func IsPermissionDenied(err error) bool { return codeIs(err, ErrPermissionDenied) }

// IsQuotaExceeded reports whether err is a quota StoreError.
func IsQuotaExceeded(err error) bool { return codeIs(err, ErrQuotaExceeded) }

// IsInvalidTarget reports whether err is an invalid-target StoreError.
func IsInvalidTarget(err error) bool { return codeIs(err, ErrInvalidTarget) }

// IsValidation reports whether err is a validation StoreError.
func IsValidation(err error) bool { return codeIs(err, ErrValidation) }

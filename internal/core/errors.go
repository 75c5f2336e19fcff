package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUploadNotFound is returned when no Upload matches an id or fingerprint.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrDuplicateFingerprint is returned by UploadRepository.Create when the
	// store's uniqueness constraint on the fingerprint rejects the insert.
	ErrDuplicateFingerprint = errors.New("duplicate upload fingerprint")

	// ErrInvalidTransition is returned when a status change would move an
	// Upload backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid upload status transition")

	ErrSourceUnreadable = errors.New("source file unreadable")
	ErrEmptyFile        = errors.New("empty file: the header record does not exist")
	ErrDuplicateHeader  = errors.New("invalid csv: duplicate header names")
	ErrNormalize        = errors.New("encoding error: normalization failed")
)

// ValidationError is an admission error. Nothing is stored when one is returned.
// Errors is keyed by request field name.
type ValidationError struct {
	Message string
	Errors  map[string][]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msgs := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, " ")))
	}
	if len(parts) == 0 {
		return e.Message
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func newFileValidationError(message string, details ...string) *ValidationError {
	return &ValidationError{
		Message: message,
		Errors:  map[string][]string{"file": details},
	}
}

// NewFileTooLargeError is the admission error for a file over max bytes.
func NewFileTooLargeError(max int64) *ValidationError {
	msg := fmt.Sprintf("The file field must not be greater than %d kilobytes.", max/1024)
	return newFileValidationError(msg, msg)
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// Reasons a transition is denied.
var (
	ErrIllegalColumn   = errors.New("illegal column")
	ErrMissingLocation = errors.New("missing location")
	ErrUnknownLocation = errors.New("unknown location")
	ErrItemRejected    = errors.New("item is rejected")
	ErrItemDraft       = errors.New("item is a draft")
	ErrItemClosed      = errors.New("item is closed")
	ErrInvalidLink     = errors.New("invalid board link")
	ErrInvalidRule     = errors.New("invalid threshold rule")
	ErrInvalidInput    = errors.New("invalid input")
)

// ValidationError is returned for requests that can never succeed as sent.
// It is not retried.
type ValidationError struct {
	Reason error
	Detail string
}

func NewValidationError(reason error, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

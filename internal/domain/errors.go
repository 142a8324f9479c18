package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorRecoverableUpstream  ErrorKind = "RECOVERABLE_UPSTREAM"
	ErrorMalformedModelOutput ErrorKind = "MALFORMED_MODEL_OUTPUT"
	ErrorEmptyResult          ErrorKind = "EMPTY_RESULT"
	ErrorConfiguration        ErrorKind = "CONFIGURATION"
)

type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Upstream wraps a failed collaborator call.
func Upstream(reason string, err error) *Error {
	return NewError(ErrorRecoverableUpstream, reason, err)
}

// Malformed reports a model answer that did not have the expected shape.
func Malformed(reason string, err error) *Error {
	return NewError(ErrorMalformedModelOutput, reason, err)
}

// IsKind reports whether err carries a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind == kind
}

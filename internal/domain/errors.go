package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrNotFound          = errors.New("application not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotReady          = errors.New("documents not ready")
	ErrGenerationFailure = errors.New("document generation failed")
)

// Error carries one of the Err* kinds together with the offending
// application id. errors.Is(err, ErrNotFound) matches on the kind.
type Error struct {
	Kind          error
	ApplicationID string
	Message       string
	Err           error
}

func NewError(kind error, applicationID, message string) *Error {
	return &Error{Kind: kind, ApplicationID: applicationID, Message: message}
}

func Errorf(kind error, applicationID, format string, args ...any) *Error {
	return NewError(kind, applicationID, fmt.Sprintf(format, args...))
}

// WrapError keeps cause in the chain but out of Error().
func WrapError(kind error, applicationID, message string, cause error) *Error {
	return &Error{Kind: kind, ApplicationID: applicationID, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.ApplicationID != "" {
		return fmt.Sprintf("%s (application %s)", msg, e.ApplicationID)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Err* kind of err, or nil when err is not a domain error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrInvalidDocument,
		ErrNotFound,
		ErrInvalidTransition,
		ErrNotReady,
		ErrGenerationFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

package apperror

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers and callers match on these with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrProviderUnavailable    = errors.New("payment provider unavailable")
	ErrDuplicateActivePayment = errors.New("duplicate active payment")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrUnrecognizedPayload    = errors.New("unrecognized payload")
	ErrNotFound               = errors.New("not found")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrRefundUnsupported      = errors.New("refund not supported")
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(ErrValidation, message)
}

func NotFound(entity, id string) *Error {
	return New(ErrNotFound, fmt.Sprintf("%s %s not found", entity, id))
}

func ProviderUnavailable(provider string, err error) *Error {
	return Wrap(ErrProviderUnavailable, fmt.Sprintf("%s is unavailable, retry later", provider), err)
}

func InvalidState(message string) *Error {
	return New(ErrInvalidState, message)
}

// InvalidTransition names the rejected source/target pair.
func InvalidTransition(entity, from, to string) *Error {
	return New(ErrInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", entity, from, to))
}

func DuplicateActivePayment(bookingID, method string) *Error {
	return New(ErrDuplicateActivePayment,
		fmt.Sprintf("booking %s already has an active %s payment", bookingID, method))
}

func UnrecognizedPayload(provider string, err error) *Error {
	return Wrap(ErrUnrecognizedPayload, fmt.Sprintf("unrecognized %s payload", provider), err)
}

func InvalidSignature(err error) *Error {
	return Wrap(ErrInvalidSignature, "webhook signature verification failed", err)
}

// Message returns the caller-facing message of the first *Error in the chain.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart is returned when checkout is entered with no items.
	ErrEmptyCart = &Error{Kind: KindStage, Message: "Your cart is empty."}
	// ErrMissingClientSecret means the payment provider returned no client
	// secret, a backend configuration problem rather than a declined payment.
	ErrMissingClientSecret = &Error{Kind: KindConfiguration, Message: "Payment is temporarily unavailable. Please try again later."}
)

// ErrorKind classifies failures for the HTTP layer.
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindNotFound      ErrorKind = "not_found"
	KindMalformed     ErrorKind = "malformed_response"
	KindValidation    ErrorKind = "validation"
	KindConflict      ErrorKind = "conflict"
	KindPayment       ErrorKind = "payment"
	KindConfiguration ErrorKind = "configuration"
	KindStage         ErrorKind = "stage"
	KindRateLimited   ErrorKind = "rate_limited"
	KindUpstream      ErrorKind = "upstream"
)

// Error carries a user-facing Message separate from the internal Detail.
// Status is the remote HTTP status when the error came from the backend.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Detail  string
	Fields  map[string]string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found kinds, and compares
// sentinel *Error values by kind and message.
func (e *Error) Is(target error) bool {
	if target == ErrNotFound {
		return e.Kind == KindNotFound
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ValidationError builds a field-level validation failure.
func ValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return ""
}

// RemoteStatus returns the remote HTTP status carried by err, if any.
func RemoteStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Package apperror defines the error taxonomy shared by stores, services and
// the HTTP layer.
package apperror

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindRateLimited
	KindNotFound
	KindConflict
	KindInvalidCredential
	KindWeakPassword
	KindUnsupportedMethod
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindWeakPassword:
		return "weak_password"
	case KindUnsupportedMethod:
		return "unsupported_method"
	default:
		return "internal"
	}
}

// Error is a user-facing failure. Message is safe to return to clients;
// Err holds the underlying cause and is never exposed.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of the first *Error in err's chain. Errors outside
// the taxonomy are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err, or fallback when err is
// not part of the taxonomy.
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the user-facing layers.
// Control flow switches on Kind; Detail is only ever displayed.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConnection        Kind = "connection"
	KindDisconnection     Kind = "disconnection"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindAccountResolution Kind = "account_resolution"
	KindSubmission        Kind = "submission"
	KindFetch             Kind = "fetch"
	KindUnknown           Kind = "unknown"
)

// Error is a failure tagged with its Kind.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given kind with a display detail.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. If err already carries a Kind it is wrapped anyway
// so the outermost boundary decides how the failure is reported.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// KindOf returns the Kind of the outermost *Error in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether the outermost *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	prefix := e.Kind.Title()
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (%v)", prefix, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", prefix, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

// Title is a short human label for the kind.
func (k Kind) Title() string {
	switch k {
	case KindValidation:
		return "Invalid input"
	case KindConnection:
		return "Wallet connection failed"
	case KindDisconnection:
		return "Wallet disconnection failed"
	case KindInsufficientFunds:
		return "Insufficient funds"
	case KindAccountResolution:
		return "Token account resolution failed"
	case KindSubmission:
		return "Transaction failed"
	case KindFetch:
		return "Fetch failed"
	default:
		return "Unexpected error"
	}
}

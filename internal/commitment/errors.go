package commitment

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a commitment failure. Kinds are stable and returned to
// callers as-is.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidKind  Kind = "INVALID_KIND"
	KindInvalid      Kind = "INVALID"
	KindConflict     Kind = "CONFLICT"
	KindPastDeadline Kind = "PAST_DEADLINE"
	KindAuthFailure  Kind = "AUTH_FAILURE"
	KindInternal     Kind = "INTERNAL"
)

// Error is the typed failure returned by the coordinator.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error of the given kind.
func New(kind Kind, op, message string) error {
	return &Error{Kind: kind, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message)}
}

// Wrap annotates err with a kind. Errors that already carry a kind pass
// through untouched.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}
	return &Error{Kind: kind, Op: strings.TrimSpace(op), Message: err.Error(), Cause: err}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the kind of err, or "" when err is not a commitment error.
func KindOf(err error) Kind {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return ""
	}
	return cerr.Kind
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Message != "" {
		return cerr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

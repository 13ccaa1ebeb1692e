// Package apperr defines the tagged error kinds returned by every core operation.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to translate it (HTTP status, log level).
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	NotFound
	Forbidden
	Conflict
	DependencyFailure
	Unauthenticated
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case DependencyFailure:
		return "dependency_failure"
	case Unauthenticated:
		return "unauthenticated"
	case RateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error carries a kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an error with a user-facing message.
func E(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf tags err with kind and a message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of the outermost tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the text safe to show a client: the first tagged message in the chain, or
// a default for the kind.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	for {
		if e.Msg != "" {
			return e.Msg
		}
		var inner *Error
		if !errors.As(e.Err, &inner) {
			break
		}
		e = inner
	}
	switch e.Kind {
	case InvalidInput:
		return "invalid input"
	case NotFound:
		return "not found"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case DependencyFailure:
		return "upstream dependency failed"
	case Unauthenticated:
		return "unauthorized request"
	case RateLimited:
		return "too many requests"
	default:
		return "internal error"
	}
}

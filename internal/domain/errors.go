package domain

import (
	"errors"
	"fmt"
)

// Kind classifies every error the core can produce. The set is closed:
// callers dispatch on the kind rather than on concrete error types.
type Kind string

const (
	// KindConfiguration marks missing required setup (snippets path, API
	// credential). Fatal to construction.
	KindConfiguration Kind = "configuration"
	// KindFolder marks filesystem access, permission, or existence problems
	// on the snippets root or its contents.
	KindFolder Kind = "folder"
	// KindValidation marks malformed input: empty fields, a bad keyword
	// pattern, or an unparseable API response. Always caller-correctable.
	KindValidation Kind = "validation"
	// KindDuplicate marks a keyword collision when overwrite was not
	// requested.
	KindDuplicate Kind = "duplicate"
	// KindAPI marks a remote call failure that is not transient.
	KindAPI Kind = "api"
	// KindNetwork marks a timeout or connection failure, surfaced only
	// after the retry budget is exhausted.
	KindNetwork Kind = "network"
	// KindRateLimit marks an exhausted rate-limit retry budget.
	KindRateLimit Kind = "rate_limit"
	// KindSnippet is the generic catch-all wrapping unexpected failures.
	KindSnippet Kind = "snippet"
)

// Error is the single error type shared by all packages. Status carries the
// HTTP status code for api-kind errors and is zero otherwise.
type Error struct {
	Kind   Kind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a new tagged error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a tagged error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, walking the wrap chain. Untagged errors
// report KindSnippet.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSnippet
}

// IsKind reports whether err carries the given kind. KindAPI also matches
// its network and rate-limit specializations.
func IsKind(err error, kind Kind) bool {
	got := KindOf(err)
	if got == kind {
		return true
	}
	if kind == KindAPI {
		return got == KindNetwork || got == KindRateLimit
	}
	return false
}

// StatusOf returns the HTTP status attached to err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Package apperr defines the error kinds surfaced at the HTTP boundary and
// their status code mapping. Internal packages wrap causes with fmt.Errorf
// and %w as usual; an *Error anywhere in the chain decides the response code,
// otherwise the boundary falls back to 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP status mapping.
type Kind int

const (
	Internal           Kind = iota // unexpected failure: DB, filesystem, vector store, embedding
	BadRequest                     // malformed input
	InvalidPath                    // path escapes the upload root
	NotFound                       // target does not exist
	Conflict                       // already exists, or indexing already in progress
	ServiceUnavailable             // RAG subsystem disabled
	Upstream                       // LLM provider returned non-2xx or was unreachable
)

// HTTPStatus returns the status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadRequest, InvalidPath:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Msg is the short human-readable string
// returned to clients; the wrapped cause is for logs only.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a classified error carrying a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from anywhere in err's chain, defaulting to Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// HTTPStatus returns the response code for err.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}

// Message returns the client-facing string for err: the classified message if
// present, the raw error text otherwise.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	return err.Error()
}

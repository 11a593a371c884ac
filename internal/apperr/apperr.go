// internal/apperr/apperr.go
//
// Structured application errors.
//
// Context
// -------
// Every failure that crosses a package boundary is an *Error carrying one
// Kind from a closed taxonomy.  Gateway errors (database driver, hosting
// API) are classified exactly once, at the boundary, by the helpers in
// classify.go.  Stores, the autosave coordinator, and the publish engine
// return those errors unchanged and only mint new ones for conditions they
// detect themselves (e.g., rollback's "Version not found").
//
// Notes
// -----
//   - Retryable kinds: NETWORK, RATE_LIMITED, SERVER.
//   - UserMessage never includes identifiers from the wrapped error.
//   - Oxford commas, two spaces after periods.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one entry of the error taxonomy.
type Kind string

const (
	KindNetwork     Kind = "NETWORK"
	KindAuth        Kind = "AUTH"
	KindForbidden   Kind = "FORBIDDEN"
	KindNotFound    Kind = "NOT_FOUND"
	KindValidation  Kind = "VALIDATION"
	KindConflict    Kind = "CONFLICT"
	KindRateLimited Kind = "RATE_LIMITED"
	KindServer      Kind = "SERVER"
	KindUnknown     Kind = "UNKNOWN"
)

var userMessages = map[Kind]string{
	KindNetwork:     "We could not reach the server.  Check your connection and try again.",
	KindAuth:        "Your session has expired.  Please sign in again.",
	KindForbidden:   "You do not have permission to perform this action.",
	KindNotFound:    "The requested item could not be found.",
	KindValidation:  "Some of the submitted data is invalid.",
	KindConflict:    "This change conflicts with another update.  Reload and try again.",
	KindRateLimited: "Too many requests.  Please wait a moment and try again.",
	KindServer:      "Something went wrong on our side.  Please try again.",
	KindUnknown:     "An unexpected error occurred.",
}

var httpStatuses = map[Kind]int{
	KindNetwork:     http.StatusBadGateway,
	KindAuth:        http.StatusUnauthorized,
	KindForbidden:   http.StatusForbidden,
	KindNotFound:    http.StatusNotFound,
	KindValidation:  http.StatusUnprocessableEntity,
	KindConflict:    http.StatusConflict,
	KindRateLimited: http.StatusTooManyRequests,
	KindServer:      http.StatusInternalServerError,
	KindUnknown:     http.StatusInternalServerError,
}

// Retryable reports whether an operation failing with k may succeed when
// repeated unchanged.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimited, KindServer:
		return true
	}
	return false
}

// UserMessage returns the stable user-facing text for k.
func (k Kind) UserMessage() string {
	if m, ok := userMessages[k]; ok {
		return m
	}
	return userMessages[KindUnknown]
}

// HTTPStatus maps k onto the status code API handlers respond with.
func (k Kind) HTTPStatus() int {
	if s, ok := httpStatuses[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the structured error propagated by every layer.
type Error struct {
	Kind    Kind
	Op      string // "section.Duplicate", "publish.Rollback", …
	Message string // optional user-facing override
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// UserMessage prefers the explicit Message and falls back to the kind text.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.UserMessage()
}

// New builds an error the caller detected itself.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap attaches a kind to an unclassified cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind of err.  nil yields "", anything that is not an
// *Error yields KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k anywhere in its chain.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool { return KindOf(err).Retryable() }

// UserMessage returns the user-safe text for err.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return KindUnknown.UserMessage()
}

package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// CollaboratorErrorMessage describes vector-store or LLM call failures.
	CollaboratorErrorMessage = "collaborator unavailable"
)

// Sentinel errors for the pipeline failure taxonomy. Callers classify with
// errors.Is and decide whether to recover locally or surface a clarification.
var (
	// ErrCollaboratorUnavailable marks vector-store or LLM call failures.
	// Always recovered locally with conservative defaults.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrMalformedStructuredOutput marks LLM JSON that fails to parse or
	// omits required fields. Always recovered with safe defaults.
	ErrMalformedStructuredOutput = errors.New("malformed structured output")
	// ErrAmbiguousQuery marks a query with no resolvable entity or topic.
	// Surfaced to the user as a clarification request, never guessed.
	ErrAmbiguousQuery = errors.New("ambiguous query")
	// ErrStaleContext marks a cached entity older than its validity window.
	ErrStaleContext = errors.New("stale entity context")
)

// Error wraps an underlying error with an HTTP status and safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapCollaborator tags a vector-store or LLM failure so callers can route
// it to a local fallback via errors.Is(err, ErrCollaboratorUnavailable).
func WrapCollaborator(err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Err:     fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err),
		Status:  http.StatusBadGateway,
		Message: CollaboratorErrorMessage,
	}
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

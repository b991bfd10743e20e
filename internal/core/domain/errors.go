package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a pipeline error.
type ErrorKind string

const (
	// ErrorKindClassification indicates a defect in the classifier.
	ErrorKindClassification ErrorKind = "classification"

	// ErrorKindFetch indicates a domain could not be fetched. Recovered locally.
	ErrorKindFetch ErrorKind = "fetch"

	// ErrorKindGeneration indicates the generation backend failed.
	ErrorKindGeneration ErrorKind = "generation"

	// ErrorKindGenerationTimeout indicates generation exceeded its deadline.
	ErrorKindGenerationTimeout ErrorKind = "generation_timeout"

	// ErrorKindRateLimit indicates the client exceeded a rate-limit window.
	ErrorKindRateLimit ErrorKind = "rate_limit"

	// ErrorKindPersistence indicates history could not be stored. Recovered locally.
	ErrorKindPersistence ErrorKind = "persistence"

	// ErrorKindInvalidRequest indicates a malformed request.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindUnauthorized indicates credentials that do not map to a user.
	ErrorKindUnauthorized ErrorKind = "unauthorized"

	// ErrorKindForbidden indicates an authenticated caller without access.
	ErrorKindForbidden ErrorKind = "forbidden"

	// ErrorKindNotFound indicates an unknown admin resource.
	ErrorKindNotFound ErrorKind = "not_found"
)

// ErrGenerationTimeout is matched by errors.Is for generation deadline errors.
var ErrGenerationTimeout = errors.New("generation timeout")

// QueryError is the canonical error carried through the pipeline.
type QueryError struct {
	// Kind is the category of error
	Kind ErrorKind `json:"type"`

	// State is the orchestrator state the error originated in, if any
	State string `json:"-"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// RetryAfter is set for rate-limit errors, in seconds
	RetryAfter int `json:"retry_after,omitempty"`

	// Err is the wrapped cause
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.State != "" {
		msg = fmt.Sprintf("%s (state %s)", msg, e.State)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is matches ErrGenerationTimeout for timeout errors.
func (e *QueryError) Is(target error) bool {
	return target == ErrGenerationTimeout && e.Kind == ErrorKindGenerationTimeout
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *QueryError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case ErrorKindForbidden:
		return http.StatusForbidden
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case ErrorKindGenerationTimeout:
		return http.StatusGatewayTimeout
	case ErrorKindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithState records the orchestrator state the error surfaced in.
func (e *QueryError) WithState(state string) *QueryError {
	e.State = state
	return e
}

// NewQueryError creates a new pipeline error.
func NewQueryError(kind ErrorKind, message string, err error) *QueryError {
	return &QueryError{Kind: kind, Message: message, Err: err}
}

// ErrFetch creates a fetch error for one domain.
func ErrFetch(tag DomainTag, err error) *QueryError {
	return NewQueryError(ErrorKindFetch, fmt.Sprintf("fetch %s", tag), err)
}

// ErrGeneration creates a generation error.
func ErrGeneration(message string, err error) *QueryError {
	return NewQueryError(ErrorKindGeneration, message, err)
}

// ErrGenerationDeadline creates a generation timeout error.
func ErrGenerationDeadline(err error) *QueryError {
	return NewQueryError(ErrorKindGenerationTimeout, "generation did not finish before the deadline", err)
}

// ErrRateLimited creates a rate-limit error with retry guidance.
func ErrRateLimited(retryAfter int) *QueryError {
	e := NewQueryError(ErrorKindRateLimit, "too many requests", nil)
	e.RetryAfter = retryAfter
	return e
}

// ErrPersistence creates a persistence error.
func ErrPersistence(message string, err error) *QueryError {
	return NewQueryError(ErrorKindPersistence, message, err)
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *QueryError {
	return NewQueryError(ErrorKindInvalidRequest, message, nil)
}

// KindOf returns the kind of err if it is a QueryError, else the empty kind.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

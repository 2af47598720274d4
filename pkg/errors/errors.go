// Package errors defines the error taxonomy shared by the postings store,
// the ranking engine and the HTTP front end.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFormat marks a malformed record, posting or position row. A store
	// that produces it is corrupt and must be rebuilt.
	ErrFormat = errors.New("malformed postings data")
	// ErrNotFound marks a lookup of an unknown term or document.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition marks a caller bug such as writing a term twice to one
	// store or mixing posting schemas.
	ErrPrecondition = errors.New("precondition violated")
	// ErrDegenerateQuery marks a query whose terms were all filtered out.
	// Scoring never returns it; it is used for logging and metrics labels.
	ErrDegenerateQuery = errors.New("degenerate query")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Preconditionf returns an error wrapping ErrPrecondition.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

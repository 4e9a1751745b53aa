// Package domainerrors defines the coded error type services return to
// transport. Stores speak in sentinel errors; services translate those
// into codes; transport maps codes onto HTTP statuses. Codes, not error
// strings, are the contract.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// CodeBadRequest covers malformed requests (bad JSON, missing body).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput covers well-formed requests with invalid fields.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound signals an absent entity.
	CodeNotFound Code = "not_found"
	// CodeInvalidOption signals an option id that does not belong to the
	// target poll.
	CodeInvalidOption Code = "invalid_option"
	// CodeDuplicateVote signals a uniqueness-constraint rejection. It is
	// expected traffic, never retried.
	CodeDuplicateVote Code = "duplicate_vote"
	// CodeRateLimited signals throttling; the caller may retry after the
	// window passes.
	CodeRateLimited Code = "rate_limited"
	// CodeTimeout signals a cancelled or deadline-exceeded operation.
	CodeTimeout Code = "timeout"
	// CodeInternal covers unexpected failures. Descriptions for this code
	// are never sent to clients.
	CodeInternal Code = "internal_error"
)

// Error carries a code plus an operator-facing description. The wrapped
// cause, when present, is preserved for errors.Is/As.
type Error struct {
	Code        Code
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, description string) error {
	return &Error{Code: code, Description: description}
}

// Wrap attaches a code and description to an underlying error.
func Wrap(err error, code Code, description string) error {
	return &Error{Code: code, Description: description, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal so that
// unclassified failures never leak details to clients.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code onto its transport status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeInvalidOption:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateVote:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewMalformedQuery marks a submission whose intent could not be extracted.
// Terminal for the run; consumes no redirect or assignment slot.
func NewMalformedQuery(message string) error {
	return NewDomainError("MALFORMED_QUERY", message, http.StatusUnprocessableEntity, nil)
}

// NewOracleUnavailable wraps a reasoning oracle failure that survived its retry.
func NewOracleUnavailable(err error) error {
	return &DomainError{
		Code:       "ORACLE_UNAVAILABLE",
		Message:    "reasoning oracle unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewNoCandidateAvailable marks an expert pool that is empty after exclusions.
func NewNoCandidateAvailable(details map[string]any) error {
	return NewDomainError("NO_CANDIDATE_AVAILABLE", "no eligible expert for assignment", http.StatusConflict, details)
}

// NewRedirectLimitExceeded marks a ticket that hit its reassignment cap.
func NewRedirectLimitExceeded(details map[string]any) error {
	return NewDomainError("REDIRECT_LIMIT_EXCEEDED", "redirect limit exceeded", http.StatusConflict, details)
}

// NewStaleCallEvent marks a completion notification for an already-terminal ticket.
func NewStaleCallEvent(ticketID string) error {
	return NewDomainError("STALE_CALL_EVENT", "call event for terminal ticket discarded", http.StatusConflict, map[string]any{
		"ticket_id": ticketID,
	})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Package errors carries the categorized errors services return and the HTTP
// layer renders.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bond-service/internal/types"
)

// ErrorCategory groups errors by who has to act on them
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	// CategoryProvider covers failures of the ISIN registry
	CategoryProvider ErrorCategory = "provider"
	CategoryDatabase ErrorCategory = "database"
	CategorySystem   ErrorCategory = "system"
)

// CategorizedError is an error with the status and code it is rendered with.
// Details is keyed by field name for validation and conflict errors.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

func (e *CategorizedError) Error() string {
	if e.Cause == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
}

func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError strips the category and cause, leaving what clients see
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

func newError(category ErrorCategory, status int, code, message string) *CategorizedError {
	return &CategorizedError{Category: category, StatusCode: status, Code: code, Message: message}
}

func (e *CategorizedError) with(details map[string]interface{}, cause error) *CategorizedError {
	e.Details = details
	e.Cause = cause
	return e
}

// NewInvalidParameterError reports a malformed query parameter
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	msg := fmt.Sprintf("invalid parameter '%s': %s", param, reason)
	return newError(CategoryValidation, http.StatusBadRequest, "INVALID_PARAMETER", msg).
		with(map[string]interface{}{"parameter": param, "reason": reason}, nil)
}

// NewValidationError reports a rejected field value
func NewValidationError(field string, message string) *CategorizedError {
	return newError(CategoryValidation, http.StatusBadRequest, "VALIDATION_ERROR", message).
		with(map[string]interface{}{field: message}, nil)
}

// NewConflictError reports a uniqueness violation on field. It renders as a
// 400 like any other field error.
func NewConflictError(field string, message string) *CategorizedError {
	return newError(CategoryConflict, http.StatusBadRequest, "CONFLICT", message).
		with(map[string]interface{}{field: message}, nil)
}

func NewUnauthorizedError(message string) *CategorizedError {
	return newError(CategoryAuthorization, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func NewForbiddenError(message string) *CategorizedError {
	return newError(CategoryAuthorization, http.StatusForbidden, "FORBIDDEN", message)
}

func NewNotFoundError(resource string, id string) *CategorizedError {
	return newError(CategoryNotFound, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found: %s", resource, id)).
		with(map[string]interface{}{"resource": resource, "id": id}, nil)
}

// NewRateLimitError tells the client how many seconds to back off
func NewRateLimitError(retryAfter int) *CategorizedError {
	return newError(CategoryRateLimit, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "rate limit exceeded").
		with(map[string]interface{}{"retryAfter": retryAfter}, nil)
}

func NewInternalError(message string, cause error) *CategorizedError {
	return newError(CategorySystem, http.StatusInternalServerError, "INTERNAL_ERROR", message).with(nil, cause)
}

func NewDatabaseError(operation string, cause error) *CategorizedError {
	msg := fmt.Sprintf("database error during %s", operation)
	return newError(CategoryDatabase, http.StatusInternalServerError, "DATABASE_ERROR", msg).
		with(map[string]interface{}{"operation": operation}, cause)
}

// NewServiceUnavailableError reports a dependency that refuses calls for now
func NewServiceUnavailableError(service string, cause error) *CategorizedError {
	msg := fmt.Sprintf("service unavailable: %s", service)
	return newError(CategorySystem, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", msg).
		with(map[string]interface{}{"service": service}, cause)
}

// NewProviderError reports a dependency that failed to answer
func NewProviderError(provider string, cause error) *CategorizedError {
	msg := fmt.Sprintf("data provider error: %s", provider)
	return newError(CategoryProvider, http.StatusBadGateway, "PROVIDER_ERROR", msg).
		with(map[string]interface{}{"provider": provider}, cause)
}

// serviceErrorStatus maps wire codes back to a category and status
var serviceErrorStatus = map[string]struct {
	category ErrorCategory
	status   int
}{
	"VALIDATION_ERROR":  {CategoryValidation, http.StatusBadRequest},
	"INVALID_PARAMETER": {CategoryValidation, http.StatusBadRequest},
	"INVALID_JSON":      {CategoryValidation, http.StatusBadRequest},
	"CONFLICT":          {CategoryValidation, http.StatusBadRequest},
	"NOT_FOUND":         {CategoryNotFound, http.StatusNotFound},
	"UNAUTHORIZED":      {CategoryAuthorization, http.StatusUnauthorized},
	"FORBIDDEN":         {CategoryAuthorization, http.StatusForbidden},
}

// Categorize returns err as a CategorizedError. Anything uncategorized is an
// internal error.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if errors.As(err, &svcErr) {
		m, ok := serviceErrorStatus[svcErr.Code]
		if !ok {
			m.category, m.status = CategorySystem, http.StatusInternalServerError
		}
		return newError(m.category, m.status, svcErr.Code, svcErr.Message).with(svcErr.Details, nil)
	}

	return NewInternalError("unexpected error", err)
}

func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports failures of a dependency that may succeed later
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	switch catErr.Category {
	case CategoryProvider, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

// IsUserError reports 4xx errors
func IsUserError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError reports 5xx errors
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 500
}

func IsNotFound(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryNotFound
}

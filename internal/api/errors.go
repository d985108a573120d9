package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/bond-service/internal/errors"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/types"
)

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := types.ErrorResponse{
		Error: &types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError renders a service error with the status of its category.
// Server-side failures are logged; their causes never reach the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	logger := logging.FromContext(r.Context())

	if apperrors.IsUserError(catErr) {
		logger.WithFields(map[string]interface{}{
			"code":   catErr.Code,
			"status": catErr.StatusCode,
		}).Debug("Request rejected")
	}

	if apperrors.IsSystemError(catErr) {
		logger.WithError(err).Error("Request failed")
		if apperrors.IsRetryable(catErr) {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		if catErr.StatusCode == http.StatusInternalServerError {
			respondError(w, catErr.StatusCode, ErrCodeInternalError, "An internal error occurred", nil)
			return
		}
	}
	respondJSON(w, catErr.StatusCode, types.ErrorResponse{Error: catErr.ToServiceError()})
}

// parseJSONBody parses a JSON request body. An empty body decodes as {}.
func parseJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondInvalidBody reports a body that could not be decoded
func respondInvalidBody(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
		"detail": err.Error(),
	})
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeTokenInvalid  = "TOKEN_NOT_VALID"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// retryAfterSeconds is advertised on failures of a dependency that may recover
const retryAfterSeconds = "30"

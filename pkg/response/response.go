package response

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// ErrorCode writes an error body with an explicit status and code.
func ErrorCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: code, Message: message})
}

// Error maps err to its status and writes it. Internal errors are logged and their
// details withheld from the client.
func Error(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		ErrorCode(w, status, code, "internal server error")
		return
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	ErrorCode(w, status, code, message)
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code string) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

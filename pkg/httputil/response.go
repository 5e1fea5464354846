// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, request parsing and common middleware.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/sirupsen/logrus"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ErrorBody is the error payload inside ErrorResponse
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse is the standardized error envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError maps err onto a status code and error envelope. Domain errors keep their
// message; anything else becomes a generic 500 and is logged with its cause.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		if log != nil {
			log.WithError(err).Error("request failed")
		}
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
			Code:    apperr.CodeInternal,
			Message: "An unexpected error occurred",
		}})
		return
	}

	if e.Kind == apperr.KindRateLimit && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(e.RetryAfter.Seconds())))
	}
	WriteJSON(w, e.Status(), ErrorResponse{Error: ErrorBody{
		Code:    e.Code(),
		Message: e.Message,
		Details: e.Details,
	}})
}

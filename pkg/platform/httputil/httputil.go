// Package httputil maps domain errors to JSON HTTP responses in one place so
// handlers stay thin and the error contract stays uniform.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "custodia/pkg/domain-errors"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a domain error as a JSON response. Internal errors omit
// the description so storage details never reach the caller; every other code
// includes the message, which names the conflicting state.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, StatusFor(code), body)
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeConflict, dErrors.CodeCustodyConflict, dErrors.CodeDuplicateRequest,
		dErrors.CodeUsernameTaken, dErrors.CodeAlreadyReviewed, dErrors.CodeInvalidTransition,
		dErrors.CodeTerminalState, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

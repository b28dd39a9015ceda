// Package apierror provides a centralized error response format for the
// tripwatch HTTP surface. All handlers use WriteJSON to produce consistent,
// machine-readable error responses with stable error codes.
package apierror

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable error classification string.
type ErrorCode string

// Error codes. These form a public API contract — clients can program
// against these stable codes. Do not rename or remove existing codes.
const (
	MethodNotAllowed      ErrorCode = "TRIPWATCH_METHOD_NOT_ALLOWED"
	Forbidden             ErrorCode = "TRIPWATCH_FORBIDDEN"
	AuthMissingToken      ErrorCode = "TRIPWATCH_AUTH_MISSING_TOKEN"
	AuthInvalidToken      ErrorCode = "TRIPWATCH_AUTH_INVALID_TOKEN"
	AuthInsufficientScope ErrorCode = "TRIPWATCH_AUTH_INSUFFICIENT_SCOPE"
	InternalError         ErrorCode = "TRIPWATCH_INTERNAL_ERROR"
)

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Pre-serialized JSON bodies for the most common error responses.
var (
	preMethodNotAllowed = mustMarshal(http.StatusMethodNotAllowed, MethodNotAllowed, "method not allowed")
	preForbidden        = mustMarshal(http.StatusForbidden, Forbidden, "access denied")
	preAuthMissingToken = mustMarshal(http.StatusUnauthorized, AuthMissingToken, "missing or malformed Authorization header")
)

func mustMarshal(status int, code ErrorCode, message string) []byte {
	b, _ := json.Marshal(ErrorResponse{
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
	})
	return append(b, '\n')
}

// WriteJSON writes a structured JSON error response. For common error
// code+message combinations, pre-serialized bodies are used.
func WriteJSON(w http.ResponseWriter, status int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body := preSerialized(status, code, message); body != nil {
		w.Write(body) //nolint:errcheck
		return
	}

	json.NewEncoder(w).Encode(ErrorResponse{ //nolint:errcheck
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
	})
}

// preSerialized returns a pre-built response body for common error
// combinations, or nil if no match.
func preSerialized(status int, code ErrorCode, message string) []byte {
	switch {
	case code == MethodNotAllowed && status == http.StatusMethodNotAllowed && message == "method not allowed":
		return preMethodNotAllowed
	case code == Forbidden && status == http.StatusForbidden && message == "access denied":
		return preForbidden
	case code == AuthMissingToken && status == http.StatusUnauthorized && message == "missing or malformed Authorization header":
		return preAuthMissingToken
	}
	return nil
}

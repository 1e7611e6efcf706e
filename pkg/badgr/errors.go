package badgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ============================================================================
// Error Types
// ============================================================================

// AuthenticationError is returned when the token endpoint rejects the
// configured credentials, or when no credential is left to obtain a token.
type AuthenticationError struct {
	// StatusCode is the HTTP status returned by the token endpoint (0 if no request was made)
	StatusCode int

	// Code is the OAuth2 error code (e.g., "invalid_grant")
	Code string

	// Description is a human-readable description of the failure
	Description string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	var b strings.Builder
	b.WriteString("badgr: authentication failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": " + e.Code)
	}
	if e.Description != "" {
		b.WriteString(": " + e.Description)
	}
	return b.String()
}

// APIError is returned for any non-2xx response other than the single
// 401 that triggers a token refresh, and for 2xx envelopes that report
// status.success=false.
type APIError struct {
	StatusCode int
	Method     string
	Path       string

	// Message is extracted from the response body when the server supplied one
	Message string

	// Body is the raw response body
	Body []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("badgr: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// ConnectionError wraps transport level failures. These are never retried.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("badgr: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// ValidationError is returned before any network call when an entity id is
// missing or malformed, or a required action parameter is absent.
type ValidationError struct {
	// Fields maps the JSON field name to the reason it is invalid
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "badgr: invalid request: " + strings.Join(parts, "; ")
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// errorBody covers the error shapes the server produces: OAuth2 token
// errors, the v2 response envelope and plain framework "detail" bodies.
type errorBody struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Detail           string          `json:"detail"`
	Status           *envelopeStatus `json:"status"`
}

// parseErrorMessage extracts the most specific message available from an
// error body. Returns an empty string when the body is not understood.
func parseErrorMessage(body []byte) (code, message string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", ""
	}

	// "error" is a string for OAuth2 failures but may be an object elsewhere
	var s string
	if len(eb.Error) > 0 && json.Unmarshal(eb.Error, &s) == nil {
		code = s
	}

	switch {
	case eb.ErrorDescription != "":
		message = eb.ErrorDescription
	case eb.Status != nil && eb.Status.Description != "":
		message = eb.Status.Description
	case eb.Detail != "":
		message = eb.Detail
	default:
		message = code
	}
	return code, message
}

// parseErrorResponse builds the APIError for a non-2xx response.
func parseErrorResponse(method, path string, status int, body []byte) *APIError {
	_, msg := parseErrorMessage(body)
	return &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Message:    msg,
		Body:       body,
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthenticated is matched by every *AuthError: the session is gone
	// and the user has to log in again.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNoRefreshToken means there was nothing to refresh with.
	ErrNoRefreshToken = errors.New("no refresh token stored")

	// ErrRefreshRejected means the refresh endpoint answered with a non-2xx status.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrMissingAccessToken means the refresh endpoint answered 2xx without an accessToken.
	ErrMissingAccessToken = errors.New("refresh response has no accessToken")

	// ErrTokenRejected means the server refused a token that had just been refreshed.
	ErrTokenRejected = errors.New("access token rejected after refresh")

	// ErrSessionCleared means the session was logged out while a refresh was
	// in flight, so its tokens were discarded.
	ErrSessionCleared = errors.New("session cleared during refresh")
)

// TransportError is a failure to exchange a request with the server at all:
// dial errors, timeouts, unreadable or malformed bodies.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RequestError is a non-2xx answer that did not go through the refresh path.
type RequestError struct {
	Status  int
	Message string
	Code    string
	Body    []byte
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// AuthError is a 401 that refreshing could not fix. The client has already
// cleared the session and the stored credentials when it is returned.
type AuthError struct {
	Err error
	// Coalesced is set when this caller waited on a refresh started by
	// another request rather than running its own.
	Coalesced bool
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return ErrUnauthenticated.Error()
	}
	return fmt.Sprintf("%v: %v", ErrUnauthenticated, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthenticated
}

// IsUnauthenticated reports whether err means the user must log in again.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// StatusOf returns the HTTP status carried by a *RequestError, or 0. An
// *AuthError reports 0: any status inside it belongs to the refresh call, not
// to the request the caller made.
func StatusOf(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return 0
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 RequestError.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// newRequestError builds a RequestError from an error body shaped like
// {"error": "...", "message": "...", "code": ...}. Bodies that are not JSON
// fall back to "HTTP <status>".
func newRequestError(status int, body []byte) *RequestError {
	reqErr := &RequestError{Status: status, Body: body}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if data, ok := payload["data"].(map[string]any); ok && payload["error"] == nil && payload["message"] == nil {
			payload = data
		}
		reqErr.Message = firstString(payload, "error", "message")
		switch code := payload["code"].(type) {
		case string:
			reqErr.Code = code
		case float64:
			reqErr.Code = fmt.Sprintf("%g", code)
		}
	}
	if reqErr.Message == "" {
		reqErr.Message = fmt.Sprintf("HTTP %d", status)
	}
	return reqErr
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

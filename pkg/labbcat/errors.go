package labbcat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for connection and authorization issues.
var (
	// ErrServerNotRunning indicates the server is not reachable.
	ErrServerNotRunning = errors.New("server is not running or unreachable")
	// ErrCredentialsRequired indicates the server requires a login but no
	// credentials were configured.
	ErrCredentialsRequired = errors.New("Username/password required")
	// ErrInvalidCredentials indicates the server rejected the configured credentials.
	ErrInvalidCredentials = errors.New("Username/password invalid")
	// ErrNoPattern is returned by Search when no pattern is given.
	ErrNoPattern = errors.New("No pattern specified.")
	// ErrPromptCancelled is returned by a PasswordPrompt to give up.
	ErrPromptCancelled = errors.New("Cancelled")
)

// ResponseError is returned when the server's response envelope reports a
// problem: error messages, a non-zero code, or an HTTP status other than 200.
type ResponseError struct {
	Response *Response
}

func (e *ResponseError) Error() string {
	r := e.Response
	switch {
	case len(r.Errors) > 0:
		return strings.Join(r.Errors, "\n")
	case r.Code > 0:
		return fmt.Sprintf("Response code %d", r.Code)
	default:
		return fmt.Sprintf("HTTP status %d", r.HTTPStatus)
	}
}

// StatusCode returns the HTTP status of the failed response, or -1 if unknown.
func (e *ResponseError) StatusCode() int {
	return e.Response.HTTPStatus
}

// VersionError is returned when the server is older than MinimumServerVersion.
type VersionError struct {
	Version string
	Minimum string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("Server is version %s but the minimum required version is %s", e.Version, e.Minimum)
}

// LengthMismatchError is returned when parallel id/offset slices differ in length.
type LengthMismatchError struct {
	IDs, Starts, Ends int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf(
		"transcriptIds (%d), startOffsets (%d), and endOffsets (%d) must be arrays of equal size.",
		e.IDs, e.Starts, e.Ends)
}

// IsNotFound returns true if the server answered 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized returns true if the server answered 401.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrCredentialsRequired)
}

// IsForbidden returns true if the server answered 403.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsConflict returns true if the server answered 409, e.g. because the
// record or transcript already exists.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsServerNotRunning returns true if the error indicates the server is not running.
func IsServerNotRunning(err error) bool {
	return errors.Is(err, ErrServerNotRunning)
}

// IsVersionMismatch returns true if the server is too old for this client.
func IsVersionMismatch(err error) bool {
	var vErr *VersionError
	return errors.As(err, &vErr)
}

// hasStatus checks if the error is a ResponseError with the given HTTP status.
func hasStatus(err error, status int) bool {
	if err == nil {
		return false
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Response.HTTPStatus == status
	}
	return false
}

// isConnectionRefused checks if the error is a connection refused error.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		(strings.Contains(errStr, "dial tcp") && strings.Contains(errStr, "refused"))
}

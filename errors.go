package main

import (
	"errors"
	"fmt"
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// AuthError is returned when the platform rejects the session cookie with a
// 401 or 403. It is kept separate from HTTPError so callers can tell an
// expired login apart from ordinary fetch failures.
type AuthError struct {
	StatusCode int
	URL        string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (HTTP %d) for %s: refresh the session cookie", e.StatusCode, e.URL)
}

var (
	// ErrUnsupportedURL means no parser recognizes the page URL.
	ErrUnsupportedURL = errors.New("unsupported URL")

	// ErrNoContent means the page was fetched but no article body was found.
	ErrNoContent = errors.New("article content not found")
)

// isAuthError reports whether err is (or wraps) an authentication rejection.
func isAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

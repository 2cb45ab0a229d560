package dashboard

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError reports a failure to reach the server at all: refused
// connections, DNS failures, timeouts.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError reports a non-success HTTP response.
type ServerError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.StatusCode)
}

// AuthError reports a rejected or expired bearer credential (HTTP 401).
type AuthError struct {
	Path   string
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api %s: unauthorized: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf("api %s: unauthorized", e.Path)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Message returns a user-facing description of err: the server's detail
// string when it sent one, otherwise fallback.
func Message(err error, fallback string) string {
	var serverErr *ServerError
	if errors.As(err, &serverErr) && strings.TrimSpace(serverErr.Detail) != "" {
		return serverErr.Detail
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && strings.TrimSpace(authErr.Detail) != "" {
		return authErr.Detail
	}
	return fallback
}

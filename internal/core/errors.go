package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrConfiguration indicates a malformed or incomplete kubeconfig.
// Fatal to startup; never retried.
type ErrConfiguration struct {
	Section string // "clusters", "users", "contexts", ...
	Name    string
	Reason  string
	Err     error
}

func (e *ErrConfiguration) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid configuration: %s %q: %s", e.Section, e.Name, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ErrConfiguration) Unwrap() error { return e.Err }

// ErrCredential indicates credential material that exists but is
// unusable (malformed PEM, unreadable token file).
type ErrCredential struct {
	User   string
	Reason string
	Err    error
}

func (e *ErrCredential) Error() string {
	return fmt.Sprintf("unusable credential for user %q: %s", e.User, e.Reason)
}

func (e *ErrCredential) Unwrap() error { return e.Err }

// ErrAuthentication indicates that a user entry carries no supported
// authentication mechanism at all.
type ErrAuthentication struct {
	User string
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("user %q has no supported authentication mechanism (client certificate or bearer token)", e.User)
}

// ErrTimeout indicates a request that exceeded its deadline.
type ErrTimeout struct {
	URL string
	Err error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("request to %s timed out", e.URL)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// ErrConnection indicates a transport-level failure before any HTTP
// response was received (refused, DNS, TLS handshake).
type ErrConnection struct {
	URL string
	Err error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ErrConnection) Unwrap() error { return e.Err }

// ErrAPI indicates a non-2xx response from the API server. The body is
// retained (truncated) for diagnostics.
type ErrAPI struct {
	Status int
	URL    string
	Body   []byte
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("API request to %s failed with status %d: %s", e.URL, e.Status, e.Body)
}

// ErrRebuildSuperseded is returned by SchemaIndex.Rebuild when a newer
// refresh request cancelled the cycle before it could publish.
var ErrRebuildSuperseded = errors.New("rebuild superseded by a newer refresh")

// IsTransient reports whether err is worth retrying: timeouts,
// connection failures, and 5xx/429 API responses. 4xx responses and
// configuration or credential errors are permanent.
func IsTransient(err error) bool {
	var timeout *ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	var conn *ErrConnection
	if errors.As(err, &conn) {
		return true
	}
	var api *ErrAPI
	if errors.As(err, &api) {
		return api.Status >= 500 || api.Status == http.StatusTooManyRequests
	}
	return false
}

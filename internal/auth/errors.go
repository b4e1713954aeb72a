package auth

import (
	"fmt"
	"strings"
)

// ConfigError reports unusable credential configuration: a bundle that could
// not be loaded, or one missing fields the token exchange requires.
type ConfigError struct {
	// Missing lists required bundle fields that are absent.
	Missing []string
	// Err is the underlying load failure, if any.
	Err error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return "credentials incomplete: missing " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		return "credentials unavailable: " + e.Err.Error()
	}
	return "credentials unavailable"
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError reports a token endpoint or gateway rejection. Status and Body
// are set when the failure came from an HTTP response.
type AuthError struct {
	Message string
	Status  int
	Body    string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s (status %d): %s", e.Message, e.Status, e.Body)
		}
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

// TransportError reports a network-level failure before any HTTP status was
// received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

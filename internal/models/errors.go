package models

import (
	"errors"
	"fmt"
)

// ErrEmptyConversation is returned when, after normalization, no user
// message with non-empty content remains. It is a precondition failure:
// no network request may be issued.
var ErrEmptyConversation = errors.New("conversation has no non-empty user message")

// ConfigurationError indicates a provider is missing required configuration
// (e.g. Azure endpoint/apiVersion). Raised at construction time, never at
// request time.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s misconfigured: %s", e.Provider, e.Reason)
}

// UnsupportedProviderError indicates an unknown provider identifier.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %s", e.Provider)
}

// AuthenticationError indicates the upstream rejected the credential.
type AuthenticationError struct {
	Provider string
	Status   int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("provider %s rejected credentials (status %d)", e.Provider, e.Status)
}

// TransportError indicates a network or upstream failure that is neither a
// configuration nor an authentication problem. Status is 0 when the request
// never produced a response.
type TransportError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s transport failure: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s returned status %d", e.Provider, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

package datasource

import (
	"errors"
	"fmt"
)

// ErrCredentialsRequired is returned by the registry when a provider
// demands an API key and none is configured.
var ErrCredentialsRequired = errors.New("provider credentials required")

// ErrUnknownProvider is returned for a provider key not in the registry.
var ErrUnknownProvider = errors.New("unknown provider")

// ProviderError wraps an upstream failure with the provider and
// operation it came from. Token values never appear in the message.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Provider, e.Op)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

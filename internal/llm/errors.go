package llm

import (
	"errors"
	"fmt"
)

// ErrModelNotFound indicates the requested model id is absent from the
// registry (user input error).
var ErrModelNotFound = errors.New("model not found")

// ErrProviderUnavailable indicates the model is known but its provider
// has no credential configured (configuration error).
var ErrProviderUnavailable = errors.New("provider unavailable")

// ProviderInitError indicates a startup-time failure to reach or
// authenticate to a backend. Fatal for that provider only.
type ProviderInitError struct {
	Provider string
	Err      error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("provider %s failed to initialize: %v", e.Provider, e.Err)
}

func (e *ProviderInitError) Unwrap() error {
	return e.Err
}

// Package provider defines the base interface shared by the model-inference
// backends, with a pluggable registry for runtime-selectable implementations.
package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

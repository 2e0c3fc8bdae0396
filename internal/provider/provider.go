// Package provider defines the contract between the relay and a
// generative-language backend.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live in separate packages (e.g., provider.gemini)
// and typically also implement core.Module for lifecycle management.
type Provider interface {
	// Complete sends the conversation and returns the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface for providers that can be probed
// by the gateway's health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

package providers

import (
	"context"

	"chatforge/internal/models"
)

// Provider abstracts one upstream LLM vendor.
//
// Generate issues exactly one outbound request. It returns an error when the
// request cannot be initiated (misconfiguration, rejected credential,
// transport failure); on success a goroutine parses the provider-native
// stream and emits deltas on events, closing the channel at end of stream.
// Emitted values are models.TextDelta, models.Finish, raw string deltas, or
// an error. Providers never retry internally.
type Provider interface {
	// Name returns the provider's identifier (e.g. "openai", "anthropic")
	Name() string

	Generate(ctx context.Context, messages []models.ProviderMessage, opts models.GenerateOptions, events chan<- any) error
}

package providers

import (
	"strings"
	"sync"
	"time"

	"chatforge/internal/models"
	"chatforge/internal/providers/anthropic"
	"chatforge/internal/providers/azure"
	"chatforge/internal/providers/google"
	"chatforge/internal/providers/openai"
	"chatforge/internal/providers/openrouter"
)

// Compile-time checks that every adapter satisfies the contract.
var (
	_ Provider = (*openai.Provider)(nil)
	_ Provider = (*azure.Provider)(nil)
	_ Provider = (*openrouter.Provider)(nil)
	_ Provider = (*anthropic.Provider)(nil)
	_ Provider = (*google.Provider)(nil)
)

// Registry maps provider identifiers to live adapter instances. Resolution
// is case-insensitive and performs no network access; credentials are
// validated on the first Generate call, not here. Adapters are stateless
// beyond their config, so instances are cached by provider+apiKey.
type Registry struct {
	mu      sync.Mutex
	cache   map[string]Provider
	timeout time.Duration
}

// NewRegistry creates a registry whose adapters use the given overall HTTP
// request timeout. Zero means no timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		cache:   make(map[string]Provider),
		timeout: timeout,
	}
}

// Resolve returns the adapter for the named provider.
// Unknown names yield UnsupportedProviderError. azure-openai requires a
// structured credential carrying endpoint and apiVersion; a bare string is
// a ConfigurationError.
func (r *Registry) Resolve(name string, cred models.CredentialValue) (Provider, error) {
	id := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := id + "\x00" + cred.APIKey
	if p, ok := r.cache[key]; ok {
		return p, nil
	}

	p, err := r.build(id, cred)
	if err != nil {
		return nil, err
	}
	r.cache[key] = p
	return p, nil
}

func (r *Registry) build(id string, cred models.CredentialValue) (Provider, error) {
	switch id {
	case "openai":
		return openai.New(cred, r.timeout), nil
	case "azure-openai":
		if cred.Bare {
			return nil, &models.ConfigurationError{
				Provider: id,
				Reason:   "requires endpoint and apiVersion configuration",
			}
		}
		return azure.New(cred, r.timeout)
	case "openrouter":
		return openrouter.New(cred, r.timeout), nil
	case "anthropic":
		return anthropic.New(cred, r.timeout), nil
	case "google":
		return google.New(cred, r.timeout), nil
	default:
		return nil, &models.UnsupportedProviderError{Provider: id}
	}
}

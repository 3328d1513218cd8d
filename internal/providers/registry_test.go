package providers

import (
	"errors"
	"testing"
	"time"

	"chatforge/internal/models"
)

func TestResolveKnownProviders(t *testing.T) {
	r := NewRegistry(time.Second)
	cred := models.CredentialValue{APIKey: "k", Bare: true}

	for _, name := range []string{"openai", "openrouter", "anthropic", "google"} {
		if _, err := r.Resolve(name, cred); err != nil {
			t.Errorf("Resolve(%q) failed: %v", name, err)
		}
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := NewRegistry(time.Second)
	cred := models.CredentialValue{APIKey: "k", Bare: true}

	a, err := r.Resolve("OpenAI", cred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := r.Resolve("openai", cred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("same provider and key should yield the cached instance")
	}
}

func TestResolveDistinctKeysDistinctInstances(t *testing.T) {
	r := NewRegistry(time.Second)
	a, _ := r.Resolve("openai", models.CredentialValue{APIKey: "one", Bare: true})
	b, _ := r.Resolve("openai", models.CredentialValue{APIKey: "two", Bare: true})
	if a == b {
		t.Error("different keys must not share an adapter")
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	r := NewRegistry(time.Second)
	_, err := r.Resolve("made-up", models.CredentialValue{APIKey: "k"})

	var unsupported *models.UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Errorf("expected UnsupportedProviderError, got %v", err)
	}
}

func TestResolveAzureRequiresStructuredCredential(t *testing.T) {
	r := NewRegistry(time.Second)

	_, err := r.Resolve("azure-openai", models.CredentialValue{APIKey: "k", Bare: true})
	var configErr *models.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("bare credential should be a ConfigurationError, got %v", err)
	}

	_, err = r.Resolve("azure-openai", models.CredentialValue{
		APIKey:     "k",
		Endpoint:   "https://res.openai.azure.com",
		APIVersion: "2024-02-01",
	})
	if err != nil {
		t.Errorf("structured credential should resolve: %v", err)
	}
}

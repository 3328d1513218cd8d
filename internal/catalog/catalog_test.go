package catalog

import "testing"

func TestDefaultsAreInCatalog(t *testing.T) {
	if !HasModel(DefaultModel) {
		t.Errorf("default model %q missing from catalog", DefaultModel)
	}
	if _, ok := LookupProvider(DefaultProvider); !ok {
		t.Errorf("default provider %q missing from catalog", DefaultProvider)
	}
}

func TestLookupProviderCaseInsensitive(t *testing.T) {
	p, ok := LookupProvider("openrouter")
	if !ok || p.Name != "OpenRouter" {
		t.Errorf("lookup should be case-insensitive, got %+v ok=%v", p, ok)
	}
	if _, ok := LookupProvider("nope"); ok {
		t.Error("unknown provider should not resolve")
	}
}

func TestModelsCarryProviderName(t *testing.T) {
	for _, m := range Models() {
		if m.Provider == "" {
			t.Errorf("model %q has no provider annotation", m.Name)
		}
	}
}

func TestMaxTokens(t *testing.T) {
	if got := MaxTokens("gpt-4-turbo"); got != 128000 {
		t.Errorf("expected catalog ceiling for gpt-4-turbo, got %d", got)
	}
	if got := MaxTokens("unknown-model"); got != DefaultMaxTokens {
		t.Errorf("unknown model should fall back to %d, got %d", DefaultMaxTokens, got)
	}
}

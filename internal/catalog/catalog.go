// Package catalog holds the static provider and model registry: which
// providers exist, which models they expose, and the max-token ceiling
// per model.
package catalog

import "strings"

// DefaultMaxTokens is the global ceiling used when a model is not in the
// registry.
const DefaultMaxTokens = 4096

// DefaultModel and DefaultProvider are used when a message carries no
// routing tags.
const (
	DefaultModel    = "anthropic/claude-3.5-sonnet"
	DefaultProvider = "OpenRouter"
)

// ModelInfo describes one selectable model.
type ModelInfo struct {
	Name      string
	Label     string
	Provider  string
	MaxTokens int
}

// ProviderInfo describes one provider and its static model list.
type ProviderInfo struct {
	Name          string
	Models        []ModelInfo
	GetAPIKeyLink string
}

// Providers is the static provider list. Order matters: the first entry is
// the default provider.
var Providers = []ProviderInfo{
	{
		Name: "OpenRouter",
		Models: []ModelInfo{
			{Name: "anthropic/claude-3.5-sonnet", Label: "Claude 3.5 Sonnet", MaxTokens: 8000},
			{Name: "gpt-4", Label: "GPT-4", MaxTokens: 8000},
			{Name: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo", MaxTokens: 4000},
			{Name: "anthropic/claude-3-opus", Label: "Claude 3 Opus", MaxTokens: 16000},
			{Name: "anthropic/claude-3-sonnet", Label: "Claude 3 Sonnet", MaxTokens: 8000},
			{Name: "meta-llama/llama-2-70b-chat", Label: "Llama 2 70B", MaxTokens: 4000},
			{Name: "google/gemini-pro", Label: "Gemini Pro", MaxTokens: 8000},
			{Name: "mistral/mistral-medium", Label: "Mistral Medium", MaxTokens: 8000},
		},
		GetAPIKeyLink: "https://openrouter.ai/settings/keys",
	},
	{
		Name: "OpenAI",
		Models: []ModelInfo{
			{Name: "gpt-4", Label: "GPT-4", MaxTokens: 8000},
			{Name: "gpt-4-turbo", Label: "GPT-4 Turbo", MaxTokens: 128000},
			{Name: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo", MaxTokens: 4000},
		},
		GetAPIKeyLink: "https://platform.openai.com/api-keys",
	},
	{
		Name: "Anthropic",
		Models: []ModelInfo{
			{Name: "claude-3-opus", Label: "Claude 3 Opus", MaxTokens: 16000},
			{Name: "claude-3-sonnet", Label: "Claude 3 Sonnet", MaxTokens: 8000},
			{Name: "claude-2.1", Label: "Claude 2.1", MaxTokens: 8000},
		},
		GetAPIKeyLink: "https://console.anthropic.com/settings/keys",
	},
	{
		Name: "Google",
		Models: []ModelInfo{
			{Name: "gemini-pro", Label: "Gemini Pro", MaxTokens: 8000},
			{Name: "gemini-pro-vision", Label: "Gemini Pro Vision", MaxTokens: 8000},
		},
		GetAPIKeyLink: "https://makersuite.google.com/app/apikey",
	},
	{
		// Azure models are deployment names; there is no static list.
		Name:          "Azure-OpenAI",
		GetAPIKeyLink: "https://portal.azure.com",
	},
}

// Models returns the flattened model list across all providers, each entry
// annotated with its provider name.
func Models() []ModelInfo {
	var all []ModelInfo
	for _, p := range Providers {
		for _, m := range p.Models {
			m.Provider = p.Name
			all = append(all, m)
		}
	}
	return all
}

// LookupProvider finds a provider by case-insensitive name.
func LookupProvider(name string) (ProviderInfo, bool) {
	for _, p := range Providers {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ProviderInfo{}, false
}

// HasModel reports whether a model name is present in the catalog.
func HasModel(name string) bool {
	for _, m := range Models() {
		if m.Name == name {
			return true
		}
	}
	return false
}

// MaxTokens resolves the ceiling for a model, falling back to
// DefaultMaxTokens for unknown models.
func MaxTokens(model string) int {
	for _, m := range Models() {
		if m.Name == model && m.MaxTokens > 0 {
			return m.MaxTokens
		}
	}
	return DefaultMaxTokens
}

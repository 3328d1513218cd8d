// Package chat converts between the application message representation and
// the shapes upstream providers expect, and owns the bracket-tag routing
// convention embedded in message text.
package chat

import (
	"regexp"
	"strings"

	"chatforge/internal/catalog"
	"chatforge/internal/models"
)

// Routing tag patterns. The two tags are matched independently so extraction
// tolerates either order, even though senders write model-first.
var (
	modelPattern    = regexp.MustCompile(`\[Model: (.*?)\]\n*`)
	providerPattern = regexp.MustCompile(`\[Provider: (.*?)\]\n*`)
)

// Routing is the model/provider pair recovered from a message.
type Routing struct {
	Model       string
	Provider    string
	HasModel    bool
	HasProvider bool
}

// TagMessage embeds routing tags at the start of a message body.
func TagMessage(model, provider, body string) string {
	return "[Model: " + model + "]\n\n[Provider: " + provider + "]\n\n" + body
}

// ExtractRouting recovers the routing tags from text and returns the
// cleaned text with both tags stripped. Absent tags yield the catalog
// defaults, with the Has* flags reporting what was actually present.
func ExtractRouting(text string) (Routing, string) {
	r := Routing{Model: catalog.DefaultModel, Provider: catalog.DefaultProvider}

	if m := modelPattern.FindStringSubmatch(text); m != nil {
		r.Model = m[1]
		r.HasModel = true
	}
	if m := providerPattern.FindStringSubmatch(text); m != nil {
		r.Provider = m[1]
		r.HasProvider = true
	}

	cleaned := modelPattern.ReplaceAllString(text, "")
	cleaned = providerPattern.ReplaceAllString(cleaned, "")
	return r, strings.TrimSpace(cleaned)
}

// CleanTags strips any routing tags from text without inspecting them.
func CleanTags(text string) string {
	cleaned := modelPattern.ReplaceAllString(text, "")
	cleaned = providerPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// ResolveRouting walks the conversation and returns the effective model and
// provider: the most recent user message carrying tags wins. Model tags
// naming models absent from the catalog are ignored, mirroring how unknown
// selections fall back to the default.
func ResolveRouting(messages []models.Message) (string, string) {
	model := catalog.DefaultModel
	provider := catalog.DefaultProvider

	for _, msg := range messages {
		if msg.Role != models.RoleUser {
			continue
		}
		r, _ := ExtractRouting(msg.Content.TextContent())
		if r.HasModel && catalog.HasModel(r.Model) {
			model = r.Model
		}
		if r.HasProvider {
			provider = r.Provider
		}
	}
	return model, provider
}

// ToProviderMessages builds the provider-facing prompt: exactly one system
// entry when systemPrompt is non-empty, then each conversation message with
// routing tags stripped, text parts flattened and image parts carried
// separately. Messages that are empty after trimming are dropped.
// Returns ErrEmptyConversation when no user message with content survives.
func ToProviderMessages(messages []models.Message, systemPrompt string) ([]models.ProviderMessage, error) {
	var out []models.ProviderMessage

	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, models.ProviderMessage{Role: models.RoleSystem, Content: systemPrompt})
	}

	hasUser := false
	for _, msg := range messages {
		content := msg.Content.Flatten()
		if msg.Role == models.RoleUser {
			content = CleanTags(content)
		}
		images := msg.Content.Images()

		if strings.TrimSpace(content) == "" && len(images) == 0 {
			continue
		}
		if msg.Role == models.RoleUser && strings.TrimSpace(content) != "" {
			hasUser = true
		}

		out = append(out, models.ProviderMessage{
			Role:    msg.Role,
			Content: content,
			Images:  images,
		})
	}

	if !hasUser {
		return nil, models.ErrEmptyConversation
	}
	return out, nil
}

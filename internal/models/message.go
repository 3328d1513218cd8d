package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles as they appear on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Content part kinds.
const (
	PartText  = "text"
	PartImage = "image"
)

// ContentPart is one entry of a structured message body.
// Text parts carry Text; image parts carry a data URI in Image.
type ContentPart struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// MessageContent is either a plain string or an ordered list of parts.
// The zero value is an empty plain string.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// IsParts reports whether the content is the structured (array) form.
func (c MessageContent) IsParts() bool { return c.Parts != nil }

// TextContent returns the plain text, or the text of the first text part
// for structured content.
func (c MessageContent) TextContent() string {
	if c.Parts == nil {
		return c.Text
	}
	for _, p := range c.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// Flatten joins all text parts with newlines. Plain content is returned as-is.
func (c MessageContent) Flatten() string {
	if c.Parts == nil {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Images returns the data URIs of all image parts, in order.
func (c MessageContent) Images() []string {
	var imgs []string
	for _, p := range c.Parts {
		if p.Type == PartImage {
			imgs = append(imgs, p.Image)
		}
	}
	return imgs
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		c.Text = ""
		return json.Unmarshal(data, &c.Parts)
	}
	c.Parts = nil
	if err := json.Unmarshal(data, &c.Text); err != nil {
		return fmt.Errorf("message content must be a string or part array: %w", err)
	}
	return nil
}

// TextContent builds plain-string content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// PartsContent builds structured content from the given parts.
func PartsContent(parts ...ContentPart) MessageContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return MessageContent{Parts: parts}
}

// Message is the application-internal chat message representation.
type Message struct {
	ID      string         `json:"id,omitempty"`
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ProviderMessage is a message normalized for an upstream provider: the text
// flattened to a single tag-free string, image parts carried separately so
// multi-part-capable adapters can forward them.
type ProviderMessage struct {
	Role    string
	Content string
	Images  []string
}

// GenerateOptions parameterizes a single generation request.
type GenerateOptions struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Package openai implements the OpenAI chat completions adapter. It also
// serves any OpenAI-compatible endpoint via the baseURL credential field.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"chatforge/internal/models"
	"chatforge/pkg/httputil"
	"chatforge/pkg/logger"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Provider struct {
	apiKey       string
	organization string
	baseURL      string
	client       *http.Client
}

// New creates an OpenAI adapter. No network access and no credential
// validation happen here.
func New(cred models.CredentialValue, timeout time.Duration) *Provider {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:       cred.APIKey,
		organization: cred.Organization,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

// OpenAI wire structures.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []contentPart for image-bearing messages
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type streamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// mapMessages converts normalized messages to the OpenAI shape. Messages
// carrying images become part arrays with image_url data-URI entries;
// text-only messages stay plain strings.
func mapMessages(messages []models.ProviderMessage) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if len(m.Images) == 0 {
			out = append(out, chatMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := []contentPart{{Type: "text", Text: m.Content}}
		for _, img := range m.Images {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img}})
		}
		out = append(out, chatMessage{Role: m.Role, Content: parts})
	}
	return out
}

func (p *Provider) Generate(ctx context.Context, messages []models.ProviderMessage, opts models.GenerateOptions, events chan<- any) error {
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.7
	}
	body := &chatRequest{
		Model:       opts.Model,
		Messages:    mapMessages(messages),
		Temperature: temp,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	if p.organization != "" {
		req.Header.Set("OpenAI-Organization", p.organization)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("OpenAI API network request failed", "error", err)
		return &models.TransportError{Provider: p.Name(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return &models.AuthenticationError{Provider: p.Name(), Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		err := &models.TransportError{Provider: p.Name(), Status: resp.StatusCode}
		logger.Error("OpenAI API request failed with status", "error", err)
		return err
	}

	go p.pipe(ctx, resp, events)
	return nil
}

func (p *Provider) pipe(ctx context.Context, resp *http.Response, events chan<- any) {
	defer resp.Body.Close()
	defer close(events)

	finished := false
	err := httputil.ProcessSSEStream(resp.Body, func(data []byte) error {
		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Partial frame, skip
			return nil
		}
		if len(chunk.Choices) == 0 {
			return nil
		}
		c := chunk.Choices[0]
		if c.Delta.Content != "" {
			if !emit(ctx, events, models.TextDelta{Text: c.Delta.Content}) {
				return ctx.Err()
			}
		}
		if c.FinishReason != nil && *c.FinishReason != "" && !finished {
			finished = true
			if !emit(ctx, events, models.Finish{Reason: *c.FinishReason}) {
				return ctx.Err()
			}
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("OpenAI stream error", "error", err)
		emit(ctx, events, err)
		return
	}
	if !finished && err == nil {
		emit(ctx, events, models.Finish{Reason: "stop"})
	}
}

func emit(ctx context.Context, events chan<- any, v any) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- v:
		return true
	}
}

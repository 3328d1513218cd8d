// Package azure implements the Azure OpenAI adapter. Requests route to a
// per-deployment URL and authenticate with the api-key header instead of a
// bearer token; endpoint and apiVersion are mandatory config.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatforge/internal/models"
	"chatforge/pkg/httputil"
	"chatforge/pkg/logger"
)

type Provider struct {
	apiKey     string
	endpoint   string
	apiVersion string
	client     *http.Client
}

// New creates an Azure OpenAI adapter. Missing endpoint or apiVersion is a
// construction-time ConfigurationError, never a request-time one.
func New(cred models.CredentialValue, timeout time.Duration) (*Provider, error) {
	if cred.Endpoint == "" || cred.APIVersion == "" {
		return nil, &models.ConfigurationError{
			Provider: "azure-openai",
			Reason:   "requires endpoint and apiVersion configuration",
		}
	}
	return &Provider{
		apiKey:     cred.APIKey,
		endpoint:   strings.TrimRight(cred.Endpoint, "/"),
		apiVersion: cred.APIVersion,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *Provider) Name() string { return "azure-openai" }

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

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

type streamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) Generate(ctx context.Context, messages []models.ProviderMessage, opts models.GenerateOptions, events chan<- any) error {
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.7
	}

	// The deployment id doubles as the model name; Azure routes per deployment.
	body := &chatRequest{
		Messages:    mapMessages(messages),
		Temperature: temp,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, opts.Model, p.apiVersion)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("Azure OpenAI network request failed", "error", err, "deployment", opts.Model)
		return &models.TransportError{Provider: p.Name(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return &models.AuthenticationError{Provider: p.Name(), Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		err := &models.TransportError{Provider: p.Name(), Status: resp.StatusCode}
		logger.Error("Azure OpenAI request failed with status", "error", err, "deployment", opts.Model)
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
		logger.Error("Azure OpenAI stream error", "error", err)
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

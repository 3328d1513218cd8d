// Package openrouter implements the OpenRouter gateway adapter. The wire
// format is OpenAI-compatible, but message content is flattened to plain
// strings since routed targets do not uniformly accept part arrays.
package openrouter

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

const defaultBaseURL = "https://openrouter.ai/api/v1"

type Provider struct {
	apiKey  string
	referer string
	baseURL string
	client  *http.Client
}

func New(cred models.CredentialValue, timeout time.Duration) *Provider {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  cred.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openrouter" }

// SetReferer sets the HTTP-Referer header OpenRouter uses for app
// attribution.
func (p *Provider) SetReferer(origin string) { p.referer = origin }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
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
	body := &chatRequest{
		Model:       opts.Model,
		Temperature: temp,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
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
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.referer != "" {
		req.Header.Set("HTTP-Referer", p.referer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("OpenRouter network request failed", "error", err)
		return &models.TransportError{Provider: p.Name(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return &models.AuthenticationError{Provider: p.Name(), Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		err := &models.TransportError{Provider: p.Name(), Status: resp.StatusCode}
		logger.Error("OpenRouter request failed with status", "error", err)
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
		logger.Error("OpenRouter stream error", "error", err)
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

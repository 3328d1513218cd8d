// Package anthropic implements the Anthropic messages adapter.
package anthropic

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

const defaultBaseURL = "https://api.anthropic.com/v1"

const anthropicVersion = "2023-06-01"

type Provider struct {
	apiKey  string
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

func (p *Provider) Name() string { return "anthropic" }

// anthropic structures
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
}

// mapRequest hoists the system entry into Anthropic's dedicated field and
// coerces any residual role to "user". max_tokens is mandatory upstream.
func mapRequest(messages []models.ProviderMessage, opts models.GenerateOptions) *anthropicRequest {
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.7
	}
	areq := &anthropicRequest{
		Model:       opts.Model,
		Stream:      true,
		Temperature: temp,
		MaxTokens:   opts.MaxTokens,
	}
	if areq.MaxTokens == 0 {
		areq.MaxTokens = 4096
	}

	for _, m := range messages {
		if strings.ToLower(m.Role) == models.RoleSystem {
			areq.System = m.Content
			continue
		}

		role := strings.ToLower(m.Role)
		if role != models.RoleUser && role != models.RoleAssistant {
			role = models.RoleUser
		}

		areq.Messages = append(areq.Messages, anthropicMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return areq
}

func (p *Provider) Generate(ctx context.Context, messages []models.ProviderMessage, opts models.GenerateOptions, events chan<- any) error {
	areq := mapRequest(messages, opts)

	data, err := json.Marshal(areq)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/messages", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("Anthropic API network request failed", "error", err)
		return &models.TransportError{Provider: p.Name(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return &models.AuthenticationError{Provider: p.Name(), Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		err := &models.TransportError{Provider: p.Name(), Status: resp.StatusCode}
		logger.Error("Anthropic API streaming request failed with status", "error", err)
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
		var event anthropicStreamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// Ignore decode errors on partial chunks
			return nil
		}

		switch {
		case event.Type == "content_block_delta" && event.Delta.Type == "text_delta":
			if !emit(ctx, events, models.TextDelta{Text: event.Delta.Text}) {
				return ctx.Err()
			}
		case event.Type == "message_stop" && !finished:
			finished = true
			if !emit(ctx, events, models.Finish{Reason: "stop"}) {
				return ctx.Err()
			}
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Anthropic stream error", "error", err)
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

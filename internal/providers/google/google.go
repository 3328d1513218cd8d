// Package google implements the Google Gemini adapter. Its stream deltas
// are emitted as raw strings; the translator normalizes them alongside the
// tagged shapes the other adapters produce.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatforge/internal/models"
	"chatforge/pkg/httputil"
	"chatforge/pkg/logger"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

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
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "google" }

// Google Gemini API Structures
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func mapRequest(messages []models.ProviderMessage) *geminiRequest {
	greq := &geminiRequest{}

	for _, m := range messages {
		role := strings.ToLower(m.Role)
		// Gemini only supports "user" and "model"
		if role == models.RoleAssistant {
			role = "model"
		} else {
			role = models.RoleUser
		}

		greq.Contents = append(greq.Contents, geminiContent{
			Role: role,
			Parts: []geminiPart{
				{Text: m.Content},
			},
		})
	}
	return greq
}

func (p *Provider) Generate(ctx context.Context, messages []models.ProviderMessage, opts models.GenerateOptions, events chan<- any) error {
	greq := mapRequest(messages)
	data, err := json.Marshal(greq)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, opts.Model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("Google API network request failed", "error", err)
		return &models.TransportError{Provider: p.Name(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return &models.AuthenticationError{Provider: p.Name(), Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		err := &models.TransportError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("google api error: %s", string(body)),
		}
		logger.Error("Google API request failed with status", "error", err)
		return err
	}

	go p.pipe(ctx, resp, events)
	return nil
}

func (p *Provider) pipe(ctx context.Context, resp *http.Response, events chan<- any) {
	defer resp.Body.Close()
	defer close(events)

	err := httputil.ProcessSSEStream(resp.Body, func(data []byte) error {
		var gresp geminiResponse
		if err := json.Unmarshal(data, &gresp); err != nil {
			return nil
		}
		if len(gresp.Candidates) == 0 || len(gresp.Candidates[0].Content.Parts) == 0 {
			return nil
		}
		// Raw string delta, normalized downstream.
		if !emit(ctx, events, gresp.Candidates[0].Content.Parts[0].Text) {
			return ctx.Err()
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Google stream error", "error", err)
		emit(ctx, events, err)
		return
	}
	if err == nil {
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

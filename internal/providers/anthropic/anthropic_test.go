package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatforge/internal/models"
)

func sseAnthropicServer(t *testing.T, captured *anthropicRequest, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			t.Error("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("wrong anthropic-version header: %q", r.Header.Get("anthropic-version"))
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("bad request body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
	}))
}

func collect(t *testing.T, events <-chan any) []any {
	t.Helper()
	var out []any
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestGenerateStreams(t *testing.T) {
	var body anthropicRequest
	srv := sseAnthropicServer(t, &body, []string{
		`{"type":"message_start"}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`,
		`{"type":"message_stop"}`,
	})
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "sk-ant", BaseURL: srv.URL}, time.Second)
	events := make(chan any)
	err := p.Generate(context.Background(), []models.ProviderMessage{
		{Role: models.RoleSystem, Content: "be terse"},
		{Role: models.RoleUser, Content: "hi"},
	}, models.GenerateOptions{Model: "claude-3-sonnet", MaxTokens: 8000}, events)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := collect(t, events)
	want := []any{
		models.TextDelta{Text: "Hel"},
		models.TextDelta{Text: "lo"},
		models.Finish{Reason: "stop"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %#v want %#v", i, got[i], want[i])
		}
	}

	if body.System != "be terse" {
		t.Errorf("system prompt should be hoisted into the system field: %q", body.System)
	}
	for _, m := range body.Messages {
		if m.Role == "system" {
			t.Error("system entry must not remain in messages")
		}
	}
}

func TestMapRequestDefaultsMaxTokens(t *testing.T) {
	areq := mapRequest([]models.ProviderMessage{{Role: "user", Content: "x"}}, models.GenerateOptions{Model: "claude-3-sonnet"})
	if areq.MaxTokens != 4096 {
		t.Errorf("max_tokens is mandatory upstream, expected default 4096, got %d", areq.MaxTokens)
	}
}

func TestMapRequestCoercesRoles(t *testing.T) {
	areq := mapRequest([]models.ProviderMessage{
		{Role: "function", Content: "result"},
	}, models.GenerateOptions{})
	if areq.Messages[0].Role != models.RoleUser {
		t.Errorf("unknown roles should coerce to user, got %q", areq.Messages[0].Role)
	}
}

func TestGenerateAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "bad", BaseURL: srv.URL}, time.Second)
	err := p.Generate(context.Background(), nil, models.GenerateOptions{Model: "claude-3-sonnet"}, make(chan any))

	var authErr *models.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestGenerateFallbackFinish(t *testing.T) {
	srv := sseAnthropicServer(t, nil, []string{
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"x"}}`,
	})
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "k", BaseURL: srv.URL}, time.Second)
	events := make(chan any)
	if err := p.Generate(context.Background(), []models.ProviderMessage{{Role: "user", Content: "x"}}, models.GenerateOptions{Model: "claude-3-sonnet"}, events); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := collect(t, events)
	if got[len(got)-1] != (models.Finish{Reason: "stop"}) {
		t.Errorf("expected synthesized finish, got %#v", got[len(got)-1])
	}
}

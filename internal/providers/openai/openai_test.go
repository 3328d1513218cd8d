package openai

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

// sseServer returns a stub endpoint that records the decoded request body
// and replies with a scripted OpenAI SSE stream.
func sseServer(t *testing.T, captured *map[string]any, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("bad request body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
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
	var body map[string]any
	srv := sseServer(t, &body, []string{
		`{"id":"1","choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}`,
		`{"id":"1","choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}`,
		`{"id":"1","choices":[{"delta":{"content":"lo"},"finish_reason":null}]}`,
		`{"id":"1","choices":[{"delta":{},"finish_reason":"stop"}]}`,
	})
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "sk-test", BaseURL: srv.URL}, time.Second)
	events := make(chan any)
	err := p.Generate(context.Background(), []models.ProviderMessage{
		{Role: models.RoleUser, Content: "hi"},
	}, models.GenerateOptions{Model: "gpt-4", MaxTokens: 100}, events)
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

	if body["stream"] != true {
		t.Error("request must set stream:true")
	}
	if body["model"] != "gpt-4" {
		t.Errorf("wrong model in request: %v", body["model"])
	}
}

func TestGenerateSendsAuthHeaders(t *testing.T) {
	var auth, org string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		org = r.Header.Get("OpenAI-Organization")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "sk-test", Organization: "org-1", BaseURL: srv.URL}, time.Second)
	events := make(chan any)
	if err := p.Generate(context.Background(), []models.ProviderMessage{{Role: "user", Content: "x"}}, models.GenerateOptions{Model: "gpt-4"}, events); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	collect(t, events)

	if auth != "Bearer sk-test" {
		t.Errorf("wrong Authorization header: %q", auth)
	}
	if org != "org-1" {
		t.Errorf("wrong OpenAI-Organization header: %q", org)
	}
}

func TestGenerateAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "bad", BaseURL: srv.URL}, time.Second)
	err := p.Generate(context.Background(), nil, models.GenerateOptions{Model: "gpt-4"}, make(chan any))

	var authErr *models.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("wrong status: %d", authErr.Status)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "k", BaseURL: srv.URL}, time.Second)
	err := p.Generate(context.Background(), nil, models.GenerateOptions{Model: "gpt-4"}, make(chan any))

	var transport *models.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestGenerateFallbackFinish(t *testing.T) {
	// Stream ends without a finish_reason; the adapter must synthesize one.
	srv := sseServer(t, nil, []string{
		`{"id":"1","choices":[{"delta":{"content":"x"},"finish_reason":null}]}`,
	})
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "k", BaseURL: srv.URL}, time.Second)
	events := make(chan any)
	if err := p.Generate(context.Background(), []models.ProviderMessage{{Role: "user", Content: "x"}}, models.GenerateOptions{Model: "gpt-4"}, events); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := collect(t, events)
	if len(got) == 0 {
		t.Fatal("no events")
	}
	if got[len(got)-1] != (models.Finish{Reason: "stop"}) {
		t.Errorf("expected synthesized finish, got %#v", got[len(got)-1])
	}
}

func TestMapMessagesImages(t *testing.T) {
	mapped := mapMessages([]models.ProviderMessage{
		{Role: "user", Content: "look", Images: []string{"data:image/png;base64,AA"}},
		{Role: "assistant", Content: "plain"},
	})

	parts, ok := mapped[0].Content.([]contentPart)
	if !ok {
		t.Fatalf("image message should map to parts, got %T", mapped[0].Content)
	}
	if parts[0].Type != "text" || parts[0].Text != "look" {
		t.Errorf("first part should be the text: %+v", parts[0])
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL.URL != "data:image/png;base64,AA" {
		t.Errorf("second part should be the image: %+v", parts[1])
	}

	if _, ok := mapped[1].Content.(string); !ok {
		t.Errorf("text-only message should stay a plain string, got %T", mapped[1].Content)
	}
}

package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatforge/internal/models"
)

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

func TestGenerateEmitsRawStringDeltas(t *testing.T) {
	var path, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"candidates":[{"content":{"parts":[{"text":"Hel"}]}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"candidates":[{"content":{"parts":[{"text":"lo"}]}}]}`+"\n\n")
	}))
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "AIza-test", BaseURL: srv.URL + "/"}, time.Second)
	events := make(chan any)
	err := p.Generate(context.Background(), []models.ProviderMessage{
		{Role: models.RoleUser, Content: "hi"},
	}, models.GenerateOptions{Model: "gemini-pro"}, events)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := collect(t, events)
	if len(got) != 3 {
		t.Fatalf("expected 2 deltas + finish, got %v", got)
	}
	if s, ok := got[0].(string); !ok || s != "Hel" {
		t.Errorf("deltas must be raw strings, got %#v", got[0])
	}
	if got[2] != (models.Finish{Reason: "stop"}) {
		t.Errorf("expected finish after stream end, got %#v", got[2])
	}

	if !strings.Contains(path, "gemini-pro:streamGenerateContent") {
		t.Errorf("wrong request path: %q", path)
	}
	if !strings.Contains(query, "alt=sse") || !strings.Contains(query, "key=AIza-test") {
		t.Errorf("wrong query string: %q", query)
	}
}

func TestMapRequestRoles(t *testing.T) {
	greq := mapRequest([]models.ProviderMessage{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	})
	if greq.Contents[0].Role != "user" {
		t.Errorf("system should coerce to user, got %q", greq.Contents[0].Role)
	}
	if greq.Contents[2].Role != "model" {
		t.Errorf("assistant should map to model, got %q", greq.Contents[2].Role)
	}
}

func TestGenerateUpstreamErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad model"}`)
	}))
	defer srv.Close()

	p := New(models.CredentialValue{APIKey: "k", BaseURL: srv.URL + "/"}, time.Second)
	err := p.Generate(context.Background(), nil, models.GenerateOptions{Model: "gemini-pro"}, make(chan any))

	var transport *models.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !strings.Contains(transport.Error(), "bad model") {
		t.Errorf("upstream body should be carried in the error: %v", transport)
	}
}

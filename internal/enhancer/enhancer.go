// Package enhancer rewrites a draft prompt into a sharper one via a
// single-shot streaming completion. The improved text streams back through
// a progressive-replace callback so callers can update their input buffer
// live.
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatforge/internal/models"
	"chatforge/internal/providers"
	"chatforge/internal/stream"
)

// ErrBusy is returned when an enhancement is already running.
var ErrBusy = errors.New("an enhancement is already in progress")

// ErrEmptyDraft is returned for blank input.
var ErrEmptyDraft = errors.New("nothing to enhance")

const instruction = "I want you to improve the user prompt that is wrapped in `<original_prompt>` tags.\n\n" +
	"IMPORTANT: Only respond with the improved prompt and nothing else!\n\n" +
	"<original_prompt>\n%s\n</original_prompt>"

// Resolver maps a provider id and credential to a live adapter.
type Resolver interface {
	Resolve(name string, cred models.CredentialValue) (providers.Provider, error)
}

// Enhancer runs at most one enhancement at a time.
type Enhancer struct {
	mu       sync.Mutex
	busy     bool
	registry Resolver
}

func New(registry Resolver) *Enhancer {
	return &Enhancer{registry: registry}
}

// Busy reports whether an enhancement is in flight.
func (e *Enhancer) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Enhance streams an improved version of draft. onUpdate, if non-nil, is
// called with the full accumulated text after every delta. On any failure
// the draft is returned unchanged alongside the error, so callers can
// restore their input buffer. The busy flag is cleared on every exit path.
func (e *Enhancer) Enhance(ctx context.Context, draft string, opts models.GenerateOptions, cred models.CredentialValue, onUpdate func(accumulated string)) (string, error) {
	if strings.TrimSpace(draft) == "" {
		return draft, ErrEmptyDraft
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return draft, ErrBusy
	}
	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	p, err := e.registry.Resolve(opts.Provider, cred)
	if err != nil {
		return draft, err
	}

	request := []models.ProviderMessage{{
		Role:    models.RoleUser,
		Content: fmt.Sprintf(instruction, draft),
	}}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan any)
	if err := p.Generate(ctx, request, opts, events); err != nil {
		return draft, err
	}

	out := make(chan models.StreamChunk)
	translator := stream.New()
	errCh := make(chan error, 1)
	go func() {
		errCh <- translator.Run(ctx, events, out)
	}()

	var b strings.Builder
	for chunk := range out {
		if chunk.Content == "" {
			continue
		}
		b.WriteString(chunk.Content)
		if onUpdate != nil {
			onUpdate(b.String())
		}
	}

	if err := <-errCh; err != nil {
		return draft, err
	}

	enhanced := strings.TrimSpace(b.String())
	if enhanced == "" {
		return draft, errors.New("enhancement produced no output")
	}
	return enhanced, nil
}

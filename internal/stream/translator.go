// Package stream normalizes heterogeneous provider delta streams into the
// canonical chunk sequence every consumer sees: one role-marker chunk, zero
// or more content chunks, one terminal done chunk. Closing the output
// channel is the end-of-stream sentinel.
package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatforge/internal/models"
)

type state int

const (
	stateStart state = iota
	stateStreaming
	stateDone
	stateErrored
)

// Translator drives one stream translation. Not reusable across requests.
type Translator struct {
	state state
}

func New() *Translator {
	return &Translator{}
}

// Run consumes provider events (models.TextDelta, models.Finish, raw string
// deltas, or error) and emits canonical chunks on out until the provider
// finishes or fails. out is closed on return. Empty deltas are dropped.
// Nothing is emitted after the terminal done chunk.
//
// The caller owns ctx and must cancel it once Run returns so a still-piping
// adapter goroutine can unblock and abort its network stream.
func (t *Translator) Run(ctx context.Context, events <-chan any, out chan<- models.StreamChunk) error {
	defer close(out)

	// Establish the assistant turn before any content flows.
	if !t.send(ctx, out, models.StreamChunk{ID: chunkID(), Role: models.RoleAssistant}) {
		t.state = stateErrored
		return ctx.Err()
	}
	t.state = stateStreaming

	for {
		select {
		case <-ctx.Done():
			t.state = stateErrored
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				// Provider closed without a finish signal; terminate the
				// turn so consumers are not left hanging.
				t.send(ctx, out, models.StreamChunk{ID: chunkID(), Done: true})
				t.state = stateDone
				return nil
			}

			switch v := ev.(type) {
			case models.TextDelta:
				if v.Text == "" {
					continue
				}
				if !t.send(ctx, out, models.StreamChunk{ID: chunkID(), Content: v.Text}) {
					t.state = stateErrored
					return ctx.Err()
				}
			case string:
				if v == "" {
					continue
				}
				if !t.send(ctx, out, models.StreamChunk{ID: chunkID(), Content: v}) {
					t.state = stateErrored
					return ctx.Err()
				}
			case models.Finish:
				t.send(ctx, out, models.StreamChunk{ID: chunkID(), Done: true})
				t.state = stateDone
				return nil
			case error:
				t.state = stateErrored
				return v
			}
		}
	}
}

func (t *Translator) send(ctx context.Context, out chan<- models.StreamChunk, c models.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- c:
		return true
	}
}

// WireChunk maps a canonical chunk onto the OpenAI-compatible SSE payload.
func WireChunk(c models.StreamChunk, model string) models.CompletionChunk {
	chunk := models.CompletionChunk{
		ID:      c.ID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []models.ChunkChoice{{Index: 0}},
	}
	switch {
	case c.Done:
		reason := "stop"
		chunk.Choices[0].FinishReason = &reason
	case c.Role != "":
		chunk.Choices[0].Delta.Role = c.Role
	default:
		chunk.Choices[0].Delta.Content = c.Content
	}
	return chunk
}

func chunkID() string {
	return "chatcmpl-" + uuid.NewString()
}

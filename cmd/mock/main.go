// Command mock serves a fake OpenAI-compatible streaming endpoint for local
// development. Point a provider entry's base_url at it to exercise the full
// chat path without real credentials:
//
//	providers:
//	  openai:
//	    api_key: "mock"
//	    base_url: "http://127.0.0.1:8081/v1"
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatforge/internal/models"
	"chatforge/pkg/httputil"
	"chatforge/pkg/logger"
)

var script = []string{"Hello!", " I", " am", " a", " mock", " streaming", " assistant.", " How", " can", " I", " help?"}

func handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model  string `json:"model"`
		Stream bool   `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request JSON", http.StatusBadRequest)
		return
	}
	if !req.Stream {
		http.Error(w, "Only streaming requests are supported", http.StatusBadRequest)
		return
	}

	httputil.WriteSSEHeaders(w)

	send := func(chunk models.CompletionChunk) bool {
		select {
		case <-r.Context().Done():
			return false
		default:
		}
		return httputil.WriteSSEData(w, chunk) == nil
	}

	if !send(chunk(req.Model, "assistant", "", nil)) {
		return
	}
	for _, word := range script {
		time.Sleep(100 * time.Millisecond)
		if !send(chunk(req.Model, "", word, nil)) {
			return
		}
	}
	reason := "stop"
	send(chunk(req.Model, "", "", &reason))
	httputil.WriteSSEDone(w)
}

func chunk(model, role, content string, finish *string) models.CompletionChunk {
	return models.CompletionChunk{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []models.ChunkChoice{{
			Index: 0,
			Delta: models.ChunkDelta{
				Role:    role,
				Content: content,
			},
			FinishReason: finish,
		}},
	}
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleCompletions)

	addr := ":8081"
	fmt.Printf("[Mock] Serving mock provider on %s\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("Mock server stopped: %v", err)
	}
}

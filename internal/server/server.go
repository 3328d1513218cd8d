// Package server exposes the chat API over HTTP: streaming chat
// completions, prompt enhancement and conversation history CRUD.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chatforge/internal/catalog"
	"chatforge/internal/chat"
	"chatforge/internal/enhancer"
	"chatforge/internal/models"
	"chatforge/internal/persistence"
	"chatforge/internal/providers"
	"chatforge/internal/stream"
	"chatforge/pkg/httputil"
	"chatforge/pkg/logger"
)

// Resolver is the read-only interface the Server needs from the provider
// registry. Using an interface keeps the server package decoupled from
// adapter construction and simplifies unit testing.
type Resolver interface {
	Resolve(name string, cred models.CredentialValue) (providers.Provider, error)
}

// CredentialSource yields stored credentials for providers the request
// does not carry keys for.
type CredentialSource interface {
	Get(provider string) (models.CredentialValue, bool)
}

// HistoryStore is the persistence surface the chats endpoints use.
type HistoryStore interface {
	List(ctx context.Context) ([]persistence.Chat, error)
	GetChat(ctx context.Context, id string) (*persistence.Chat, error)
	Delete(ctx context.Context, id string) error
	Fork(ctx context.Context, chatID, messageID string) (string, error)
	Duplicate(ctx context.Context, chatID string) (string, error)
}

// Server encapsulates the HTTP handler and routing logic.
type Server struct {
	registry     Resolver
	creds        CredentialSource
	store        HistoryStore
	enhancer     *enhancer.Enhancer
	systemPrompt string
}

// NewServer initialises the HTTP front end. store may be nil, which
// disables the history endpoints.
func NewServer(registry Resolver, creds CredentialSource, store HistoryStore, systemPrompt string) *Server {
	return &Server{
		registry:     registry,
		creds:        creds,
		store:        store,
		enhancer:     enhancer.New(registry),
		systemPrompt: systemPrompt,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/enhancer", s.handleEnhancer)
	mux.HandleFunc("GET /api/chats", s.handleListChats)
	mux.HandleFunc("GET /api/chats/{id}", s.handleGetChat)
	mux.HandleFunc("DELETE /api/chats/{id}", s.handleDeleteChat)
	mux.HandleFunc("POST /api/chats/{id}/fork", s.handleForkChat)
	mux.HandleFunc("POST /api/chats/{id}/duplicate", s.handleDuplicateChat)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Start starts the standard library net/http server.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	logger.Printf("[Server] Listening on %s", addr)
	return server.ListenAndServe()
}

type chatRequest struct {
	Messages []models.Message                  `json:"messages"`
	APIKeys  map[string]models.CredentialValue `json:"apiKeys"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, "Invalid request JSON", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		errorJSON(w, "No messages provided", http.StatusBadRequest)
		return
	}

	// Routing rides on bracket tags in the final message's text. Both tags
	// are required; partial tagging is a malformed request.
	last := req.Messages[len(req.Messages)-1]
	if routing, _ := chat.ExtractRouting(last.Content.TextContent()); !routing.HasModel || !routing.HasProvider {
		errorJSON(w, "Missing model/provider routing tags", http.StatusBadRequest)
		return
	}

	model, provider := chat.ResolveRouting(req.Messages)
	if _, ok := catalog.LookupProvider(provider); !ok {
		errorJSON(w, "Unknown provider: "+provider, http.StatusBadRequest)
		return
	}

	cred, ok := s.credential(provider, req.APIKeys)
	if !ok {
		errorJSON(w, "Missing API key for "+provider, http.StatusBadRequest)
		return
	}

	normalized, err := chat.ToProviderMessages(req.Messages, s.systemPrompt)
	if err != nil {
		errorJSON(w, "No user message content", http.StatusBadRequest)
		return
	}

	p, err := s.registry.Resolve(provider, cred)
	if err != nil {
		errorJSON(w, err.Error(), providerErrorStatus(err))
		return
	}

	opts := models.GenerateOptions{
		Provider:    provider,
		Model:       model,
		Temperature: 0.7,
		MaxTokens:   catalog.MaxTokens(model),
	}

	// Check streamability before opening the upstream request.
	if _, ok := w.(http.Flusher); !ok {
		errorJSON(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan any)
	if err := p.Generate(ctx, normalized, opts, events); err != nil {
		logger.Printf("[Server] Upstream error (%s): %v", provider, err)
		errorJSON(w, err.Error(), providerErrorStatus(err))
		return
	}

	httputil.WriteSSEHeaders(w)

	out := make(chan models.StreamChunk)
	translator := stream.New()
	errCh := make(chan error, 1)
	go func() {
		errCh <- translator.Run(ctx, events, out)
	}()

	for chunk := range out {
		if err := httputil.WriteSSEData(w, stream.WireChunk(chunk, model)); err != nil {
			cancel()
			<-errCh
			return
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("[Server] Stream error (%s): %v", provider, err)
	}
	httputil.WriteSSEDone(w)
}

type enhancerRequest struct {
	Message  string `json:"message"`
	Model    string `json:"model"`
	Provider struct {
		Name string `json:"name"`
	} `json:"provider"`
	APIKeys map[string]models.CredentialValue `json:"apiKeys"`
}

func (s *Server) handleEnhancer(w http.ResponseWriter, r *http.Request) {
	var req enhancerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, "Invalid request JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		errorJSON(w, "Missing message", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		errorJSON(w, "Invalid or missing model", http.StatusBadRequest)
		return
	}
	if req.Provider.Name == "" {
		errorJSON(w, "Invalid or missing provider", http.StatusBadRequest)
		return
	}

	cred, ok := s.credential(req.Provider.Name, req.APIKeys)
	if !ok {
		errorJSON(w, "Missing API key for "+req.Provider.Name, http.StatusUnauthorized)
		return
	}

	opts := models.GenerateOptions{
		Provider:    req.Provider.Name,
		Model:       req.Model,
		Temperature: 0.7,
		MaxTokens:   catalog.MaxTokens(req.Model),
	}

	// Stream deltas as they arrive; the callback hands over accumulated
	// text, so only the new suffix is written.
	wrote := 0
	_, err := s.enhancer.Enhance(r.Context(), req.Message, opts, cred, func(accumulated string) {
		if wrote == 0 {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
		}
		w.Write([]byte(accumulated[wrote:]))
		wrote = len(accumulated)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	})
	if err != nil && wrote == 0 {
		logger.Printf("[Server] Enhancer error (%s): %v", req.Provider.Name, err)
		errorJSON(w, err.Error(), providerErrorStatus(err))
	}
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}
	chats, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []persistence.Chat{}
	}
	writeJSON(w, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}
	c, err := s.store.GetChat(r.Context(), r.PathValue("id"))
	if errors.Is(err, persistence.ErrChatNotFound) {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load chat", http.StatusInternalServerError)
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}
	err := s.store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, persistence.ErrChatNotFound) {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to delete chat", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forkRequest struct {
	MessageID string `json:"messageId"`
}

func (s *Server) handleForkChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}
	var req forkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == "" {
		http.Error(w, "Missing messageId", http.StatusBadRequest)
		return
	}

	urlID, err := s.store.Fork(r.Context(), r.PathValue("id"), req.MessageID)
	switch {
	case errors.Is(err, persistence.ErrChatNotFound):
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	case errors.Is(err, persistence.ErrMessageNotFound):
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Failed to fork chat", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"urlId": urlID})
}

func (s *Server) handleDuplicateChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}
	urlID, err := s.store.Duplicate(r.Context(), r.PathValue("id"))
	if errors.Is(err, persistence.ErrChatNotFound) {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to duplicate chat", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"urlId": urlID})
}

// credential prefers keys carried on the request over the stored ones.
func (s *Server) credential(provider string, requestKeys map[string]models.CredentialValue) (models.CredentialValue, bool) {
	for name, cred := range requestKeys {
		if strings.EqualFold(name, provider) && !cred.Empty() {
			return cred, true
		}
	}
	if s.creds != nil {
		if cred, ok := s.creds.Get(provider); ok && !cred.Empty() {
			return cred, true
		}
	}
	return models.CredentialValue{}, false
}

func providerErrorStatus(err error) int {
	var authErr *models.AuthenticationError
	var unsupported *models.UnsupportedProviderError
	var configErr *models.ConfigurationError
	var transport *models.TransportError
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &unsupported), errors.As(err, &configErr):
		return http.StatusBadRequest
	case errors.As(err, &transport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Package orchestrator implements the client-side chat controller: it owns
// the conversation state, the active model/provider selection and the
// in-flight request, and drives send/receive/abort against the provider
// registry. Errors never escape a send; they surface as notifications and
// the loading flag is always cleared.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatforge/internal/catalog"
	"chatforge/internal/chat"
	"chatforge/internal/models"
	"chatforge/internal/providers"
	"chatforge/internal/stream"
	"chatforge/pkg/logger"
)

// Notifier receives user-visible notifications. The zero implementation
// logs them.
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

type logNotifier struct{}

func (logNotifier) Warn(msg string)  { logger.Warn(msg) }
func (logNotifier) Error(msg string) { logger.Error(msg) }

// CredentialSource yields the credential for a provider, if configured.
type CredentialSource interface {
	Get(provider string) (models.CredentialValue, bool)
}

// Resolver maps a provider id and credential to a live adapter.
// *providers.Registry satisfies it.
type Resolver interface {
	Resolve(name string, cred models.CredentialValue) (providers.Provider, error)
}

// HistoryStore is the external persistence collaborator.
type HistoryStore interface {
	SetMessages(ctx context.Context, chatID string, messages []models.Message, description string) error
	Fork(ctx context.Context, chatID, messageID string) (string, error)
}

// Chat is one conversation and its controller.
type Chat struct {
	mu sync.Mutex
	wg sync.WaitGroup

	id          string
	description string
	messages    []models.Message

	input       string
	attachments []string

	model    string
	provider string

	systemPrompt string

	isLoading bool
	aborted   bool
	cancel    context.CancelFunc

	lastPersisted int

	registry Resolver
	creds    CredentialSource
	store    HistoryStore
	notifier Notifier
}

// Options configures a new Chat.
type Options struct {
	ID           string
	Description  string
	Initial      []models.Message
	SystemPrompt string
	Store        HistoryStore
	Notifier     Notifier
}

// New hydrates a conversation. Initial messages come from persisted history
// on load; an empty slice starts a fresh conversation.
func New(registry Resolver, creds CredentialSource, opts Options) *Chat {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = logNotifier{}
	}
	model, provider := catalog.DefaultModel, catalog.DefaultProvider
	if len(opts.Initial) > 0 {
		model, provider = chat.ResolveRouting(opts.Initial)
	}
	return &Chat{
		id:            id,
		description:   opts.Description,
		messages:      append([]models.Message(nil), opts.Initial...),
		model:         model,
		provider:      provider,
		systemPrompt:  opts.SystemPrompt,
		lastPersisted: len(opts.Initial),
		registry:      registry,
		creds:         creds,
		store:         opts.Store,
		notifier:      notifier,
	}
}

func (c *Chat) ID() string { return c.id }

// Messages returns a copy of the conversation.
func (c *Chat) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages...)
}

func (c *Chat) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLoading
}

func (c *Chat) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Input returns the draft input buffer.
func (c *Chat) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput replaces the draft input buffer. The enhancer uses this for its
// progressive replace.
func (c *Chat) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// AddAttachment queues an image data URI for the next send.
func (c *Chat) AddAttachment(dataURI string) {
	c.mu.Lock()
	c.attachments = append(c.attachments, dataURI)
	c.mu.Unlock()
}

// Model and Provider report the active selection.
func (c *Chat) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *Chat) Provider() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func (c *Chat) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

func (c *Chat) SetProvider(provider string) {
	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()
}

// Send validates and submits the given input (or the draft buffer when
// empty). Rejected sends are no-ops with a warning notification: empty
// input, a send already in flight, or no credential for the active
// provider. Accepted sends append a tagged user message, clear the input
// and attachment buffers, and open the streaming request asynchronously.
func (c *Chat) Send(input string) {
	c.mu.Lock()

	if input == "" {
		input = c.input
	}
	if strings.TrimSpace(input) == "" {
		c.mu.Unlock()
		return
	}
	if c.isLoading {
		c.mu.Unlock()
		c.notifier.Warn("A response is still streaming; wait or abort it first.")
		return
	}

	cred, ok := c.creds.Get(c.provider)
	if !ok || cred.Empty() {
		provider := c.provider
		c.mu.Unlock()
		c.notifier.Warn(fmt.Sprintf("Please set up your %s API key in settings first.", provider))
		return
	}

	tagged := chat.TagMessage(c.model, c.provider, input)
	msg := models.Message{ID: uuid.NewString(), Role: models.RoleUser}
	if len(c.attachments) > 0 {
		parts := []models.ContentPart{{Type: models.PartText, Text: tagged}}
		for _, img := range c.attachments {
			parts = append(parts, models.ContentPart{Type: models.PartImage, Image: img})
		}
		msg.Content = models.PartsContent(parts...)
	} else {
		msg.Content = models.TextContent(tagged)
	}

	c.messages = append(c.messages, msg)
	c.input = ""
	c.attachments = nil
	c.aborted = false
	c.isLoading = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	snapshot := append([]models.Message(nil), c.messages...)
	model, provider := c.model, c.provider
	c.mu.Unlock()

	c.persist()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, snapshot, model, provider, cred)
	}()
}

// Abort cancels the in-flight request, if any. Partially streamed content
// is retained. Calling Abort with no active stream is a no-op.
func (c *Chat) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isLoading || c.cancel == nil {
		return
	}
	c.aborted = true
	c.cancel()
}

// Wait blocks until any in-flight stream has finished.
func (c *Chat) Wait() {
	c.wg.Wait()
}

// Fork asks the persistence collaborator for a new conversation containing
// the prefix up to and including messageID, returning its url id for
// navigation.
func (c *Chat) Fork(ctx context.Context, messageID string) (string, error) {
	if c.store == nil {
		return "", errors.New("no history store configured")
	}
	return c.store.Fork(ctx, c.id, messageID)
}

// Rewind truncates the in-memory conversation to just before messageID.
// Persisted history is left untouched until the next growth snapshot.
func (c *Chat) Rewind(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.ID == messageID {
			c.messages = c.messages[:i]
			if c.lastPersisted > len(c.messages) {
				c.lastPersisted = len(c.messages)
			}
			return
		}
	}
}

// Clear destroys the conversation state.
func (c *Chat) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.lastPersisted = 0
	c.aborted = false
}

func (c *Chat) run(ctx context.Context, snapshot []models.Message, model, provider string, cred models.CredentialValue) {
	defer c.finish()

	normalized, err := chat.ToProviderMessages(snapshot, c.systemPrompt)
	if err != nil {
		if !errors.Is(err, models.ErrEmptyConversation) {
			c.notifier.Error("Failed to prepare request: " + err.Error())
		}
		return
	}

	opts := models.GenerateOptions{
		Provider:    provider,
		Model:       model,
		Temperature: 0.7,
		MaxTokens:   catalog.MaxTokens(model),
	}

	p, err := c.registry.Resolve(provider, cred)
	if err != nil {
		c.notifier.Error("Provider unavailable: " + err.Error())
		return
	}

	events := make(chan any)
	if err := p.Generate(ctx, normalized, opts, events); err != nil {
		var authErr *models.AuthenticationError
		if errors.As(err, &authErr) {
			c.notifier.Error(fmt.Sprintf("%s rejected your API key. Please re-enter it in settings.", provider))
		} else {
			c.notifier.Error("There was an error processing your request: " + err.Error())
		}
		return
	}

	out := make(chan models.StreamChunk)
	translator := stream.New()
	errCh := make(chan error, 1)
	go func() {
		errCh <- translator.Run(ctx, events, out)
	}()

	for chunk := range out {
		c.apply(chunk)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		c.notifier.Error("There was an error processing your request: " + err.Error())
	}

	// Content deltas mutate the last message without growing the count, so
	// the end-of-stream snapshot must not be gated on growth.
	c.save(true)
}

// apply folds one canonical chunk into the conversation.
func (c *Chat) apply(chunk models.StreamChunk) {
	c.mu.Lock()

	switch {
	case chunk.Role != "":
		c.messages = append(c.messages, models.Message{
			ID:      uuid.NewString(),
			Role:    chunk.Role,
			Content: models.TextContent(""),
		})
		c.mu.Unlock()
		c.persist()
		return
	case chunk.Content != "":
		if n := len(c.messages); n > 0 && c.messages[n-1].Role == models.RoleAssistant {
			last := &c.messages[n-1]
			last.Content = models.TextContent(last.Content.Text + chunk.Content)
		}
	}
	c.mu.Unlock()
}

func (c *Chat) finish() {
	c.mu.Lock()
	c.isLoading = false
	c.cancel = nil
	c.mu.Unlock()
}

// persist hands the full message list to the history store whenever the
// message count has grown since the last snapshot. Fire and forget:
// failures are notifications, never fatal.
func (c *Chat) persist() {
	c.save(false)
}

// save writes the snapshot. force bypasses the growth check so streamed
// assistant content reaches the store once the turn completes.
func (c *Chat) save(force bool) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	if len(c.messages) == 0 || (!force && len(c.messages) <= c.lastPersisted) {
		c.mu.Unlock()
		return
	}
	c.lastPersisted = len(c.messages)
	snapshot := append([]models.Message(nil), c.messages...)
	id, description := c.id, c.description
	c.mu.Unlock()

	if err := c.store.SetMessages(context.Background(), id, snapshot, description); err != nil {
		c.notifier.Error("Failed to save chat history: " + err.Error())
	}
}

package models

// TextDelta is an incremental piece of assistant text from a provider stream.
type TextDelta struct {
	Text string
}

// Finish signals the end of a provider stream.
type Finish struct {
	Reason string
}

// StreamChunk is the canonical unit emitted by the stream translator.
// Exactly one of Role/Content/Done is meaningful per chunk: the turn-opening
// chunk carries Role only, content chunks carry Content, and the terminal
// chunk carries Done=true with empty content.
type StreamChunk struct {
	ID      string
	Role    string
	Content string
	Done    bool
}

// CompletionChunk is the OpenAI-compatible SSE payload every stream is
// normalized to on the wire.
type CompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

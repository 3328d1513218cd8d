// Package tools implements the tool registry used by tool-calling chat
// flows. Tool names are unique within a registry.
package tools

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Tool is a named capability the assistant can invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Execute     func(args map[string]any) (any, error)
}

// ToolCall is the wire shape of a requested invocation. Arguments is a
// JSON-encoded object.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Description is the provider-facing summary of a registered tool.
type Description struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// DuplicateToolError signals a Register call reusing an existing name.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %s is already registered", e.Name)
}

// ToolNotFoundError signals an Execute call naming an unknown tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %s not found", e.Name)
}

// ExecutionError wraps a failure inside a tool's Execute. The conversation
// is unaffected; the error surfaces to the caller.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s execution failed: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Registry holds the registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool; duplicate names are an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return &DuplicateToolError{Name: t.Name}
	}
	r.tools[t.Name] = t
	return nil
}

// Execute runs the named tool with the call's JSON-encoded arguments.
func (r *Registry) Execute(call ToolCall) (any, error) {
	r.mu.RLock()
	tool, ok := r.tools[call.Function.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ToolNotFoundError{Name: call.Function.Name}
	}

	args := make(map[string]any)
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, &ExecutionError{Name: tool.Name, Err: fmt.Errorf("invalid arguments format: %w", err)}
		}
	}

	result, err := tool.Execute(args)
	if err != nil {
		return nil, &ExecutionError{Name: tool.Name, Err: err}
	}
	return result, nil
}

// Descriptions lists all registered tools in the provider-facing shape.
func (r *Registry) Descriptions() []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Description, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Description{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}

// Clear removes all registered tools.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]Tool)
}

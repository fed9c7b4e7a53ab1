// Package ai defines the LLM completion contract used by the agentic loop
// and the provider adapters that implement it.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the running conversation history.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages that request tool execution
	ToolCallID string     // tool result messages: the call being answered
}

// ToolCall is a model-requested invocation of a named tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolDef describes a callable tool exposed to the model. Parameters is a
// JSON Schema for the arguments object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is one round-trip to the model: the full running history,
// the system prompt, the visible tool set, and the model to use.
type CompletionRequest struct {
	Messages     []Message
	SystemPrompt string
	Tools        []ToolDef
	Model        string
}

// CompletionResponse carries the assistant's reply. A response with no tool
// calls is final; otherwise the caller executes each call and asks again.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider is a single LLM backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Resolver yields the active provider at execution time. A nil result means
// no provider is configured.
type Resolver interface {
	Active() Provider
}

// StaticResolver always returns the same provider (which may be nil).
type StaticResolver struct {
	Provider Provider
}

func (r StaticResolver) Active() Provider { return r.Provider }

// New constructs a provider by name. The API key must already be resolved
// from config or environment by the caller.
func New(name, apiKey, defaultModel string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic":
		return NewAnthropicProvider(apiKey, defaultModel), nil
	case "openai":
		return NewOpenAIProvider(apiKey, defaultModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

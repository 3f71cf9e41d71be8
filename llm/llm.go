// Package llm abstracts the chat-completion providers behind a single client
// that either answers in text or asks for tool invocations.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coursemat/course-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn. Assistant turns may carry tool-invocation
// requests; tool turns carry the result for the matching ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Tool describes one callable capability offered to the model. Parameters is
// a JSON-schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a structured instruction from the model naming a tool and its
// arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Completion is the outcome of one model call: terminal text, or one or more
// tool-invocation requests.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

type Client interface {
	Generate(ctx context.Context, messages []Message, tools []Tool) (Completion, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaToolCall struct {
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}

	return &ollamaClient{
		host:  host,
		model: opts.Model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message, tools []Tool) (Completion, error) {
	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
	}

	for _, tool := range tools {
		payload.Tools = append(payload.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("call ollama chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Completion{}, fmt.Errorf("read ollama chat error body: %w", readErr)
		}
		if len(data) > 0 {
			return Completion{}, fmt.Errorf("ollama chat API error: %s", string(data))
		}
		return Completion{}, fmt.Errorf("ollama chat API returned status %s", resp.Status)
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("decode ollama response: %w", err)
	}

	if parsed.Error != "" {
		return Completion{}, fmt.Errorf("ollama chat error: %s", parsed.Error)
	}

	completion := Completion{Text: parsed.Message.Content}
	for i, call := range parsed.Message.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			// Ollama does not assign call ids; synthesize stable ones so the
			// tool-result turns can reference them.
			ID:        fmt.Sprintf("call_%d", i),
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	return completion, nil
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	if len(messages) == 0 {
		return nil
	}
	converted := make([]ollamaChatMessage, len(messages))
	for i, msg := range messages {
		out := ollamaChatMessage{Role: msg.Role, Content: msg.Content}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ollamaToolCall{
				Function: ollamaToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		converted[i] = out
	}
	return converted
}

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/coursemat/course-agent/llm"
)

// ErrGeneration reports that an LLM call failed or returned an unusable
// response. It is distinct from tool-execution failures, which are fed back
// to the model as error text instead of aborting the query.
var ErrGeneration = errors.New("llm generation failed")

const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to search and outline tools over the loaded courses.

Tool usage:
- Use search_course_content for questions about specific course content or lesson details.
- Use get_course_outline for questions about course structure, lesson lists or course metadata.
- One tool use per query. Synthesize the tool result into an accurate, fact-based answer.
- If the tool yields no results, state that clearly without offering alternatives.

Responses:
- General-knowledge questions: answer directly from existing knowledge without tools.
- Course-specific questions: use the matching tool first, then answer.
- No meta-commentary: no reasoning process, no mention of searching or tool results.
- Keep answers brief, clear and educational, with examples when they aid understanding.`

// ToolExecutor supplies the tool-definition list for the initial call and
// dispatches the model's invocation requests.
type ToolExecutor interface {
	Definitions() []llm.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Generator drives the two-phase conversation: an initial call with tool
// definitions, then, when the model requests tools, one round of execution
// followed by a final call without tools.
type Generator struct {
	client llm.Client
	logger *log.Logger
}

func NewGenerator(client llm.Client, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{client: client, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, query string, history []llm.Message, executor ToolExecutor) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	var definitions []llm.Tool
	if executor != nil {
		definitions = executor.Definitions()
	}

	completion, err := g.client.Generate(ctx, messages, definitions)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if len(completion.ToolCalls) == 0 || executor == nil {
		return strings.TrimSpace(completion.Text), nil
	}

	messages = append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   completion.Text,
		ToolCalls: completion.ToolCalls,
	})

	for _, call := range completion.ToolCalls {
		result, execErr := executor.Execute(ctx, call.Name, call.Arguments)
		if execErr != nil {
			// Captured as error text so the model can explain the failure
			// instead of the query aborting.
			g.logger.Printf("tool %s failed: %v", call.Name, execErr)
			result = fmt.Sprintf("Tool execution error: %v", execErr)
		}
		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}

	// No tool definitions on the final call: the model must answer in text.
	final, err := g.client.Generate(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(final.ToolCalls) > 0 {
		return "", fmt.Errorf("%w: model requested a second tool round", ErrGeneration)
	}

	return strings.TrimSpace(final.Text), nil
}

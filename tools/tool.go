// Package tools exposes retrieval capabilities to the model as named,
// schema-described tools and dispatches its invocation requests.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coursemat/course-agent/llm"
)

// Tool is one callable capability: a schema for the model's tool-definition
// list plus an executor for its invocation requests.
type Tool interface {
	Definition() llm.Tool
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Source identifies course material used to answer the last query, for UI
// attribution.
type Source struct {
	Label string
	Link  string
}

// SourceTracker is implemented by tools that record which sources backed
// their last execution.
type SourceTracker interface {
	LastSources() []Source
	ResetSources()
}

// Manager is the name-to-tool registry and the source-tracking aggregator.
type Manager struct {
	tools map[string]Tool
	order []string
}

func NewManager(tools ...Tool) *Manager {
	m := &Manager{tools: make(map[string]Tool)}
	for _, tool := range tools {
		m.Register(tool)
	}
	return m
}

func (m *Manager) Register(tool Tool) {
	name := tool.Definition().Name
	if _, exists := m.tools[name]; !exists {
		m.order = append(m.order, name)
	}
	m.tools[name] = tool
}

// Definitions returns every registered tool schema in registration order.
func (m *Manager) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Execute dispatches an invocation to the matching tool by name.
func (m *Manager) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := m.tools[name]
	if !ok {
		return "", fmt.Errorf("tool %q not registered", name)
	}
	return tool.Execute(ctx, args)
}

// LastSources aggregates the sources recorded by all tools since the last
// reset, in registration order.
func (m *Manager) LastSources() []Source {
	var sources []Source
	for _, name := range m.order {
		if tracker, ok := m.tools[name].(SourceTracker); ok {
			sources = append(sources, tracker.LastSources()...)
		}
	}
	return sources
}

// ResetSources clears the per-query source records so each query starts
// clean.
func (m *Manager) ResetSources() {
	for _, name := range m.order {
		if tracker, ok := m.tools[name].(SourceTracker); ok {
			tracker.ResetSources()
		}
	}
}

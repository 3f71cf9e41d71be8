package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/coursemat/course-agent/llm"
)

// SessionManager keeps a bounded sliding window of prior exchanges per
// session. Safe for concurrent use; concurrent appends to the same session
// are last-write-wins.
type SessionManager struct {
	mu sync.Mutex
	// maxHistory counts user/assistant exchange pairs, not messages.
	maxHistory int
	sessions   map[string][]llm.Message
}

func NewSessionManager(maxHistory int) *SessionManager {
	return &SessionManager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]llm.Message),
	}
}

// Create registers a new session and returns its identifier.
func (m *SessionManager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// History returns a copy of the session's recorded exchanges, oldest first.
// Unknown sessions yield nil.
func (m *SessionManager) History(id string) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := m.sessions[id]
	if len(messages) == 0 {
		return nil
	}
	out := make([]llm.Message, len(messages))
	copy(out, messages)
	return out
}

// AddExchange appends one question/answer pair, evicting the oldest pair once
// the window is full.
func (m *SessionManager) AddExchange(id, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := append(m.sessions[id],
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
	if limit := m.maxHistory * 2; limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	m.sessions[id] = messages
}

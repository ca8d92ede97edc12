package history

import (
	"sync"

	"threadchat/internal/llm"
)

// Manager keeps an in-memory working copy of each thread's message
// history so a chat turn does not have to re-read the store. The store
// remains the durable owner; entries here are seeded from it and dropped
// whenever a thread goes away.
type Manager struct {
	mu      sync.RWMutex
	threads map[string][]llm.Message
}

func NewManager() *Manager {
	return &Manager{threads: make(map[string][]llm.Message)}
}

// Has reports whether a working copy exists for the thread.
func (m *Manager) Has(threadID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.threads[threadID]
	return ok
}

// Seed replaces the working copy for a thread with the given messages.
func (m *Manager) Seed(threadID string, msgs []llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]llm.Message, len(msgs))
	copy(cp, msgs)
	m.threads[threadID] = cp
}

func (m *Manager) Reset(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
}

func (m *Manager) AppendUser(threadID, content string) {
	m.append(threadID, llm.Message{Role: llm.RoleUser, Content: content})
}

func (m *Manager) AppendAssistant(threadID, content string) {
	m.append(threadID, llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (m *Manager) append(threadID string, msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = append(m.threads[threadID], msg)
}

// Get returns a copy of the thread's working history.
func (m *Manager) Get(threadID string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.threads[threadID]
	out := make([]llm.Message, len(es))
	copy(out, es)
	return out
}

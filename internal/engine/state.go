package engine

import (
	"sync"

	"github.com/shaiso/Kommutator/internal/domain"
)

// callState — живая сессия с per-call мьютексом.
//
// Все продвижения одной сессии сериализуются через mu: события из
// consumer, callbacks планировщика и janitor никогда не мутируют
// сессию конкурентно. Разные звонки обрабатываются параллельно.
type callState struct {
	mu   sync.Mutex
	sess *domain.CallSession
}

// sessionMap — потокобезопасная таблица живых сессий.
type sessionMap struct {
	mu       sync.RWMutex
	sessions map[string]*callState
}

func newSessionMap() *sessionMap {
	return &sessionMap{sessions: make(map[string]*callState)}
}

// Get возвращает состояние звонка.
func (m *sessionMap) Get(callID string) (*callState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[callID]
	return st, ok
}

// Add регистрирует новую сессию.
// Возвращает ErrSessionExists, если звонок уже живой.
func (m *sessionMap) Add(sess *domain.CallSession) (*callState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sess.ID]; exists {
		return nil, ErrSessionExists
	}
	st := &callState{sess: sess}
	m.sessions[sess.ID] = st
	return st, nil
}

// Remove удаляет сессию.
func (m *sessionMap) Remove(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, callID)
}

// Len возвращает число живых сессий.
func (m *sessionMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot возвращает срез состояний для обхода без удержания
// блокировки таблицы.
func (m *sessionMap) Snapshot() []*callState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*callState, 0, len(m.sessions))
	for _, st := range m.sessions {
		out = append(out, st)
	}
	return out
}

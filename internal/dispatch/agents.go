package dispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

// AgentRegistry — реестр операторов.
//
// Конфигурационная часть (лимиты, навыки, вес) загружается из
// хранилища; живая часть (статус, загрузка) мутируется событиями
// agents.status и назначениями планировщика. Все операции атомарны
// под общим мьютексом — инвариант active_calls <= max_concurrent
// не нарушается конкурентными назначениями.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
}

// NewAgentRegistry создаёт пустой реестр.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]*domain.Agent)}
}

// Load загружает (или перезагружает) конфигурацию операторов.
//
// Живое состояние уже известных операторов сохраняется: меняются
// только лимиты, навыки и вес. Новые операторы регистрируются в
// OFFLINE. Операторы, отсутствующие в списке, остаются — их
// активные звонки нельзя потерять.
func (r *AgentRegistry) Load(agents []domain.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range agents {
		a := a
		if a.MaxConcurrent <= 0 {
			a.MaxConcurrent = 1
		}
		if existing, ok := r.agents[a.ID]; ok {
			existing.Name = a.Name
			existing.MaxConcurrent = a.MaxConcurrent
			existing.Skills = a.Skills
			existing.Weight = a.Weight
			continue
		}
		a.Status = domain.AgentOffline
		a.ActiveCalls = 0
		r.agents[a.ID] = &a
	}
}

// Get возвращает снимок оператора.
func (r *AgentRegistry) Get(agentID string) (domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return domain.Agent{}, ErrUnknownAgent
	}
	return *a, nil
}

// List возвращает снимки всех операторов, отсортированные по ID.
func (r *AgentRegistry) List() []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetStatus применяет внешнюю смену статуса оператора и возвращает
// предыдущий и новый статус.
//
// Переход в ONLINE сбрасывает OnlineSince — время простоя считается
// заново. ON_CALL извне не выставляется: это производный статус,
// его назначает сам реестр при достижении лимита звонков.
func (r *AgentRegistry) SetStatus(agentID string, status domain.AgentStatus) (from, to domain.AgentStatus, err error) {
	if !status.IsValid() || status == domain.AgentOnCall {
		return "", "", ErrBadStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return "", "", ErrUnknownAgent
	}

	from = a.Status
	if status == domain.AgentOnline && from != domain.AgentOnline {
		a.OnlineSince = time.Now()
	}
	a.Status = status

	// Оператор с активными звонками, вернувшийся в ONLINE при
	// исчерпанном лимите, остаётся ON_CALL
	if status == domain.AgentOnline && a.ActiveCalls >= a.MaxConcurrent {
		a.Status = domain.AgentOnCall
	}

	return from, a.Status, nil
}

// Acquire атомарно выбирает лучшего подходящего оператора и
// резервирует на нём звонок.
//
// Подходит оператор в ONLINE с незаполненным лимитом и всеми
// требуемыми навыками. Выбор детерминирован:
//   - longest-idle-agent: наибольшее время простоя (минимальный
//     OnlineSince), тай-брейк — лексикографически меньший ID;
//   - иначе: максимальный вес, затем наибольшее время простоя,
//     затем лексикографически меньший ID.
//
// Резервирование инкрементирует ActiveCalls; достигнув лимита,
// оператор переходит в ON_CALL и выпадает из выбора.
func (r *AgentRegistry) Acquire(skills []string, strategy domain.QueueStrategy) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *domain.Agent
	for _, a := range r.agents {
		if !a.CanAccept() || !a.HasSkills(skills) {
			continue
		}
		if best == nil || better(a, best, strategy) {
			best = a
		}
	}
	if best == nil {
		return "", ErrNoEligibleAgent
	}

	best.ActiveCalls++
	if best.ActiveCalls >= best.MaxConcurrent {
		best.Status = domain.AgentOnCall
	}
	return best.ID, nil
}

// better возвращает true, если a предпочтительнее b при данной стратегии.
func better(a, b *domain.Agent, strategy domain.QueueStrategy) bool {
	if strategy != domain.StrategyLongestIdle {
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
	}
	if !a.OnlineSince.Equal(b.OnlineSince) {
		return a.OnlineSince.Before(b.OnlineSince)
	}
	return a.ID < b.ID
}

// Release снимает звонок с оператора (завершение или отказ).
//
// ON_CALL с освободившимся слотом возвращается в ONLINE со свежим
// OnlineSince — простой считается с момента освобождения.
func (r *AgentRegistry) Release(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return ErrUnknownAgent
	}

	if a.ActiveCalls > 0 {
		a.ActiveCalls--
	}
	if a.Status == domain.AgentOnCall && a.ActiveCalls < a.MaxConcurrent {
		a.Status = domain.AgentOnline
		a.OnlineSince = time.Now()
	}
	return nil
}

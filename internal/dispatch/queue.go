package dispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

// QueueRegistry — реестр именованных очередей ожидания.
//
// Конфигурация очередей фиксируется при создании; записи мутируются
// конкурентно (постановка из engine, снятие из планировщика), каждая
// очередь защищена собственным мьютексом.
type QueueRegistry struct {
	mu     sync.RWMutex
	queues map[string]*queueState
}

// queueState — одна очередь: конфигурация и упорядоченные записи.
type queueState struct {
	mu      sync.Mutex
	cfg     domain.QueueConfig
	entries []domain.QueueEntry
}

// NewQueueRegistry создаёт реестр из конфигураций очередей.
func NewQueueRegistry(configs []domain.QueueConfig) *QueueRegistry {
	queues := make(map[string]*queueState, len(configs))
	for _, cfg := range configs {
		if !cfg.Strategy.IsValid() {
			cfg.Strategy = domain.StrategyFIFO
		}
		queues[cfg.Name] = &queueState{cfg: cfg}
	}
	return &QueueRegistry{queues: queues}
}

// Config возвращает конфигурацию очереди.
func (r *QueueRegistry) Config(name string) (domain.QueueConfig, error) {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok {
		return domain.QueueConfig{}, ErrUnknownQueue
	}
	return q.cfg, nil
}

// Names возвращает имена очередей в лексикографическом порядке.
// Планировщик обходит очереди именно в этом порядке — проход
// детерминирован.
func (r *QueueRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enqueue ставит звонок в очередь и возвращает позицию (с 1)
// в порядке стратегии.
//
// Возвращает ErrQueueFull при достижении max_size — запись не
// добавляется, вызывающая сторона немедленно ведёт звонок по
// overflow-ребру.
func (r *QueueRegistry) Enqueue(name string, entry domain.QueueEntry) (int, error) {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].CallID == entry.CallID {
			return 0, ErrAlreadyQueued
		}
	}

	if q.cfg.MaxSize > 0 && len(q.entries) >= q.cfg.MaxSize {
		return 0, ErrQueueFull
	}

	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}

	pos := q.insert(entry)
	return pos, nil
}

// insert вставляет запись в позицию, диктуемую стратегией,
// и возвращает её позицию с 1. Вызывается под q.mu.
func (q *queueState) insert(entry domain.QueueEntry) int {
	if q.cfg.Strategy != domain.StrategyPriority {
		// fifo и longest-idle-agent упорядочивают по прибытию
		q.entries = append(q.entries, entry)
		return len(q.entries)
	}

	// priority: убывание приоритета, при равенстве — возрастание
	// времени постановки. Вставка перед первой записью со строго
	// меньшим приоритетом сохраняет стабильность.
	pos := len(q.entries)
	for i := range q.entries {
		if q.entries[i].Priority < entry.Priority {
			pos = i
			break
		}
	}
	q.entries = append(q.entries, domain.QueueEntry{})
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = entry
	return pos + 1
}

// Remove снимает звонок с очереди (отмена: абонент повесил трубку).
// Возвращает false, если звонка в очереди нет.
func (r *QueueRegistry) Remove(name, callID string) bool {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].CallID == callID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Depth возвращает текущую глубину очереди.
func (r *QueueRegistry) Depth(name string) (int, error) {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownQueue
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

// Entries возвращает копию записей очереди в порядке стратегии.
func (r *QueueRegistry) Entries(name string) ([]domain.QueueEntry, error) {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownQueue
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

// collect снимает с очереди просроченные записи и — при наличии
// подходящих операторов — записи для назначения. Вызывается только
// планировщиком; см. Scheduler.Pass.
func (q *queueState) collect(now time.Time, acquire func(entry domain.QueueEntry) (string, bool)) (assigned []assignment, expired []domain.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	maxWait := q.cfg.MaxWait()

	// Сначала просроченные: звонок, переживший max_wait, не должен
	// конкурировать за оператора в том же проходе
	if maxWait > 0 {
		kept := q.entries[:0]
		for _, e := range q.entries {
			if e.Age(now) >= maxWait {
				expired = append(expired, e)
				continue
			}
			kept = append(kept, e)
		}
		q.entries = kept
	}

	// Назначение строго с головы: если голове очереди оператор не
	// нашёлся, остальные записи в этом проходе не рассматриваются —
	// обгон нарушил бы порядок стратегии
	for len(q.entries) > 0 {
		head := q.entries[0]
		agentID, ok := acquire(head)
		if !ok {
			break
		}
		assigned = append(assigned, assignment{entry: head, agentID: agentID})
		q.entries = q.entries[1:]
	}

	return assigned, expired
}

// assignment — результат сопоставления звонка и оператора.
type assignment struct {
	entry   domain.QueueEntry
	agentID string
}

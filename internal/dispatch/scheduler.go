package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

// defaultTickInterval — период фонового прохода планировщика.
// Тики — страховка на случай пропущенного Kick; обычный путь
// событийный.
const defaultTickInterval = 1 * time.Second

// Scheduler сопоставляет ожидающие звонки с операторами.
//
// Проход (Pass) детерминирован: очереди обходятся в фиксированном
// лексикографическом порядке, из каждой сначала снимаются
// просроченные записи, затем назначается голова очереди, пока
// находятся подходящие операторы. Callbacks вызываются после
// освобождения блокировок очереди — обработчик overflow вправе
// повторно ставить звонок в другую очередь.
type Scheduler struct {
	queues *QueueRegistry
	agents *AgentRegistry

	assign AssignFunc
	expire ExpireFunc

	tickInterval time.Duration
	logger       *slog.Logger

	kickCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// AssignFunc вызывается при назначении звонка оператору.
// Слот оператора уже зарезервирован; при отказе обработчик обязан
// вызвать Release.
type AssignFunc func(queue string, entry domain.QueueEntry, agentID string)

// ExpireFunc вызывается при истечении max_wait звонка в очереди.
type ExpireFunc func(queue string, entry domain.QueueEntry)

// SchedulerConfig — конфигурация Scheduler.
type SchedulerConfig struct {
	// Queues — реестр очередей.
	Queues *QueueRegistry

	// Agents — реестр операторов.
	Agents *AgentRegistry

	// Assign — обработчик назначения.
	Assign AssignFunc

	// Expire — обработчик истечения времени ожидания.
	Expire ExpireFunc

	// TickInterval — период фонового прохода (default 1s).
	TickInterval time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// NewScheduler создаёт новый Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queues:       cfg.Queues,
		agents:       cfg.Agents,
		assign:       cfg.Assign,
		expire:       cfg.Expire,
		tickInterval: tick,
		logger:       logger,
		kickCh:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// Start запускает фоновый цикл планировщика.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("scheduler started", "tick_interval", s.tickInterval)
}

// Stop останавливает планировщик и ждёт завершения цикла.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Kick просит планировщик выполнить проход вне расписания
// (поставлен звонок, оператор вышел в ONLINE, освободился слот).
// Повторные Kick до начала прохода схлопываются в один.
func (s *Scheduler) Kick() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// run — фоновый цикл: проход по Kick и по таймеру.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.kickCh:
			s.Pass(ctx, time.Now())
		case <-ticker.C:
			s.Pass(ctx, time.Now())
		}
	}
}

// Pass выполняет один проход сопоставления.
//
// Результаты (назначения и истечения) собираются под блокировками
// очередей, callbacks вызываются после — в порядке обхода очередей.
func (s *Scheduler) Pass(ctx context.Context, now time.Time) {
	for _, name := range s.queues.Names() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.queues.mu.RLock()
		q := s.queues.queues[name]
		s.queues.mu.RUnlock()
		if q == nil {
			continue
		}

		strategy := q.cfg.Strategy
		assigned, expired := q.collect(now, func(entry domain.QueueEntry) (string, bool) {
			agentID, err := s.agents.Acquire(entry.Skills, strategy)
			if err != nil {
				return "", false
			}
			return agentID, true
		})

		for _, e := range expired {
			s.logger.Debug("queue wait expired",
				"queue", name,
				"call_id", e.CallID,
				"waited", e.Age(now),
			)
			if s.expire != nil {
				s.expire(name, e)
			}
		}
		for _, a := range assigned {
			s.logger.Debug("call assigned",
				"queue", name,
				"call_id", a.entry.CallID,
				"agent_id", a.agentID,
			)
			if s.assign != nil {
				s.assign(name, a.entry, a.agentID)
			}
		}
	}
}

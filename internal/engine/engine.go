package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kommutator/internal/dispatch"
	"github.com/shaiso/Kommutator/internal/domain"
	"github.com/shaiso/Kommutator/internal/flow"
	"github.com/shaiso/Kommutator/internal/mq"
	"github.com/shaiso/Kommutator/internal/repo"
	"github.com/shaiso/Kommutator/internal/telemetry"
)

// Default configuration values.
const (
	defaultIdleTimeout     = 30 * time.Minute
	defaultJanitorInterval = 30 * time.Second
	defaultAnnounceTick    = 5 * time.Second
)

// FlowStore — доступ к flows и версиям графов.
// Реализуется repo.FlowRepo.
type FlowStore interface {
	GetByNumber(ctx context.Context, number string) (*domain.Flow, error)
	GetVersion(ctx context.Context, flowID uuid.UUID, version int) (*domain.FlowVersion, error)
	GetPublishedVersion(ctx context.Context, flowID uuid.UUID) (*domain.FlowVersion, error)
}

// Publisher — публикация исходящих команд и событий жизненного цикла.
// Реализуется mq.Publisher.
type Publisher interface {
	PublishCommand(ctx context.Context, cmd *domain.Command) error
	PublishLifecycle(ctx context.Context, ev *domain.LifecycleEvent) error
}

// CallLog — журнал завершённых звонков (CDR).
// Реализуется repo.CallRepo; nil — журнал отключён.
type CallLog interface {
	Insert(ctx context.Context, rec *repo.CallRecord) error
}

// Engine обрабатывает звонки.
//
// Engine — центральный компонент системы, который:
//   - Получает события телефонии из очереди RabbitMQ
//   - Ведёт сессии звонков в памяти и продвигает их по графу
//   - Держит очереди ожидания и реестр операторов
//   - Назначает ожидающие звонки операторам (dispatch.Scheduler)
//   - Публикует команды транспорту и события жизненного цикла
type Engine struct {
	// Stores
	flowStore FlowStore
	callLog   CallLog

	// MQ
	publisher Publisher
	conn      *mq.Connection

	// Ядро
	interp *flow.Interpreter
	queues *dispatch.QueueRegistry
	agents *dispatch.AgentRegistry
	sched  *dispatch.Scheduler

	// Живые сессии
	sessions *sessionMap

	// Кэш графов (flowID@version → graph)
	graphMu sync.RWMutex
	graphs  map[string]*domain.FlowGraph

	// Consumers
	eventConsumer *mq.Consumer[domain.WebhookEvent]
	agentConsumer *mq.Consumer[domain.AgentStatusUpdate]

	// Configuration
	idleTimeout     time.Duration
	janitorInterval time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Engine.
type Config struct {
	// FlowStore — источник flows и графов.
	FlowStore FlowStore

	// CallLog — журнал завершённых звонков (опционально).
	CallLog CallLog

	// Publisher — публикация команд и событий.
	Publisher Publisher

	// Conn — соединение с RabbitMQ (nil — consumers не запускаются).
	Conn *mq.Connection

	// Queues — конфигурация очередей ожидания.
	Queues []domain.QueueConfig

	// Agents — конфигурация операторов.
	Agents []domain.Agent

	// IdleTimeout — eviction сессий без событий (default 30m).
	IdleTimeout time.Duration

	// SchedulerTick — период фонового прохода планировщика.
	SchedulerTick time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	e := &Engine{
		flowStore:       cfg.FlowStore,
		callLog:         cfg.CallLog,
		publisher:       cfg.Publisher,
		conn:            cfg.Conn,
		sessions:        newSessionMap(),
		graphs:          make(map[string]*domain.FlowGraph),
		idleTimeout:     idleTimeout,
		janitorInterval: defaultJanitorInterval,
		logger:          logger,
	}

	e.interp = flow.New(flow.Config{
		Flows:  e,
		Logger: logger,
	})

	e.queues = dispatch.NewQueueRegistry(cfg.Queues)
	e.agents = dispatch.NewAgentRegistry()
	e.agents.Load(cfg.Agents)

	e.sched = dispatch.NewScheduler(dispatch.SchedulerConfig{
		Queues:       e.queues,
		Agents:       e.agents,
		Assign:       e.onAssigned,
		Expire:       e.onExpired,
		TickInterval: cfg.SchedulerTick,
		Logger:       logger,
	})

	return e
}

// Start запускает Engine.
//
// Запускает:
//   - Consumer для telephony.events
//   - Consumer для agents.status
//   - Планировщик назначений
//   - Janitor для eviction брошенных сессий
//   - Цикл объявлений в очередях ожидания
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting engine",
		"queues", e.queues.Names(),
		"idle_timeout", e.idleTimeout,
	)

	if e.conn != nil {
		e.eventConsumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig[domain.WebhookEvent]{
			Queue:    string(mq.QueueTelephonyEvents),
			Accepts:  mq.MessageTypeTelephonyEvent,
			Handler:  e.HandleEvent,
			Prefetch: 50,
		})

		e.agentConsumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig[domain.AgentStatusUpdate]{
			Queue:    string(mq.QueueAgentsStatus),
			Accepts:  mq.MessageTypeAgentStatus,
			Handler:  e.HandleAgentStatus,
			Prefetch: 10,
		})

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.eventConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("telephony consumer error", "error", err)
			}
		}()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.agentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("agent status consumer error", "error", err)
			}
		}()
	}

	e.sched.Start(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.janitorLoop(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.announceLoop(ctx)
	}()

	e.logger.Info("engine started")
	return nil
}

// Stop останавливает Engine.
func (e *Engine) Stop() {
	e.logger.Info("stopping engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.eventConsumer != nil {
		e.eventConsumer.Stop()
	}
	if e.agentConsumer != nil {
		e.agentConsumer.Stop()
	}

	e.sched.Stop()
	e.wg.Wait()

	e.logger.Info("engine stopped",
		"active_calls", e.sessions.Len(),
	)
}

// ActiveCallsCount возвращает число живых сессий.
func (e *Engine) ActiveCallsCount() int {
	return e.sessions.Len()
}

// Agents возвращает реестр операторов (для API).
func (e *Engine) Agents() *dispatch.AgentRegistry {
	return e.agents
}

// Queues возвращает реестр очередей (для API).
func (e *Engine) Queues() *dispatch.QueueRegistry {
	return e.queues
}

// Resolve реализует flow.GraphResolver поверх FlowStore с кэшем.
//
// Конкретная версия графа иммутабельна и кэшируется навсегда;
// version=0 (опубликованная) разрешается через хранилище при
// каждом обращении — публикация новой версии подхватывается без
// инвалидации.
func (e *Engine) Resolve(ctx context.Context, flowID uuid.UUID, version int) (*domain.FlowGraph, error) {
	if version > 0 {
		key := graphKey(flowID, version)
		e.graphMu.RLock()
		g, ok := e.graphs[key]
		e.graphMu.RUnlock()
		if ok {
			return g, nil
		}
	}

	var (
		fv  *domain.FlowVersion
		err error
	)
	if version > 0 {
		fv, err = e.flowStore.GetVersion(ctx, flowID, version)
	} else {
		fv, err = e.flowStore.GetPublishedVersion(ctx, flowID)
	}
	if err != nil {
		return nil, fmt.Errorf("load flow version: %w", err)
	}

	key := graphKey(fv.FlowID, fv.Version)
	e.graphMu.Lock()
	e.graphs[key] = fv.Graph
	e.graphMu.Unlock()

	return fv.Graph, nil
}

// graphKey — ключ кэша графов.
func graphKey(flowID uuid.UUID, version int) string {
	return fmt.Sprintf("%s@%d", flowID, version)
}

// janitorLoop периодически вычищает брошенные сессии.
//
// Сессия без событий дольше idle_timeout принудительно завершается
// как ABANDONED: провайдер перестал присылать события, звонка
// фактически нет.
func (e *Engine) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(e.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evictStale(ctx)
		}
	}
}

// evictStale завершает сессии, превысившие idle_timeout.
func (e *Engine) evictStale(ctx context.Context) {
	now := time.Now()

	for _, st := range e.sessions.Snapshot() {
		st.mu.Lock()
		sess := st.sess
		stale := !sess.IsTerminated() && now.Sub(sess.LastEventAt) > e.idleTimeout
		if stale {
			e.logger.Warn("evicting stale session",
				"call_id", sess.ID,
				"last_event_at", sess.LastEventAt,
			)
			if sess.Status == domain.CallStatusQueued && sess.QueueName != "" {
				e.queues.Remove(sess.QueueName, sess.ID)
			}
			sess.MarkTerminated(domain.CallStatusAbandoned)
			e.publishCommand(ctx, domain.Hangup(sess.ID))
			e.finalize(ctx, sess)
		}
		st.mu.Unlock()
	}
}

// announceLoop периодически проигрывает объявления ожидающим в
// очередях с настроенным announce_audio_ref.
func (e *Engine) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultAnnounceTick)
	defer ticker.Stop()

	// Для каждого ожидающего звонка запоминается номер последнего
	// проигранного объявления; записи ушедших из очереди звонков
	// вычищаются на каждом проходе.
	last := make(map[string]int)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.announcePass(ctx, now, last)
		}
	}
}

// announcePass проигрывает объявления, чей интервал истёк
// с момента постановки звонка в очередь.
func (e *Engine) announcePass(ctx context.Context, now time.Time, last map[string]int) {
	seen := make(map[string]bool)

	for _, name := range e.queues.Names() {
		cfg, err := e.queues.Config(name)
		if err != nil || cfg.AnnounceAudioRef == "" || cfg.AnnounceIntervalSec <= 0 {
			continue
		}
		interval := time.Duration(cfg.AnnounceIntervalSec) * time.Second

		entries, err := e.queues.Entries(name)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			seen[entry.CallID] = true
			epoch := int(entry.Age(now) / interval)
			if epoch < 1 || epoch <= last[entry.CallID] {
				continue
			}
			last[entry.CallID] = epoch
			e.publishCommand(ctx, domain.PlayAudio(entry.CallID, cfg.AnnounceAudioRef))
		}
	}

	for callID := range last {
		if !seen[callID] {
			delete(last, callID)
		}
	}
}

// publishCommand публикует команду транспорту; ошибка публикации
// логируется и не прерывает обработку звонка.
func (e *Engine) publishCommand(ctx context.Context, cmd domain.Command) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishCommand(ctx, &cmd); err != nil {
		e.logger.Error("failed to publish command",
			"call_id", cmd.CallID,
			"type", cmd.Type,
			"error", err,
		)
	}
}

// publishLifecycle публикует событие жизненного цикла.
func (e *Engine) publishLifecycle(ctx context.Context, ev domain.LifecycleEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishLifecycle(ctx, &ev); err != nil {
		e.logger.Error("failed to publish lifecycle event",
			"call_id", ev.CallID,
			"type", ev.Type,
			"error", err,
		)
	}
}

// finalize закрывает терминальную сессию: событие call.completed,
// метрики, запись в CDR и удаление из памяти.
// Вызывается под st.mu.
func (e *Engine) finalize(ctx context.Context, sess *domain.CallSession) {
	if sess.AgentID != "" {
		if err := e.agents.Release(sess.AgentID); err == nil {
			e.sched.Kick()
		}
	}

	ev := domain.NewLifecycleEvent(domain.LifecycleCallCompleted)
	ev.CallID = sess.ID
	ev.Status = sess.Status
	ev.DurationMs = sess.Duration().Milliseconds()
	e.publishLifecycle(ctx, ev)

	telemetry.CallDuration.WithLabelValues(string(sess.Status)).Observe(sess.Duration().Seconds())

	if e.callLog != nil {
		finishedAt := time.Now()
		if sess.FinishedAt != nil {
			finishedAt = *sess.FinishedAt
		}
		rec := &repo.CallRecord{
			CallID:     sess.ID,
			Caller:     sess.Caller,
			Called:     sess.Called,
			FlowID:     sess.FlowID.String(),
			Status:     sess.Status,
			QueueName:  sess.QueueName,
			AgentID:    sess.AgentID,
			StartedAt:  sess.CreatedAt,
			FinishedAt: finishedAt,
		}
		if err := e.callLog.Insert(ctx, rec); err != nil {
			e.logger.Error("failed to insert call record",
				"call_id", sess.ID,
				"error", err,
			)
		}
	}

	e.sessions.Remove(sess.ID)
	telemetry.ActiveCalls.Set(float64(e.sessions.Len()))

	e.logger.Info("call finished",
		"call_id", sess.ID,
		"status", sess.Status,
		"duration", sess.Duration(),
	)
}

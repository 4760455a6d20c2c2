package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Kommutator/internal/dispatch"
	"github.com/shaiso/Kommutator/internal/domain"
	"github.com/shaiso/Kommutator/internal/flow"
	"github.com/shaiso/Kommutator/internal/repo"
	"github.com/shaiso/Kommutator/internal/telemetry"
)

// maxOverflowHops — предел цепочки enqueue → overflow → enqueue в
// рамках одного продвижения. Страховка от графа, гоняющего звонок
// по кругу переполненных очередей.
const maxOverflowHops = 8

// HandleEvent продвигает звонок по одному событию телефонии.
// Вызывается consumer и напрямую из API симуляции.
//
// Per-call проблемы (неизвестный звонок, дубликат события) не
// возвращаются как ошибки: сообщение подтверждается, инцидент
// логируется. Error оставлен для инфраструктурных сбоев, которые
// транспорт повторяет.
func (e *Engine) HandleEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	if !ev.Type.IsValid() {
		e.logger.Warn("unknown telephony event type",
			"call_id", ev.CallID,
			"type", ev.Type,
		)
		return nil
	}

	switch ev.Type {
	case domain.EventStarted:
		return e.startCall(ctx, ev)
	case domain.EventEnded:
		return e.endCall(ctx, ev)
	default:
		return e.advanceCall(ctx, ev)
	}
}

// startCall создаёт сессию и запускает flow.
//
// Набранный номер определяет flow; номер без активного flow
// отклоняется командой reject.
func (e *Engine) startCall(ctx context.Context, ev *domain.WebhookEvent) error {
	if st, exists := e.sessions.Get(ev.CallID); exists {
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.sess.Status == domain.CallStatusCreated {
			// Первая доставка упала на резолве графа — повтор
			// транспорта продвигает сессию из CREATED
			return e.advanceLocked(ctx, st, ev)
		}
		e.logger.Debug("duplicate started event", "call_id", ev.CallID)
		return nil
	}

	fl, err := e.flowForNumber(ctx, ev.Called)
	if err != nil {
		if errors.Is(err, ErrNoFlowForNumber) {
			e.logger.Warn("rejecting call",
				"call_id", ev.CallID,
				"called", ev.Called,
				"reason", err,
			)
			e.publishCommand(ctx, domain.Reject(ev.CallID))
			return nil
		}
		return err
	}

	now := time.Now()
	sess := &domain.CallSession{
		ID:          ev.CallID,
		Caller:      ev.Caller,
		Called:      ev.Called,
		FlowID:      fl.ID,
		Version:     fl.PublishedVersion,
		Status:      domain.CallStatusCreated,
		CreatedAt:   now,
		LastEventAt: now,
	}

	st, err := e.sessions.Add(sess)
	if err != nil {
		e.logger.Debug("concurrent session creation", "call_id", ev.CallID)
		return nil
	}
	telemetry.ActiveCalls.Set(float64(e.sessions.Len()))

	started := domain.NewLifecycleEvent(domain.LifecycleCallStarted)
	started.CallID = sess.ID
	e.publishLifecycle(ctx, started)

	e.logger.Info("call started",
		"call_id", sess.ID,
		"caller", sess.Caller,
		"called", sess.Called,
		"flow_id", sess.FlowID,
		"version", sess.Version,
	)

	st.mu.Lock()
	defer st.mu.Unlock()
	return e.advanceLocked(ctx, st, ev)
}

// flowForNumber возвращает активный flow набранного номера.
// Отсутствие flow транслируется в ErrNoFlowForNumber.
func (e *Engine) flowForNumber(ctx context.Context, number string) (*domain.Flow, error) {
	fl, err := e.flowStore.GetByNumber(ctx, number)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoFlowForNumber, number)
	}
	return fl, err
}

// session возвращает живую сессию звонка или ErrUnknownCall.
func (e *Engine) session(callID string) (*callState, error) {
	st, ok := e.sessions.Get(callID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCall, callID)
	}
	return st, nil
}

// advanceCall продвигает живую сессию по событию.
func (e *Engine) advanceCall(ctx context.Context, ev *domain.WebhookEvent) error {
	st, err := e.session(ev.CallID)
	if err != nil {
		e.logger.Debug("event discarded",
			"call_id", ev.CallID,
			"type", ev.Type,
			"reason", err,
		)
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return e.advanceLocked(ctx, st, ev)
}

// advanceLocked выполняет продвижение под st.mu.
func (e *Engine) advanceLocked(ctx context.Context, st *callState, ev *domain.WebhookEvent) error {
	st.sess.Touch()

	res, err := e.interp.Advance(ctx, st.sess, ev)
	if err != nil {
		if errors.Is(err, flow.ErrDuplicateEvent) || errors.Is(err, flow.ErrSessionTerminated) {
			e.logger.Debug("event discarded",
				"call_id", st.sess.ID,
				"type", ev.Type,
				"reason", err,
			)
			return nil
		}
		return err
	}

	e.applyResult(ctx, st, res)
	return nil
}

// endCall обрабатывает завершение звонка со стороны провайдера.
//
// Звонок, повесивший трубку в очереди или посреди flow, закрывается
// как ABANDONED; сессия, уже завершённая engine, к этому моменту
// вычищена и событие падает в unknown call.
func (e *Engine) endCall(ctx context.Context, ev *domain.WebhookEvent) error {
	st, err := e.session(ev.CallID)
	if err != nil {
		e.logger.Debug("ended event discarded", "call_id", ev.CallID, "reason", err)
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.sess
	sess.Touch()

	if sess.IsTerminated() {
		e.finalize(ctx, sess)
		return nil
	}

	if sess.Status == domain.CallStatusQueued && sess.QueueName != "" {
		if e.queues.Remove(sess.QueueName, sess.ID) {
			e.updateQueueDepth(ctx, sess.QueueName)
			telemetry.QueueWaitDuration.WithLabelValues(sess.QueueName, "abandoned").
				Observe(time.Since(sess.EnqueuedAt).Seconds())
		}
	}

	// Звонок, уже соединённый с оператором, завершается штатно;
	// трубка, брошенная до соединения, — отказ абонента
	status := domain.CallStatusAbandoned
	if sess.AgentID != "" {
		status = domain.CallStatusCompleted
	}
	sess.MarkTerminated(status)
	e.finalize(ctx, sess)
	return nil
}

// applyResult исполняет результат интерпретатора: публикует команды
// и события, ставит звонок в очередь, закрывает терминальную сессию.
// Вызывается под st.mu.
func (e *Engine) applyResult(ctx context.Context, st *callState, res *flow.Result) {
	for i := range res.Commands {
		e.publishCommand(ctx, res.Commands[i])
	}
	for i := range res.Events {
		ev := res.Events[i]
		if ev.Type == domain.LifecycleNodeError {
			telemetry.NodeErrorsTotal.WithLabelValues(string(ev.NodeType)).Inc()
		}
		e.publishLifecycle(ctx, ev)
	}

	if res.Enqueue != nil {
		e.enqueue(ctx, st, res.Enqueue)
		return
	}

	if res.Ended {
		e.finalize(ctx, st.sess)
	}
}

// enqueue ставит звонок в очередь ожидания.
//
// Переполненная очередь немедленно уводит звонок по overflow-ребру;
// если то приводит к новому enqueue-узлу, цепочка продолжается
// до maxOverflowHops. Вызывается под st.mu.
func (e *Engine) enqueue(ctx context.Context, st *callState, req *flow.EnqueueRequest) {
	sess := st.sess

	for hops := 0; hops < maxOverflowHops; hops++ {
		entry := domain.QueueEntry{
			CallID:     sess.ID,
			Priority:   req.Priority,
			Skills:     req.Skills,
			EnqueuedAt: sess.EnqueuedAt,
		}

		size, err := e.queues.Enqueue(req.Queue, entry)
		if err == nil {
			e.logger.Info("call enqueued",
				"call_id", sess.ID,
				"queue", req.Queue,
				"position", size,
			)
			telemetry.QueueDepth.WithLabelValues(req.Queue).Set(float64(size))

			ev := domain.NewLifecycleEvent(domain.LifecycleQueueUpdated)
			ev.CallID = sess.ID
			ev.QueueName = req.Queue
			ev.QueueSize = size
			e.publishLifecycle(ctx, ev)

			if cfg, cfgErr := e.queues.Config(req.Queue); cfgErr == nil && cfg.HoldAudioRef != "" {
				e.publishCommand(ctx, domain.PlayAudio(sess.ID, cfg.HoldAudioRef))
			}

			e.sched.Kick()
			return
		}

		switch {
		case errors.Is(err, dispatch.ErrQueueFull):
			e.logger.Warn("queue full, overflowing",
				"call_id", sess.ID,
				"queue", req.Queue,
			)
			telemetry.QueueOverflowsTotal.WithLabelValues(req.Queue, "full").Inc()

		case errors.Is(err, dispatch.ErrAlreadyQueued):
			e.logger.Debug("call already queued", "call_id", sess.ID, "queue", req.Queue)
			return

		default:
			// Неизвестная очередь — дефект графа: звонок не должен
			// зависнуть, завершаем как FAILED
			e.logger.Error("enqueue failed",
				"call_id", sess.ID,
				"queue", req.Queue,
				"error", err,
			)
			e.publishLifecycle(ctx, domain.NodeError(sess.ID, sess.CurrentNode, err.Error()))
			e.publishCommand(ctx, domain.Hangup(sess.ID))
			sess.MarkTerminated(domain.CallStatusFailed)
			e.finalize(ctx, sess)
			return
		}

		res, rErr := e.interp.ResumeQueued(ctx, sess, flow.OutcomeOverflow, "")
		if rErr != nil {
			e.logger.Debug("overflow resume discarded", "call_id", sess.ID, "reason", rErr)
			return
		}

		for i := range res.Commands {
			e.publishCommand(ctx, res.Commands[i])
		}
		for i := range res.Events {
			e.publishLifecycle(ctx, res.Events[i])
		}
		if res.Ended {
			e.finalize(ctx, sess)
			return
		}
		if res.Enqueue == nil {
			return
		}
		req = res.Enqueue
	}

	// Цепочка переполнений исчерпана
	e.logger.Error("overflow chain exhausted", "call_id", sess.ID)
	e.publishCommand(ctx, domain.Hangup(sess.ID))
	sess.MarkTerminated(domain.CallStatusFailed)
	e.finalize(ctx, sess)
}

// onAssigned — callback планировщика: звонок назначен оператору.
// Слот оператора уже зарезервирован.
func (e *Engine) onAssigned(queue string, entry domain.QueueEntry, agentID string) {
	ctx := context.Background()

	st, ok := e.sessions.Get(entry.CallID)
	if !ok {
		// Сессия исчезла между снятием с очереди и назначением
		e.logger.Warn("assigned call has no session, releasing agent",
			"call_id", entry.CallID,
			"agent_id", agentID,
		)
		if err := e.agents.Release(agentID); err == nil {
			e.sched.Kick()
		}
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	res, err := e.interp.ResumeQueued(ctx, st.sess, flow.OutcomeAssigned, agentID)
	if err != nil {
		e.logger.Debug("assignment discarded, releasing agent",
			"call_id", entry.CallID,
			"agent_id", agentID,
			"reason", err,
		)
		if rErr := e.agents.Release(agentID); rErr == nil {
			e.sched.Kick()
		}
		return
	}

	telemetry.AssignmentsTotal.WithLabelValues(queue).Inc()
	telemetry.QueueWaitDuration.WithLabelValues(queue, "assigned").
		Observe(entry.Age(time.Now()).Seconds())
	e.updateQueueDepth(ctx, queue)

	e.logger.Info("call assigned to agent",
		"call_id", entry.CallID,
		"queue", queue,
		"agent_id", agentID,
	)

	e.applyResult(ctx, st, res)
}

// onExpired — callback планировщика: истекло max_wait звонка.
func (e *Engine) onExpired(queue string, entry domain.QueueEntry) {
	ctx := context.Background()

	st, ok := e.sessions.Get(entry.CallID)
	if !ok {
		e.logger.Debug("expired call has no session", "call_id", entry.CallID)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	telemetry.QueueOverflowsTotal.WithLabelValues(queue, "max_wait").Inc()
	telemetry.QueueWaitDuration.WithLabelValues(queue, "overflow").
		Observe(entry.Age(time.Now()).Seconds())
	e.updateQueueDepth(ctx, queue)

	e.logger.Info("queue wait expired, overflowing",
		"call_id", entry.CallID,
		"queue", queue,
	)

	res, err := e.interp.ResumeQueued(ctx, st.sess, flow.OutcomeOverflow, "")
	if err != nil {
		e.logger.Debug("overflow resume discarded", "call_id", entry.CallID, "reason", err)
		return
	}

	e.applyResult(ctx, st, res)
}

// HandleAgentStatus применяет смену статуса оператора.
// Вызывается consumer и напрямую из API.
func (e *Engine) HandleAgentStatus(ctx context.Context, upd *domain.AgentStatusUpdate) error {
	from, to, err := e.agents.SetStatus(upd.AgentID, upd.Status)
	if err != nil {
		e.logger.Warn("agent status update rejected",
			"agent_id", upd.AgentID,
			"status", upd.Status,
			"error", err,
		)
		return nil
	}

	ev := domain.NewLifecycleEvent(domain.LifecycleAgentStatus)
	ev.AgentID = upd.AgentID
	ev.From = from
	ev.To = to
	e.publishLifecycle(ctx, ev)

	e.logger.Info("agent status changed",
		"agent_id", upd.AgentID,
		"from", from,
		"to", to,
	)

	// Вышедший в ONLINE оператор может забрать ожидающий звонок
	if to == domain.AgentOnline {
		e.sched.Kick()
	}
	return nil
}

// updateQueueDepth обновляет метрику и событие глубины очереди.
func (e *Engine) updateQueueDepth(ctx context.Context, queue string) {
	depth, err := e.queues.Depth(queue)
	if err != nil {
		return
	}
	telemetry.QueueDepth.WithLabelValues(queue).Set(float64(depth))

	ev := domain.NewLifecycleEvent(domain.LifecycleQueueUpdated)
	ev.QueueName = queue
	ev.QueueSize = depth
	e.publishLifecycle(ctx, ev)
}

package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Kommutator/internal/domain"
)

// Пределы исполнения.
const (
	// maxHops — максимум узлов за одно продвижение без внешнего
	// события. Валидный граф не зацикливается без await-узлов;
	// предел превращает повреждённый граф в контролируемый отказ.
	maxHops = 64

	// maxStackDepth — максимальная глубина вложенности subflow.
	maxStackDepth = 8

	// maxBufferLen — предел DTMF буфера сессии.
	maxBufferLen = 32

	// defaultInputTimeout — таймаут ожидания ввода, если узел не задал свой.
	defaultInputTimeout = 5 * time.Second
)

// GraphResolver возвращает граф flow указанной версии
// (version=0 — текущая опубликованная). Реализуется engine поверх
// хранилища с кэшем валидированных графов.
//
// Сессия пришпилена к версии, с которой начала: публикация новой
// версии затрагивает только новые звонки.
type GraphResolver interface {
	Resolve(ctx context.Context, flowID uuid.UUID, version int) (*domain.FlowGraph, error)
}

// Interpreter продвигает сессию звонка по графу.
//
// Advance для одной сессии никогда не вызывается конкурентно —
// per-call сериализацию обеспечивает engine. Интерпретатор не
// держит межсессионного состояния, поэтому один экземпляр
// обслуживает все звонки.
type Interpreter struct {
	flows  GraphResolver
	logger *slog.Logger
}

// Config — конфигурация Interpreter.
type Config struct {
	// Flows — резолвер графов (для subflow и возобновления).
	Flows GraphResolver

	// Logger — логгер.
	Logger *slog.Logger
}

// New создаёт новый Interpreter.
func New(cfg Config) *Interpreter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		flows:  cfg.Flows,
		logger: logger,
	}
}

// EnqueueRequest — запрос постановки звонка в очередь.
// Исполняется engine против реестра очередей.
type EnqueueRequest struct {
	// Queue — имя очереди.
	Queue string

	// Priority — приоритет звонка.
	Priority int

	// Skills — требуемые навыки оператора.
	Skills []string
}

// Result — результат одного продвижения сессии.
type Result struct {
	// Commands — исходящие команды транспорту (в порядке эмиссии).
	Commands []domain.Command

	// Events — события жизненного цикла (node.executed, node.error).
	Events []domain.LifecycleEvent

	// Enqueue — запрос постановки в очередь (не более одного).
	Enqueue *EnqueueRequest

	// Ended — сессия достигла терминального статуса.
	Ended bool
}

// QueueOutcome — исход ожидания в очереди.
type QueueOutcome string

const (
	// OutcomeAssigned — планировщик назначил оператора.
	OutcomeAssigned QueueOutcome = "assigned"

	// OutcomeOverflow — очередь переполнена или истекло время ожидания:
	// звонок уходит по overflow-ребру enqueue-узла.
	OutcomeOverflow QueueOutcome = "overflow"
)

// Advance продвигает сессию по одному входящему событию.
//
// Возвращает ErrSessionTerminated для завершённой сессии и
// ErrDuplicateEvent для события, не соответствующего ожидаемому
// переходу (повторная доставка) — оба случая вызывающая сторона
// логирует с низкой серьёзностью и отбрасывает.
//
// Ошибки целостности графа (висячее ребро, отсутствующий узел)
// не возвращаются как error: сессия принудительно завершается
// со статусом FAILED, эмитится диагностическое событие и
// защитный Hangup — звонок никогда не остаётся в подвешенном
// состоянии.
func (i *Interpreter) Advance(ctx context.Context, sess *domain.CallSession, ev *domain.WebhookEvent) (*Result, error) {
	if sess.IsTerminated() {
		return nil, ErrSessionTerminated
	}

	res := &Result{}

	switch ev.Type {
	case domain.EventStarted:
		if sess.Status != domain.CallStatusCreated {
			return nil, ErrDuplicateEvent
		}

		// Переход CREATED → IN_FLOW только после успешного резолва:
		// при транзиентной ошибке хранилища сессия остаётся в CREATED
		// и повторная доставка started продвигает её, а не
		// отбрасывается как дубликат.
		graph, err := i.flows.Resolve(ctx, sess.FlowID, sess.Version)
		if err != nil {
			return nil, fmt.Errorf("resolve flow %s: %w", sess.FlowID, err)
		}
		sess.Status = domain.CallStatusInFlow
		sess.Version = graph.Version
		return i.enterNode(ctx, sess, graph, graph.Entry, res)

	case domain.EventDigits:
		if sess.Await != domain.AwaitDigits {
			return nil, ErrDuplicateEvent
		}
		return i.handleDigits(ctx, sess, ev.Digits, res)

	case domain.EventDTMFTimeout:
		if sess.Await != domain.AwaitDigits {
			return nil, ErrDuplicateEvent
		}
		return i.handleInputTimeout(ctx, sess, res)

	case domain.EventRecordingComplete:
		if sess.Await != domain.AwaitAudio {
			return nil, ErrDuplicateEvent
		}
		return i.handleAudioComplete(ctx, sess, res)

	default:
		// "ended" обрабатывается engine напрямую (снятие с очереди,
		// освобождение оператора), сюда не попадает.
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, ev.Type)
	}
}

// ResumeQueued возобновляет сессию, ожидающую в очереди.
//
// OutcomeAssigned эмитит TransferToAgent и возвращает сессию в
// IN_FLOW; OutcomeOverflow продолжает flow по overflow-ребру
// enqueue-узла (fallback: timeout, затем default).
func (i *Interpreter) ResumeQueued(ctx context.Context, sess *domain.CallSession, outcome QueueOutcome, agentID string) (*Result, error) {
	if sess.IsTerminated() {
		return nil, ErrSessionTerminated
	}
	if sess.Status != domain.CallStatusQueued || sess.Await != domain.AwaitQueue {
		return nil, ErrDuplicateEvent
	}

	res := &Result{}
	sess.Status = domain.CallStatusInFlow
	sess.Await = domain.AwaitNone
	sess.QueueName = ""

	switch outcome {
	case OutcomeAssigned:
		// AgentID фиксируется до любых fallible-шагов: если сессия
		// дальше завершится аварийно, engine по нему освободит
		// зарезервированный слот оператора.
		sess.AgentID = agentID
		res.Commands = append(res.Commands, domain.TransferToAgent(sess.ID, agentID))
		return res, nil

	case OutcomeOverflow:
		graph, node, ok := i.currentNode(ctx, sess, res)
		if !ok {
			return res, nil
		}
		edge, ok := node.Edge(domain.EdgeOverflow)
		if !ok {
			edge, ok = node.Edge(domain.EdgeTimeout)
		}
		if !ok {
			edge, ok = node.Edge(domain.EdgeDefault)
		}
		if !ok {
			return i.failSession(sess, res, node.ID, "enqueue node has no overflow edge")
		}
		return i.enterNode(ctx, sess, graph, edge.To, res)

	default:
		return nil, fmt.Errorf("%w: unknown queue outcome %s", ErrUnhandledEvent, outcome)
	}
}

// enterNode исполняет узлы начиная с nodeID до ближайшей точки
// приостановки (await) или терминального узла.
func (i *Interpreter) enterNode(ctx context.Context, sess *domain.CallSession, graph *domain.FlowGraph, nodeID string, res *Result) (*Result, error) {
	for hops := 0; ; hops++ {
		if hops >= maxHops {
			return i.failSession(sess, res, nodeID, "node chain exceeds hop limit")
		}

		node, ok := graph.Node(nodeID)
		if !ok {
			return i.failSession(sess, res, nodeID, "node not found in graph")
		}

		sess.CurrentNode = node.ID
		res.Events = append(res.Events, domain.NodeExecuted(sess.ID, node))

		switch node.Type {
		case domain.NodeTypePlay:
			res.Commands = append(res.Commands, domain.PlayAudio(sess.ID, node.AudioRef))
			if node.WaitForCompletion {
				sess.Await = domain.AwaitAudio
				return res, nil
			}
			edge, ok := node.Edge(domain.EdgeDefault)
			if !ok {
				return i.failSession(sess, res, node.ID, "play node has no default edge")
			}
			nodeID = edge.To

		case domain.NodeTypeGather, domain.NodeTypeMenu:
			sess.Buffer = ""
			sess.Retries = 0
			i.prompt(sess, node, res)
			sess.Await = domain.AwaitDigits
			return res, nil

		case domain.NodeTypeCondition:
			matched, err := EvaluateCondition(node.Condition, sess, time.Now())
			if err != nil {
				return i.failSession(sess, res, node.ID, fmt.Sprintf("condition evaluation: %v", err))
			}
			label := domain.EdgeDefault
			if matched {
				label = domain.EdgeMatch
			}
			edge, ok := node.Edge(label)
			if !ok {
				return i.failSession(sess, res, node.ID,
					fmt.Sprintf("condition node has no %s edge", label))
			}
			nodeID = edge.To

		case domain.NodeTypeEnqueue:
			sess.Status = domain.CallStatusQueued
			sess.Await = domain.AwaitQueue
			sess.QueueName = node.Queue
			sess.EnqueuedAt = time.Now()
			res.Enqueue = &EnqueueRequest{
				Queue:    node.Queue,
				Priority: node.Priority,
				Skills:   node.Skills,
			}
			return res, nil

		case domain.NodeTypeTransferAgent:
			sess.AgentID = node.AgentID
			sess.Await = domain.AwaitNone
			res.Commands = append(res.Commands, domain.TransferToAgent(sess.ID, node.AgentID))
			return res, nil

		case domain.NodeTypeHangup:
			if len(sess.Stack) > 0 {
				// Возврат из subflow: управление уходит на default-ребро
				// subflow-узла родительского графа
				var returnTo string
				graph, returnTo, ok = i.popSubflow(ctx, sess, res)
				if !ok {
					return res, nil
				}
				nodeID = returnTo
				continue
			}
			res.Commands = append(res.Commands, domain.Hangup(sess.ID))
			sess.MarkTerminated(domain.CallStatusCompleted)
			res.Ended = true
			return res, nil

		case domain.NodeTypeSubflow:
			if len(sess.Stack) >= maxStackDepth {
				return i.failSession(sess, res, node.ID, "subflow stack depth exceeded")
			}
			// Subflow всегда исполняется в опубликованной версии
			child, err := i.flows.Resolve(ctx, node.SubflowID, 0)
			if err != nil {
				return i.failSession(sess, res, node.ID,
					fmt.Sprintf("resolve subflow %s: %v", node.SubflowID, err))
			}
			sess.Stack = append(sess.Stack, domain.FlowFrame{
				FlowID:     sess.FlowID,
				Version:    sess.Version,
				ReturnNode: node.ID,
			})
			sess.FlowID = child.FlowID
			sess.Version = child.Version
			graph = child
			nodeID = child.Entry

		default:
			return i.failSession(sess, res, node.ID,
				fmt.Sprintf("unknown node type: %s", node.Type))
		}
	}
}

// popSubflow снимает кадр стека и возвращает родительский граф
// и ID узла, с которого продолжать (цель default-ребра subflow-узла).
func (i *Interpreter) popSubflow(ctx context.Context, sess *domain.CallSession, res *Result) (*domain.FlowGraph, string, bool) {
	frame := sess.Stack[len(sess.Stack)-1]
	sess.Stack = sess.Stack[:len(sess.Stack)-1]
	sess.FlowID = frame.FlowID
	sess.Version = frame.Version

	parent, err := i.flows.Resolve(ctx, frame.FlowID, frame.Version)
	if err != nil {
		i.failSession(sess, res, frame.ReturnNode,
			fmt.Sprintf("resolve parent flow %s: %v", frame.FlowID, err))
		return nil, "", false
	}

	node, ok := parent.Node(frame.ReturnNode)
	if !ok {
		i.failSession(sess, res, frame.ReturnNode, "subflow return node not found")
		return nil, "", false
	}
	edge, ok := node.Edge(domain.EdgeDefault)
	if !ok {
		i.failSession(sess, res, frame.ReturnNode, "subflow node has no default edge")
		return nil, "", false
	}

	return parent, edge.To, true
}

// handleDigits обрабатывает полученные DTMF цифры.
func (i *Interpreter) handleDigits(ctx context.Context, sess *domain.CallSession, digits string, res *Result) (*Result, error) {
	graph, node, ok := i.currentNode(ctx, sess, res)
	if !ok {
		return res, nil
	}

	switch node.Type {
	case domain.NodeTypeMenu:
		return i.handleMenuDigit(ctx, sess, graph, node, digits, res)
	case domain.NodeTypeGather:
		return i.handleGatherDigits(ctx, sess, graph, node, digits, res)
	default:
		// Await=digits возможен только на gather/menu
		return i.failSession(sess, res, node.ID,
			fmt.Sprintf("digits received at %s node", node.Type))
	}
}

// handleMenuDigit — диспетчеризация по одной цифре.
func (i *Interpreter) handleMenuDigit(ctx context.Context, sess *domain.CallSession, graph *domain.FlowGraph, node *domain.Node, digits string, res *Result) (*Result, error) {
	if digits == "" {
		return res, nil
	}
	digit := string(digits[0])

	if edge, ok := node.DigitEdge(digit); ok {
		sess.Await = domain.AwaitNone
		return i.enterNode(ctx, sess, graph, edge.To, res)
	}

	// Непривязанная цифра: invalid-ребро, иначе повтор prompt
	if edge, ok := node.Edge(domain.EdgeInvalid); ok {
		sess.Await = domain.AwaitNone
		return i.enterNode(ctx, sess, graph, edge.To, res)
	}

	i.logger.Debug("unmapped menu digit, re-prompting",
		"call_id", sess.ID,
		"node_id", node.ID,
		"digit", digit,
	)
	i.prompt(sess, node, res)
	return res, nil
}

// handleGatherDigits — накопление буфера до выполнения правила
// завершения (фиксированная длина или терминатор).
func (i *Interpreter) handleGatherDigits(ctx context.Context, sess *domain.CallSession, graph *domain.FlowGraph, node *domain.Node, digits string, res *Result) (*Result, error) {
	complete := false
	for _, r := range digits {
		d := string(r)
		if node.Terminator != "" && d == node.Terminator {
			complete = true
			break
		}
		if len(sess.Buffer) < maxBufferLen {
			sess.Buffer += d
		}
		if node.MaxDigits > 0 && len(sess.Buffer) >= node.MaxDigits {
			complete = true
			break
		}
	}

	if !complete {
		return res, nil
	}

	buffer := sess.Buffer
	sess.Await = domain.AwaitNone

	if edge, ok := node.DigitEdge(buffer); ok {
		return i.enterNode(ctx, sess, graph, edge.To, res)
	}
	if edge, ok := node.Edge(domain.EdgeDefault); ok {
		return i.enterNode(ctx, sess, graph, edge.To, res)
	}
	if edge, ok := node.Edge(domain.EdgeInvalid); ok {
		return i.enterNode(ctx, sess, graph, edge.To, res)
	}

	return i.failSession(sess, res, node.ID, "gather node has no matching edge for input")
}

// handleInputTimeout — таймаут ожидания цифр на gather/menu.
//
// До исчерпания max_retries prompt повторяется; после — переход
// по timeout-ребру (fallback: default).
func (i *Interpreter) handleInputTimeout(ctx context.Context, sess *domain.CallSession, res *Result) (*Result, error) {
	graph, node, ok := i.currentNode(ctx, sess, res)
	if !ok {
		return res, nil
	}

	sess.Retries++
	if sess.Retries <= node.MaxRetries {
		i.logger.Debug("input timeout, re-prompting",
			"call_id", sess.ID,
			"node_id", node.ID,
			"retry", sess.Retries,
		)
		sess.Buffer = ""
		i.prompt(sess, node, res)
		return res, nil
	}

	sess.Await = domain.AwaitNone
	edge, ok := node.Edge(domain.EdgeTimeout)
	if !ok {
		edge, ok = node.Edge(domain.EdgeDefault)
	}
	if !ok {
		return i.failSession(sess, res, node.ID, "input retries exhausted and no timeout edge")
	}
	return i.enterNode(ctx, sess, graph, edge.To, res)
}

// handleAudioComplete — окончание проигрывания для play с
// wait_for_completion.
func (i *Interpreter) handleAudioComplete(ctx context.Context, sess *domain.CallSession, res *Result) (*Result, error) {
	graph, node, ok := i.currentNode(ctx, sess, res)
	if !ok {
		return res, nil
	}

	sess.Await = domain.AwaitNone
	edge, ok := node.Edge(domain.EdgeDefault)
	if !ok {
		return i.failSession(sess, res, node.ID, "play node has no default edge")
	}
	return i.enterNode(ctx, sess, graph, edge.To, res)
}

// prompt эмитит prompt-аудио и команду сбора цифр для gather/menu.
func (i *Interpreter) prompt(sess *domain.CallSession, node *domain.Node, res *Result) {
	if node.AudioRef != "" {
		res.Commands = append(res.Commands, domain.PlayAudio(sess.ID, node.AudioRef))
	}

	maxDigits := node.MaxDigits
	if node.Type == domain.NodeTypeMenu {
		maxDigits = 1
	}
	timeout := defaultInputTimeout
	if node.TimeoutSec > 0 {
		timeout = time.Duration(node.TimeoutSec) * time.Second
	}
	res.Commands = append(res.Commands,
		domain.CollectDigits(sess.ID, maxDigits, node.Terminator, int(timeout.Milliseconds())))
}

// currentNode возвращает граф и текущий узел сессии.
// При повреждённом состоянии сессия безопасно завершается.
func (i *Interpreter) currentNode(ctx context.Context, sess *domain.CallSession, res *Result) (*domain.FlowGraph, *domain.Node, bool) {
	graph, err := i.flows.Resolve(ctx, sess.FlowID, sess.Version)
	if err != nil {
		i.failSession(sess, res, sess.CurrentNode,
			fmt.Sprintf("resolve flow %s: %v", sess.FlowID, err))
		return nil, nil, false
	}
	node, ok := graph.Node(sess.CurrentNode)
	if !ok {
		i.failSession(sess, res, sess.CurrentNode, "current node not found in graph")
		return nil, nil, false
	}
	return graph, node, true
}

// failSession принудительно завершает сессию из-за ошибки графа
// или исполнения: диагностическое событие, защитный Hangup,
// статус FAILED. Ошибка контейнеризована в сессии и не влияет
// на другие звонки.
func (i *Interpreter) failSession(sess *domain.CallSession, res *Result, nodeID, reason string) (*Result, error) {
	i.logger.Warn("session failed",
		"call_id", sess.ID,
		"node_id", nodeID,
		"reason", reason,
	)

	res.Events = append(res.Events, domain.NodeError(sess.ID, nodeID, reason))
	res.Commands = append(res.Commands, domain.Hangup(sess.ID))
	sess.MarkTerminated(domain.CallStatusFailed)
	res.Ended = true
	return res, nil
}

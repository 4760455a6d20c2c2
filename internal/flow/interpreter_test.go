package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Kommutator/internal/domain"
)

// fakeResolver отдаёт графы из памяти; version=0 — первая
// зарегистрированная версия flow.
type fakeResolver struct {
	graphs []*domain.FlowGraph
}

func (f *fakeResolver) Resolve(_ context.Context, flowID uuid.UUID, version int) (*domain.FlowGraph, error) {
	for _, g := range f.graphs {
		if g.FlowID == flowID && (version == 0 || g.Version == version) {
			return g, nil
		}
	}
	return nil, errors.New("graph not found")
}

// flakyResolver отказывает заданное число раз, затем делегирует.
type flakyResolver struct {
	inner    GraphResolver
	failures int
}

func (f *flakyResolver) Resolve(ctx context.Context, flowID uuid.UUID, version int) (*domain.FlowGraph, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("store unavailable")
	}
	return f.inner.Resolve(ctx, flowID, version)
}

func testInterpreter(graphs ...*domain.FlowGraph) *Interpreter {
	return New(Config{
		Flows:  &fakeResolver{graphs: graphs},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// ivrGraph — типовой сценарий: приветствие, меню, очередь с overflow.
func ivrGraph() *domain.FlowGraph {
	return &domain.FlowGraph{
		FlowID:  uuid.New(),
		Version: 1,
		Entry:   "welcome",
		Nodes: map[string]*domain.Node{
			"welcome": {
				ID:       "welcome",
				Type:     domain.NodeTypePlay,
				AudioRef: "audio/welcome.wav",
				Edges:    []domain.Edge{{Label: domain.EdgeDefault, To: "menu"}},
			},
			"menu": {
				ID:         "menu",
				Type:       domain.NodeTypeMenu,
				AudioRef:   "audio/menu.wav",
				MaxRetries: 2,
				Edges: []domain.Edge{
					{Label: domain.EdgeDigit, Digit: "1", To: "sales-q"},
					{Label: domain.EdgeDigit, Digit: "2", To: "bye"},
					{Label: domain.EdgeTimeout, To: "bye"},
				},
			},
			"sales-q": {
				ID:       "sales-q",
				Type:     domain.NodeTypeEnqueue,
				Queue:    "sales",
				Priority: 5,
				Skills:   []string{"sales"},
				Edges: []domain.Edge{
					{Label: domain.EdgeOverflow, To: "sorry"},
					{Label: domain.EdgeDefault, To: "bye"},
				},
			},
			"sorry": {
				ID:       "sorry",
				Type:     domain.NodeTypePlay,
				AudioRef: "audio/sorry.wav",
				Edges:    []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}},
			},
			"bye": {ID: "bye", Type: domain.NodeTypeHangup},
		},
	}
}

func newSession(g *domain.FlowGraph) *domain.CallSession {
	now := time.Now()
	return &domain.CallSession{
		ID:          "call-1",
		Caller:      "+79161234567",
		Called:      "100",
		FlowID:      g.FlowID,
		Version:     g.Version,
		Status:      domain.CallStatusCreated,
		CreatedAt:   now,
		LastEventAt: now,
	}
}

func startEvent(callID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{CallID: callID, Type: domain.EventStarted}
}

func digitsEvent(callID, digits string) *domain.WebhookEvent {
	return &domain.WebhookEvent{CallID: callID, Type: domain.EventDigits, Digits: digits}
}

func timeoutEvent(callID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{CallID: callID, Type: domain.EventDTMFTimeout}
}

func commandTypes(res *Result) []domain.CommandType {
	types := make([]domain.CommandType, len(res.Commands))
	for i := range res.Commands {
		types[i] = res.Commands[i].Type
	}
	return types
}

func TestAdvance_StartedRunsToMenu(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)

	res, err := interp.Advance(context.Background(), sess, startEvent(sess.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// play welcome + prompt меню + сбор цифр
	want := []domain.CommandType{domain.CommandPlayAudio, domain.CommandPlayAudio, domain.CommandCollectDigits}
	got := commandTypes(res)
	if len(got) != len(want) {
		t.Fatalf("expected commands %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected commands %v, got %v", want, got)
		}
	}

	// Меню собирает ровно одну цифру
	if res.Commands[2].MaxDigits != 1 {
		t.Errorf("menu should collect 1 digit, got %d", res.Commands[2].MaxDigits)
	}

	if sess.Status != domain.CallStatusInFlow {
		t.Errorf("expected IN_FLOW, got %s", sess.Status)
	}
	if sess.Await != domain.AwaitDigits {
		t.Errorf("expected await digits, got %q", sess.Await)
	}
	if sess.CurrentNode != "menu" {
		t.Errorf("expected current node menu, got %s", sess.CurrentNode)
	}

	// node.executed для welcome и menu
	if len(res.Events) != 2 {
		t.Errorf("expected 2 node.executed events, got %d", len(res.Events))
	}
}

func TestAdvance_StartedRetriesAfterResolveFailure(t *testing.T) {
	g := ivrGraph()
	resolver := &flakyResolver{inner: &fakeResolver{graphs: []*domain.FlowGraph{g}}, failures: 1}
	interp := New(Config{
		Flows:  resolver,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	sess := newSession(g)
	ctx := context.Background()

	// Транзиентный сбой хранилища — ошибка уходит транспорту на
	// повтор, сессия не должна покинуть CREATED
	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err == nil {
		t.Fatal("expected resolve error")
	}
	if sess.Status != domain.CallStatusCreated {
		t.Fatalf("session must stay CREATED after resolve failure, got %s", sess.Status)
	}

	// Повторная доставка started продвигает звонок, а не отбрасывается
	res, err := interp.Advance(ctx, sess, startEvent(sess.ID))
	if err != nil {
		t.Fatalf("retried started must advance the call, got %v", err)
	}
	if sess.Status != domain.CallStatusInFlow || sess.CurrentNode != "menu" {
		t.Errorf("unexpected session state: status=%s node=%s", sess.Status, sess.CurrentNode)
	}
	if len(res.Commands) == 0 {
		t.Error("expected commands from retried started")
	}
}

func TestAdvance_MenuDigitToEnqueue(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Enqueue == nil {
		t.Fatal("expected enqueue request")
	}
	if res.Enqueue.Queue != "sales" || res.Enqueue.Priority != 5 {
		t.Errorf("unexpected enqueue request: %+v", res.Enqueue)
	}
	if sess.Status != domain.CallStatusQueued {
		t.Errorf("expected QUEUED, got %s", sess.Status)
	}
	if sess.Await != domain.AwaitQueue {
		t.Errorf("expected await queue, got %q", sess.Await)
	}
}

func TestAdvance_MenuDigitToHangup(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Ended {
		t.Error("expected session to end")
	}
	if sess.Status != domain.CallStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", sess.Status)
	}
	if len(res.Commands) != 1 || res.Commands[0].Type != domain.CommandHangup {
		t.Errorf("expected single hangup command, got %v", commandTypes(res))
	}
}

func TestAdvance_UnmappedDigitReprompts(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "9"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sess.Await != domain.AwaitDigits {
		t.Errorf("session should still wait for digits, await=%q", sess.Await)
	}
	got := commandTypes(res)
	if len(got) != 2 || got[0] != domain.CommandPlayAudio || got[1] != domain.CommandCollectDigits {
		t.Errorf("expected re-prompt commands, got %v", got)
	}
}

func TestAdvance_InputTimeoutRetries(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Два таймаута в пределах max_retries=2 — повтор prompt
	for i := 0; i < 2; i++ {
		res, err := interp.Advance(ctx, sess, timeoutEvent(sess.ID))
		if err != nil {
			t.Fatalf("timeout %d: %v", i+1, err)
		}
		if sess.Await != domain.AwaitDigits {
			t.Fatalf("timeout %d: session should re-prompt", i+1)
		}
		if len(res.Commands) == 0 {
			t.Fatalf("timeout %d: expected prompt commands", i+1)
		}
	}

	// Третий таймаут исчерпывает попытки — уход по timeout-ребру
	res, err := interp.Advance(ctx, sess, timeoutEvent(sess.ID))
	if err != nil {
		t.Fatalf("final timeout: %v", err)
	}
	if !res.Ended {
		t.Error("expected session to end via timeout edge")
	}
	if sess.Status != domain.CallStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", sess.Status)
	}
}

func TestAdvance_DuplicateEvents(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Повторный started для живой сессии
	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent for repeated started, got %v", err)
	}

	// recording-complete, когда сессия ждёт цифры
	ev := &domain.WebhookEvent{CallID: sess.ID, Type: domain.EventRecordingComplete}
	if _, err := interp.Advance(ctx, sess, ev); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent for mismatched event, got %v", err)
	}
}

func TestAdvance_TerminatedSessionAbsorbs(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "2")); err != nil {
		t.Fatalf("hangup: %v", err)
	}

	if _, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "1")); !errors.Is(err, ErrSessionTerminated) {
		t.Errorf("expected ErrSessionTerminated, got %v", err)
	}
}

func TestAdvance_DanglingEdgeFailsSession(t *testing.T) {
	g := ivrGraph()
	g.Nodes["welcome"].Edges[0].To = "ghost"
	interp := testInterpreter(g)
	sess := newSession(g)

	res, err := interp.Advance(context.Background(), sess, startEvent(sess.ID))
	if err != nil {
		t.Fatalf("graph defects must not surface as errors, got %v", err)
	}

	if !res.Ended {
		t.Error("expected session to end")
	}
	if sess.Status != domain.CallStatusFailed {
		t.Errorf("expected FAILED, got %s", sess.Status)
	}

	// Защитный hangup обязателен
	hangup := false
	for _, cmd := range res.Commands {
		if cmd.Type == domain.CommandHangup {
			hangup = true
		}
	}
	if !hangup {
		t.Error("expected protective hangup command")
	}

	// Диагностическое событие node.error
	nodeError := false
	for _, ev := range res.Events {
		if ev.Type == domain.LifecycleNodeError {
			nodeError = true
		}
	}
	if !nodeError {
		t.Error("expected node.error event")
	}
}

func TestGather_BufferCompletion(t *testing.T) {
	g := &domain.FlowGraph{
		FlowID:  uuid.New(),
		Version: 1,
		Entry:   "ext",
		Nodes: map[string]*domain.Node{
			"ext": {
				ID:         "ext",
				Type:       domain.NodeTypeGather,
				AudioRef:   "audio/enter-ext.wav",
				MaxDigits:  4,
				Terminator: "#",
				Edges: []domain.Edge{
					{Label: domain.EdgeDigit, Digit: "1000", To: "vip"},
					{Label: domain.EdgeDefault, To: "bye"},
				},
			},
			"vip": {
				ID:       "vip",
				Type:     domain.NodeTypeTransferAgent,
				AgentID:  "agent-vip",
				Edges:    nil,
				AudioRef: "",
			},
			"bye": {ID: "bye", Type: domain.NodeTypeHangup},
		},
	}
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Частичный ввод — буфер копится, сессия продолжает ждать
	res, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "10"))
	if err != nil {
		t.Fatalf("partial digits: %v", err)
	}
	if sess.Buffer != "10" || sess.Await != domain.AwaitDigits {
		t.Fatalf("expected buffered partial input, buffer=%q await=%q", sess.Buffer, sess.Await)
	}
	if len(res.Commands) != 0 {
		t.Errorf("partial input should produce no commands, got %v", commandTypes(res))
	}

	// Терминатор завершает ввод, буфер диспетчеризуется по digit-ребру
	res, err = interp.Advance(ctx, sess, digitsEvent(sess.ID, "00#"))
	if err != nil {
		t.Fatalf("terminator: %v", err)
	}
	if len(res.Commands) != 1 || res.Commands[0].Type != domain.CommandTransferAgent {
		t.Fatalf("expected transfer command, got %v", commandTypes(res))
	}
	if res.Commands[0].AgentID != "agent-vip" {
		t.Errorf("expected agent-vip, got %s", res.Commands[0].AgentID)
	}
	if sess.AgentID != "agent-vip" {
		t.Errorf("session should record assigned agent")
	}
}

func TestGather_MaxDigitsFallsToDefault(t *testing.T) {
	g := &domain.FlowGraph{
		FlowID:  uuid.New(),
		Version: 1,
		Entry:   "ext",
		Nodes: map[string]*domain.Node{
			"ext": {
				ID:        "ext",
				Type:      domain.NodeTypeGather,
				AudioRef:  "audio/enter-ext.wav",
				MaxDigits: 2,
				Edges: []domain.Edge{
					{Label: domain.EdgeDigit, Digit: "11", To: "bye"},
					{Label: domain.EdgeDefault, To: "bye"},
				},
			},
			"bye": {ID: "bye", Type: domain.NodeTypeHangup},
		},
	}
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// "99" не привязана к digit-ребру — уходит по default
	res, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "99"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Ended || sess.Status != domain.CallStatusCompleted {
		t.Errorf("expected completion via default edge, status=%s", sess.Status)
	}
}

func TestSubflow_PushAndReturn(t *testing.T) {
	child := &domain.FlowGraph{
		FlowID:  uuid.New(),
		Version: 3,
		Entry:   "promo",
		Nodes: map[string]*domain.Node{
			"promo": {
				ID:       "promo",
				Type:     domain.NodeTypePlay,
				AudioRef: "audio/promo.wav",
				Edges:    []domain.Edge{{Label: domain.EdgeDefault, To: "done"}},
			},
			"done": {ID: "done", Type: domain.NodeTypeHangup},
		},
	}

	parent := &domain.FlowGraph{
		FlowID:  uuid.New(),
		Version: 1,
		Entry:   "sub",
		Nodes: map[string]*domain.Node{
			"sub": {
				ID:        "sub",
				Type:      domain.NodeTypeSubflow,
				SubflowID: child.FlowID,
				Edges:     []domain.Edge{{Label: domain.EdgeDefault, To: "after"}},
			},
			"after": {
				ID:       "after",
				Type:     domain.NodeTypePlay,
				AudioRef: "audio/after.wav",
				Edges:    []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}},
			},
			"bye": {ID: "bye", Type: domain.NodeTypeHangup},
		},
	}

	interp := testInterpreter(parent, child)
	sess := newSession(parent)

	// Без await-узлов весь сценарий проходит за одно продвижение:
	// subflow проигрывает promo, hangup ребёнка возвращает в родителя
	res, err := interp.Advance(context.Background(), sess, startEvent(sess.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.CommandType{domain.CommandPlayAudio, domain.CommandPlayAudio, domain.CommandHangup}
	got := commandTypes(res)
	if len(got) != len(want) {
		t.Fatalf("expected commands %v, got %v", want, got)
	}
	if res.Commands[0].AudioRef != "audio/promo.wav" || res.Commands[1].AudioRef != "audio/after.wav" {
		t.Errorf("unexpected audio order: %s, %s", res.Commands[0].AudioRef, res.Commands[1].AudioRef)
	}

	if sess.Status != domain.CallStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", sess.Status)
	}
	if sess.FlowID != parent.FlowID {
		t.Error("session should return to parent flow")
	}
	if len(sess.Stack) != 0 {
		t.Errorf("subflow stack should be empty, got %d frames", len(sess.Stack))
	}
}

func TestResumeQueued_Assigned(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	res, err := interp.ResumeQueued(ctx, sess, OutcomeAssigned, "agent-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Commands) != 1 || res.Commands[0].Type != domain.CommandTransferAgent {
		t.Fatalf("expected transfer command, got %v", commandTypes(res))
	}
	if res.Commands[0].AgentID != "agent-7" {
		t.Errorf("expected agent-7, got %s", res.Commands[0].AgentID)
	}
	if sess.Status != domain.CallStatusInFlow || sess.AgentID != "agent-7" {
		t.Errorf("unexpected session state: status=%s agent=%s", sess.Status, sess.AgentID)
	}
	if sess.QueueName != "" {
		t.Error("queue name should be cleared after assignment")
	}
}

func TestResumeQueued_AssignedSurvivesResolveFailure(t *testing.T) {
	g := ivrGraph()
	resolver := &flakyResolver{inner: &fakeResolver{graphs: []*domain.FlowGraph{g}}}
	interp := New(Config{
		Flows:  resolver,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Хранилище недоступно в момент назначения: AgentID всё равно
	// фиксируется в сессии — по нему engine освобождает
	// зарезервированный слот оператора
	resolver.failures = 1 << 30
	res, err := interp.ResumeQueued(ctx, sess, OutcomeAssigned, "agent-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.AgentID != "agent-7" {
		t.Fatalf("session must record the assigned agent, got %q", sess.AgentID)
	}
	if len(res.Commands) != 1 || res.Commands[0].Type != domain.CommandTransferAgent {
		t.Errorf("expected transfer command, got %v", commandTypes(res))
	}
}

func TestResumeQueued_Overflow(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := interp.Advance(ctx, sess, digitsEvent(sess.ID, "1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	res, err := interp.ResumeQueued(ctx, sess, OutcomeOverflow, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// overflow-ребро ведёт на sorry → bye
	want := []domain.CommandType{domain.CommandPlayAudio, domain.CommandHangup}
	got := commandTypes(res)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected commands %v, got %v", want, got)
	}
	if res.Commands[0].AudioRef != "audio/sorry.wav" {
		t.Errorf("expected sorry audio, got %s", res.Commands[0].AudioRef)
	}
	if !res.Ended || sess.Status != domain.CallStatusCompleted {
		t.Errorf("expected completion, status=%s", sess.Status)
	}
}

func TestResumeQueued_NotQueued(t *testing.T) {
	g := ivrGraph()
	interp := testInterpreter(g)
	sess := newSession(g)
	ctx := context.Background()

	if _, err := interp.Advance(ctx, sess, startEvent(sess.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := interp.ResumeQueued(ctx, sess, OutcomeAssigned, "agent-7"); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent for non-queued session, got %v", err)
	}
}

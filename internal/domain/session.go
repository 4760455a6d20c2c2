package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallSession — живое состояние одного звонка.
//
// Сессия создаётся на первом событии "started", мутируется
// исключительно интерпретатором (под per-call сериализацией на
// уровне engine) и уничтожается при достижении терминального
// статуса: финальная запись уходит в шину событий, из памяти
// сессия вычищается.
type CallSession struct {
	// ID — идентификатор звонка у телефонного провайдера.
	ID string `json:"id"`

	// Caller — номер звонящего.
	Caller string `json:"caller"`

	// Called — набранный номер (по нему выбран flow).
	Called string `json:"called"`

	// FlowID — текущий исполняемый flow (меняется при входе в subflow).
	FlowID uuid.UUID `json:"flow_id"`

	// Version — версия текущего flow.
	Version int `json:"version"`

	// Status — статус сессии.
	Status CallStatus `json:"status"`

	// CurrentNode — ID узла, на котором стоит сессия.
	CurrentNode string `json:"current_node"`

	// Await — ожидаемый следующий внешний триггер.
	// События, не соответствующие ожиданию, — дубликаты (no-op).
	Await Await `json:"await,omitempty"`

	// Buffer — набранные цифры текущего gather (ограничен, очищается
	// при входе в gather-узел).
	Buffer string `json:"buffer,omitempty"`

	// Retries — счётчик таймаутов ввода на текущем узле.
	Retries int `json:"retries,omitempty"`

	// Stack — стек вызовов subflow (возврат в родительский flow).
	Stack []FlowFrame `json:"stack,omitempty"`

	// QueueName — очередь, в которой стоит звонок (пока Status=QUEUED).
	QueueName string `json:"queue_name,omitempty"`

	// AgentID — назначенный оператор (после match).
	AgentID string `json:"agent_id,omitempty"`

	// EnqueuedAt — время постановки в очередь.
	EnqueuedAt time.Time `json:"enqueued_at,omitempty"`

	// CreatedAt — время создания сессии.
	CreatedAt time.Time `json:"created_at"`

	// LastEventAt — время последнего обработанного события
	// (для eviction по idle-таймауту).
	LastEventAt time.Time `json:"last_event_at"`

	// FinishedAt — время терминального перехода.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FlowFrame — кадр стека subflow.
//
// При входе в subflow-узел текущий flow и ID узла запоминаются;
// завершение вложенного flow возвращает сессию на default-ребро
// этого узла в родительском графе.
type FlowFrame struct {
	// FlowID — родительский flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Version — версия родительского flow.
	Version int `json:"version"`

	// ReturnNode — subflow-узел, на который возвращается управление.
	ReturnNode string `json:"return_node"`
}

// IsTerminated возвращает true для завершённой сессии.
func (s *CallSession) IsTerminated() bool {
	return s.Status.IsTerminal()
}

// MarkTerminated переводит сессию в терминальный статус.
// Повторный вызов — no-op: терминальные статусы поглощающие.
func (s *CallSession) MarkTerminated(status CallStatus) {
	if s.IsTerminated() {
		return
	}
	now := time.Now()
	s.Status = status
	s.Await = AwaitNone
	s.FinishedAt = &now
}

// Duration возвращает длительность звонка.
// Для незавершённой сессии — время с момента создания.
func (s *CallSession) Duration() time.Duration {
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(s.CreatedAt)
	}
	return time.Since(s.CreatedAt)
}

// Touch обновляет время последней активности.
func (s *CallSession) Touch() {
	s.LastEventAt = time.Now()
}

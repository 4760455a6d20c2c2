package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventType — тип входящего события от телефонного провайдера.
type WebhookEventType string

const (
	// EventStarted — входящий звонок начался.
	EventStarted WebhookEventType = "started"

	// EventDigits — получены DTMF цифры.
	EventDigits WebhookEventType = "digits"

	// EventRecordingComplete — проигрывание/запись завершены.
	EventRecordingComplete WebhookEventType = "recording-complete"

	// EventEnded — звонок завершён со стороны провайдера.
	EventEnded WebhookEventType = "ended"

	// EventDTMFTimeout — истёк таймаут ожидания ввода.
	EventDTMFTimeout WebhookEventType = "dtmf-timeout"
)

// IsValid возвращает true для известного типа события.
func (t WebhookEventType) IsValid() bool {
	switch t {
	case EventStarted, EventDigits, EventRecordingComplete, EventEnded, EventDTMFTimeout:
		return true
	default:
		return false
	}
}

// WebhookEvent — одно событие вебхука для живого звонка.
//
// Порядок событий одного звонка монотонен в том виде, как доставил
// провайдер; engine не переупорядочивает события, но обязан
// переживать дубликаты доставки (идемпотентный no-op).
type WebhookEvent struct {
	// CallID — идентификатор звонка у провайдера.
	CallID string `json:"call_id"`

	// Type — тип события.
	Type WebhookEventType `json:"type"`

	// Digits — цифры для type="digits".
	Digits string `json:"digits,omitempty"`

	// Caller — номер звонящего (для "started").
	Caller string `json:"caller,omitempty"`

	// Called — набранный номер (для "started").
	Called string `json:"called,omitempty"`

	// Metadata — произвольные данные провайдера.
	Metadata map[string]string `json:"metadata,omitempty"`

	// ReceivedAt — время приёма события шлюзом.
	ReceivedAt time.Time `json:"received_at"`
}

// LifecycleEventType — тип события жизненного цикла, публикуемого
// в шину для внешних наблюдателей (дашборды, логирование).
type LifecycleEventType string

const (
	// LifecycleCallStarted — сессия создана, flow начал выполняться.
	LifecycleCallStarted LifecycleEventType = "call.started"

	// LifecycleNodeExecuted — интерпретатор вошёл в узел.
	LifecycleNodeExecuted LifecycleEventType = "node.executed"

	// LifecycleQueueUpdated — изменился размер очереди.
	LifecycleQueueUpdated LifecycleEventType = "queue.updated"

	// LifecycleAgentStatus — сменился статус оператора.
	LifecycleAgentStatus LifecycleEventType = "agent.status_changed"

	// LifecycleCallCompleted — сессия достигла терминального статуса.
	LifecycleCallCompleted LifecycleEventType = "call.completed"

	// LifecycleNodeError — ошибка исполнения узла (диагностика).
	LifecycleNodeError LifecycleEventType = "node.error"
)

// LifecycleEvent — событие жизненного цикла.
//
// События одного звонка публикуются в порядке переходов состояния;
// между разными звонками порядок не гарантируется.
type LifecycleEvent struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// Type — тип события.
	Type LifecycleEventType `json:"type"`

	// CallID — звонок (пусто для agent.status_changed).
	CallID string `json:"call_id,omitempty"`

	// NodeID, NodeType — для node.executed / node.error.
	NodeID   string   `json:"node_id,omitempty"`
	NodeType NodeType `json:"node_type,omitempty"`

	// QueueName, QueueSize — для queue.updated.
	QueueName string `json:"queue_name,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`

	// AgentID, From, To — для agent.status_changed.
	AgentID string      `json:"agent_id,omitempty"`
	From    AgentStatus `json:"from,omitempty"`
	To      AgentStatus `json:"to,omitempty"`

	// DurationMs, Status — для call.completed.
	DurationMs int64      `json:"duration_ms,omitempty"`
	Status     CallStatus `json:"status,omitempty"`

	// Reason — причина для node.error.
	Reason string `json:"reason,omitempty"`

	// At — время события.
	At time.Time `json:"at"`
}

// NewLifecycleEvent создаёт событие с ID и временем.
func NewLifecycleEvent(t LifecycleEventType) LifecycleEvent {
	return LifecycleEvent{
		ID:   uuid.New(),
		Type: t,
		At:   time.Now(),
	}
}

// NodeExecuted создаёт событие входа в узел.
func NodeExecuted(callID string, node *Node) LifecycleEvent {
	ev := NewLifecycleEvent(LifecycleNodeExecuted)
	ev.CallID = callID
	ev.NodeID = node.ID
	ev.NodeType = node.Type
	return ev
}

// NodeError создаёт диагностическое событие ошибки узла.
func NodeError(callID, nodeID string, reason string) LifecycleEvent {
	ev := NewLifecycleEvent(LifecycleNodeError)
	ev.CallID = callID
	ev.NodeID = nodeID
	ev.Reason = reason
	return ev
}

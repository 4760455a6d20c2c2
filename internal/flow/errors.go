package flow

import "errors"

// Ошибки валидации графа.
var (
	// ErrNoNodes — граф не содержит узлов.
	ErrNoNodes = errors.New("flow graph has no nodes")

	// ErrNoEntry — не указан входной узел.
	ErrNoEntry = errors.New("flow graph has no entry node")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("edge references unknown node")

	// ErrUnknownNodeType — неизвестный тип узла.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrMissingEdge — у узла нет обязательного ребра.
	ErrMissingEdge = errors.New("node is missing required edge")

	// ErrBadNodeConfig — некорректная типоспецифичная конфигурация узла.
	ErrBadNodeConfig = errors.New("invalid node configuration")

	// ErrDuplicateDigit — несколько digit-рёбер с одной цифрой.
	ErrDuplicateDigit = errors.New("duplicate digit edge")
)

// Ошибки вычисления условий.
var (
	// ErrNoCondition — condition-узел без определения условия.
	ErrNoCondition = errors.New("condition node has no condition")

	// ErrUnknownCondition — неизвестный вид условия.
	ErrUnknownCondition = errors.New("unknown condition kind")

	// ErrBadCronExpr — некорректное cron-выражение часов работы.
	ErrBadCronExpr = errors.New("invalid cron expression")
)

// Ошибки исполнения.
var (
	// ErrSessionTerminated — событие для завершённой сессии
	// (логируется и отбрасывается, в состояние не попадает).
	ErrSessionTerminated = errors.New("session already terminated")

	// ErrDuplicateEvent — событие не соответствует ожидаемому
	// переходу сессии (повторная доставка): идемпотентный no-op.
	ErrDuplicateEvent = errors.New("event does not match expected transition")

	// ErrUnhandledEvent — тип события не обрабатывается интерпретатором.
	ErrUnhandledEvent = errors.New("event type not handled by interpreter")
)

// GraphError — ошибка валидации графа с контекстом узла.
type GraphError struct {
	NodeID  string // узел, где обнаружена проблема
	Field   string // поле конфигурации
	Message string // описание
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError создаёт ошибку валидации графа.
func NewGraphError(nodeID, field, message string, err error) *GraphError {
	return &GraphError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

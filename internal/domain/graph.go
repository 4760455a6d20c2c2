package domain

import (
	"time"

	"github.com/google/uuid"
)

// NodeType — тип узла в графе звонка.
//
// Закрытое множество: добавление нового типа требует расширения
// switch в flow.Interpreter и валидации в flow.Validate.
type NodeType string

const (
	// NodeTypePlay — проигрывание аудио.
	NodeTypePlay NodeType = "play"

	// NodeTypeGather — сбор DTMF цифр (фиксированная длина или терминатор).
	NodeTypeGather NodeType = "gather"

	// NodeTypeMenu — меню с выбором одной цифрой.
	NodeTypeMenu NodeType = "menu"

	// NodeTypeCondition — ветвление по данным сессии (часы работы, префикс номера).
	NodeTypeCondition NodeType = "condition"

	// NodeTypeEnqueue — постановка звонка в очередь на оператора.
	NodeTypeEnqueue NodeType = "enqueue"

	// NodeTypeTransferAgent — прямой перевод на конкретного оператора.
	NodeTypeTransferAgent NodeType = "transfer-agent"

	// NodeTypeHangup — завершение звонка (или возврат из subflow).
	NodeTypeHangup NodeType = "hangup"

	// NodeTypeSubflow — вызов вложенного flow с возвратом.
	NodeTypeSubflow NodeType = "subflow"
)

// IsValid возвращает true для известного типа узла.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypePlay, NodeTypeGather, NodeTypeMenu, NodeTypeCondition,
		NodeTypeEnqueue, NodeTypeTransferAgent, NodeTypeHangup, NodeTypeSubflow:
		return true
	default:
		return false
	}
}

// EdgeLabel — метка исходящего ребра узла.
type EdgeLabel string

const (
	// EdgeDefault — переход по умолчанию.
	EdgeDefault EdgeLabel = "default"

	// EdgeDigit — переход по набранной цифре/последовательности (Edge.Digit).
	EdgeDigit EdgeLabel = "digit"

	// EdgeTimeout — переход после исчерпания попыток ввода.
	EdgeTimeout EdgeLabel = "timeout"

	// EdgeInvalid — переход при некорректном вводе.
	EdgeInvalid EdgeLabel = "invalid"

	// EdgeOverflow — переход при переполнении очереди или таймауте ожидания.
	EdgeOverflow EdgeLabel = "overflow"

	// EdgeMatch — переход condition-узла при истинном условии.
	EdgeMatch EdgeLabel = "match"
)

// Edge — исходящее ребро узла.
type Edge struct {
	// Label — условие перехода.
	Label EdgeLabel `json:"label"`

	// Digit — цифра или последовательность для label="digit".
	Digit string `json:"digit,omitempty"`

	// To — ID целевого узла.
	To string `json:"to"`
}

// ConditionDef — определение условия для condition-узла.
//
// Условие — чистая функция над данными сессии и текущим временем,
// внешние события не потребляются.
type ConditionDef struct {
	// Kind — вид условия: "business-hours" или "caller-prefix".
	Kind string `json:"kind"`

	// Cron — cron-выражения открытых интервалов для business-hours.
	// Минутная гранулярность, например "* 9-17 * * 1-5".
	Cron []string `json:"cron,omitempty"`

	// Timezone — таймзона для business-hours (IANA, default UTC).
	Timezone string `json:"timezone,omitempty"`

	// Prefixes — префиксы номера звонящего для caller-prefix.
	Prefixes []string `json:"prefixes,omitempty"`
}

// Node — один шаг графа звонка.
//
// Конфигурация типоспецифична: для play значимы AudioRef и
// WaitForCompletion, для gather — AudioRef (prompt), MaxDigits,
// Terminator, TimeoutSec, MaxRetries, и т.д.
type Node struct {
	// ID — уникальный идентификатор узла в рамках графа.
	ID string `json:"id"`

	// Type — тип узла.
	Type NodeType `json:"type"`

	// AudioRef — ссылка на аудио (play — контент, gather/menu — prompt).
	AudioRef string `json:"audio_ref,omitempty"`

	// WaitForCompletion — play ждёт события окончания проигрывания
	// вместо немедленного перехода по default-ребру.
	WaitForCompletion bool `json:"wait_for_completion,omitempty"`

	// MaxDigits — максимум цифр для gather (0 — только терминатор).
	MaxDigits int `json:"max_digits,omitempty"`

	// Terminator — цифра-терминатор ввода для gather (обычно "#").
	Terminator string `json:"terminator,omitempty"`

	// TimeoutSec — таймаут ожидания ввода для gather/menu.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// MaxRetries — сколько раз повторять prompt после таймаута,
	// прежде чем уйти по timeout-ребру.
	MaxRetries int `json:"max_retries,omitempty"`

	// Condition — условие для condition-узла.
	Condition *ConditionDef `json:"condition,omitempty"`

	// Queue — имя очереди для enqueue-узла.
	Queue string `json:"queue,omitempty"`

	// Priority — приоритет звонка в очереди (default 0).
	Priority int `json:"priority,omitempty"`

	// Skills — требуемые навыки оператора для enqueue-узла.
	Skills []string `json:"skills,omitempty"`

	// AgentID — оператор для transfer-agent-узла.
	AgentID string `json:"agent_id,omitempty"`

	// SubflowID — flow для subflow-узла.
	SubflowID uuid.UUID `json:"subflow_id,omitempty"`

	// Edges — исходящие рёбра в порядке объявления.
	Edges []Edge `json:"edges,omitempty"`
}

// Edge возвращает первое ребро с указанной меткой.
func (n *Node) Edge(label EdgeLabel) (*Edge, bool) {
	for i := range n.Edges {
		if n.Edges[i].Label == label {
			return &n.Edges[i], true
		}
	}
	return nil, false
}

// DigitEdge возвращает digit-ребро для набранной последовательности.
func (n *Node) DigitEdge(digits string) (*Edge, bool) {
	for i := range n.Edges {
		if n.Edges[i].Label == EdgeDigit && n.Edges[i].Digit == digits {
			return &n.Edges[i], true
		}
	}
	return nil, false
}

// FlowGraph — опубликованный граф одного IVR-сценария.
//
// Граф иммутабелен: после загрузки из хранилища он разделяется
// всеми сессиями этого flow только на чтение. Валидация выполняется
// при публикации; интерпретатор обязан безопасно обрабатывать
// повреждённый граф (см. flow.Interpreter).
type FlowGraph struct {
	// FlowID — идентификатор flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Version — опубликованная версия.
	Version int `json:"version"`

	// Name — имя flow.
	Name string `json:"name,omitempty"`

	// Entry — ID единственного входного узла.
	Entry string `json:"entry"`

	// Nodes — узлы графа (nodeID → Node).
	Nodes map[string]*Node `json:"nodes"`
}

// Node возвращает узел по ID.
func (g *FlowGraph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Flow — запись flow из хранилища (метаданные без графа).
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — имя flow.
	Name string `json:"name"`

	// Number — входящий номер, на который маршрутизируется flow.
	Number string `json:"number"`

	// IsActive — флаг активности.
	IsActive bool `json:"is_active"`

	// PublishedVersion — текущая опубликованная версия (0 — нет).
	PublishedVersion int `json:"published_version"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// FlowVersion — иммутабельная версия графа flow.
//
// Редактирование создаёт новую версию; публикация переключает
// flows.published_version. Работающие сессии продолжают на той
// версии, с которой начали.
type FlowVersion struct {
	// FlowID — идентификатор flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Version — номер версии (с 1, монотонно).
	Version int `json:"version"`

	// Graph — граф этой версии.
	Graph *FlowGraph `json:"graph"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

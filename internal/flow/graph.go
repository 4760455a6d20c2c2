package flow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Kommutator/internal/domain"
)

// ParseGraph парсит FlowGraph из JSON (содержимое JSONB поля graph).
//
// Заполняет Node.ID из ключей map, если в JSON он опущен.
// Валидация выполняется отдельно через Validate.
func ParseGraph(data []byte) (*domain.FlowGraph, error) {
	var g domain.FlowGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshal flow graph: %w", err)
	}

	for id, node := range g.Nodes {
		if node == nil {
			return nil, NewGraphError(id, "", "node is null", ErrBadNodeConfig)
		}
		if node.ID == "" {
			node.ID = id
		}
		if node.ID != id {
			return nil, NewGraphError(id, "id",
				fmt.Sprintf("node ID %q does not match map key %q", node.ID, id), ErrBadNodeConfig)
		}
	}

	return &g, nil
}

// Validate выполняет полную валидацию графа.
//
// Проверяет:
// - Наличие узлов и ровно одного входного узла
// - Корректность типов узлов
// - Что все рёбра ссылаются на существующие узлы
// - Типоспецифичную конфигурацию каждого узла
//
// Валидация выполняется при публикации; интерпретатор вправе
// предполагать валидный граф, но обязан безопасно завершать сессию
// при повреждённом (см. Interpreter).
func Validate(g *domain.FlowGraph) error {
	if g == nil || len(g.Nodes) == 0 {
		return ErrNoNodes
	}

	if g.Entry == "" {
		return ErrNoEntry
	}
	if _, ok := g.Nodes[g.Entry]; !ok {
		return NewGraphError(g.Entry, "entry",
			fmt.Sprintf("entry node %q not found", g.Entry), ErrUnknownNode)
	}

	for id, node := range g.Nodes {
		if err := validateNode(g, id, node); err != nil {
			return err
		}
	}

	return nil
}

// validateNode валидирует один узел.
func validateNode(g *domain.FlowGraph, id string, node *domain.Node) error {
	if !node.Type.IsValid() {
		return NewGraphError(id, "type",
			fmt.Sprintf("unknown node type: %s", node.Type), ErrUnknownNodeType)
	}

	// Все рёбра должны вести на существующие узлы
	seenDigits := make(map[string]bool)
	for i := range node.Edges {
		edge := &node.Edges[i]

		if _, ok := g.Nodes[edge.To]; !ok {
			return NewGraphError(id, "edges",
				fmt.Sprintf("edge %q references unknown node %q", edge.Label, edge.To), ErrUnknownNode)
		}

		if edge.Label == domain.EdgeDigit {
			if edge.Digit == "" {
				return NewGraphError(id, "edges", "digit edge has empty digit", ErrBadNodeConfig)
			}
			if seenDigits[edge.Digit] {
				return NewGraphError(id, "edges",
					fmt.Sprintf("duplicate digit edge: %s", edge.Digit), ErrDuplicateDigit)
			}
			seenDigits[edge.Digit] = true
		}
	}

	return validateNodeConfig(id, node)
}

// validateNodeConfig проверяет типоспецифичную конфигурацию.
func validateNodeConfig(id string, node *domain.Node) error {
	switch node.Type {
	case domain.NodeTypePlay:
		if node.AudioRef == "" {
			return NewGraphError(id, "audio_ref", "play node has no audio_ref", ErrBadNodeConfig)
		}
		if _, ok := node.Edge(domain.EdgeDefault); !ok {
			return NewGraphError(id, "edges", "play node has no default edge", ErrMissingEdge)
		}

	case domain.NodeTypeGather:
		if node.MaxDigits <= 0 && node.Terminator == "" {
			return NewGraphError(id, "max_digits",
				"gather node needs max_digits or terminator", ErrBadNodeConfig)
		}
		// Правило длины, превышающее предел DTMF буфера,
		// невыполнимо: буфер перестаёт расти раньше
		if node.MaxDigits > maxBufferLen {
			return NewGraphError(id, "max_digits",
				fmt.Sprintf("max_digits %d exceeds buffer limit %d", node.MaxDigits, maxBufferLen),
				ErrBadNodeConfig)
		}
		if len(node.Edges) == 0 {
			return NewGraphError(id, "edges", "gather node has no edges", ErrMissingEdge)
		}

	case domain.NodeTypeMenu:
		hasDigit := false
		for i := range node.Edges {
			if node.Edges[i].Label == domain.EdgeDigit {
				if len(node.Edges[i].Digit) != 1 {
					return NewGraphError(id, "edges",
						fmt.Sprintf("menu digit edge must be a single digit, got %q", node.Edges[i].Digit),
						ErrBadNodeConfig)
				}
				hasDigit = true
			}
		}
		if !hasDigit {
			return NewGraphError(id, "edges", "menu node has no digit edges", ErrMissingEdge)
		}

	case domain.NodeTypeCondition:
		if node.Condition == nil {
			return NewGraphError(id, "condition", "condition node has no condition", ErrNoCondition)
		}
		if node.Condition.Kind != ConditionBusinessHours && node.Condition.Kind != ConditionCallerPrefix {
			return NewGraphError(id, "condition",
				fmt.Sprintf("unknown condition kind: %s", node.Condition.Kind), ErrUnknownCondition)
		}
		if node.Condition.Kind == ConditionBusinessHours {
			for _, expr := range node.Condition.Cron {
				if err := ValidateCronExpr(expr); err != nil {
					return NewGraphError(id, "condition", err.Error(), ErrBadCronExpr)
				}
			}
		}
		if _, ok := node.Edge(domain.EdgeMatch); !ok {
			return NewGraphError(id, "edges", "condition node has no match edge", ErrMissingEdge)
		}
		if _, ok := node.Edge(domain.EdgeDefault); !ok {
			return NewGraphError(id, "edges", "condition node has no default edge", ErrMissingEdge)
		}

	case domain.NodeTypeEnqueue:
		if node.Queue == "" {
			return NewGraphError(id, "queue", "enqueue node has no queue", ErrBadNodeConfig)
		}

	case domain.NodeTypeTransferAgent:
		if node.AgentID == "" {
			return NewGraphError(id, "agent_id", "transfer-agent node has no agent_id", ErrBadNodeConfig)
		}

	case domain.NodeTypeSubflow:
		if node.SubflowID == uuid.Nil {
			return NewGraphError(id, "subflow_id", "subflow node has no subflow_id", ErrBadNodeConfig)
		}
		if _, ok := node.Edge(domain.EdgeDefault); !ok {
			return NewGraphError(id, "edges", "subflow node has no default edge", ErrMissingEdge)
		}

	case domain.NodeTypeHangup:
		// Конфигурация не требуется
	}

	return nil
}

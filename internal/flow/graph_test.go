package flow

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Kommutator/internal/domain"
)

func validGraph() *domain.FlowGraph {
	return &domain.FlowGraph{
		FlowID:  uuid.New(),
		Version: 1,
		Entry:   "welcome",
		Nodes: map[string]*domain.Node{
			"welcome": {
				ID:       "welcome",
				Type:     domain.NodeTypePlay,
				AudioRef: "audio/welcome.wav",
				Edges:    []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}},
			},
			"bye": {ID: "bye", Type: domain.NodeTypeHangup},
		},
	}
}

func TestValidate_ValidGraph(t *testing.T) {
	if err := Validate(validGraph()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_EmptyGraph(t *testing.T) {
	if err := Validate(&domain.FlowGraph{}); !errors.Is(err, ErrNoNodes) {
		t.Errorf("expected ErrNoNodes, got %v", err)
	}
	if err := Validate(nil); !errors.Is(err, ErrNoNodes) {
		t.Errorf("expected ErrNoNodes for nil graph, got %v", err)
	}
}

func TestValidate_MissingEntry(t *testing.T) {
	g := validGraph()
	g.Entry = ""
	if err := Validate(g); !errors.Is(err, ErrNoEntry) {
		t.Errorf("expected ErrNoEntry, got %v", err)
	}

	g = validGraph()
	g.Entry = "ghost"
	if err := Validate(g); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode for missing entry, got %v", err)
	}
}

func TestValidate_DanglingEdge(t *testing.T) {
	g := validGraph()
	g.Nodes["welcome"].Edges[0].To = "ghost"

	err := Validate(g)
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}

	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatal("expected GraphError")
	}
	if ge.NodeID != "welcome" {
		t.Errorf("expected node welcome in error, got %s", ge.NodeID)
	}
}

func TestValidate_UnknownNodeType(t *testing.T) {
	g := validGraph()
	g.Nodes["welcome"].Type = "teleport"
	if err := Validate(g); !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}
}

func TestValidate_PlayWithoutAudio(t *testing.T) {
	g := validGraph()
	g.Nodes["welcome"].AudioRef = ""
	if err := Validate(g); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig, got %v", err)
	}
}

func TestValidate_PlayWithoutDefaultEdge(t *testing.T) {
	g := validGraph()
	g.Nodes["welcome"].Edges = nil
	if err := Validate(g); !errors.Is(err, ErrMissingEdge) {
		t.Errorf("expected ErrMissingEdge, got %v", err)
	}
}

func TestValidate_MenuNodes(t *testing.T) {
	g := validGraph()
	g.Nodes["menu"] = &domain.Node{
		ID:       "menu",
		Type:     domain.NodeTypeMenu,
		AudioRef: "audio/menu.wav",
		Edges: []domain.Edge{
			{Label: domain.EdgeDigit, Digit: "1", To: "bye"},
			{Label: domain.EdgeDigit, Digit: "2", To: "bye"},
		},
	}
	if err := Validate(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Дубликат цифры
	g.Nodes["menu"].Edges[1].Digit = "1"
	if err := Validate(g); !errors.Is(err, ErrDuplicateDigit) {
		t.Errorf("expected ErrDuplicateDigit, got %v", err)
	}

	// Меню требует одну цифру на ребро
	g.Nodes["menu"].Edges[1].Digit = "12"
	if err := Validate(g); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig for multi-digit menu edge, got %v", err)
	}

	// Меню без digit-рёбер
	g.Nodes["menu"].Edges = []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}}
	if err := Validate(g); !errors.Is(err, ErrMissingEdge) {
		t.Errorf("expected ErrMissingEdge for menu without digits, got %v", err)
	}
}

func TestValidate_GatherNeedsCompletionRule(t *testing.T) {
	g := validGraph()
	g.Nodes["gather"] = &domain.Node{
		ID:    "gather",
		Type:  domain.NodeTypeGather,
		Edges: []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}},
	}
	if err := Validate(g); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig, got %v", err)
	}

	g.Nodes["gather"].Terminator = "#"
	if err := Validate(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_GatherMaxDigitsWithinBufferLimit(t *testing.T) {
	g := validGraph()
	g.Nodes["gather"] = &domain.Node{
		ID:        "gather",
		Type:      domain.NodeTypeGather,
		MaxDigits: maxBufferLen + 1,
		Edges:     []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}},
	}

	// Правило длины за пределом буфера невыполнимо: буфер перестаёт
	// расти раньше, и узел выходит только по таймаутам
	if err := Validate(g); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig, got %v", err)
	}

	g.Nodes["gather"].MaxDigits = maxBufferLen
	if err := Validate(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ConditionNode(t *testing.T) {
	g := validGraph()
	g.Nodes["cond"] = &domain.Node{
		ID:   "cond",
		Type: domain.NodeTypeCondition,
		Edges: []domain.Edge{
			{Label: domain.EdgeMatch, To: "bye"},
			{Label: domain.EdgeDefault, To: "bye"},
		},
	}
	if err := Validate(g); !errors.Is(err, ErrNoCondition) {
		t.Errorf("expected ErrNoCondition, got %v", err)
	}

	g.Nodes["cond"].Condition = &domain.ConditionDef{Kind: "moon-phase"}
	if err := Validate(g); !errors.Is(err, ErrUnknownCondition) {
		t.Errorf("expected ErrUnknownCondition, got %v", err)
	}

	g.Nodes["cond"].Condition = &domain.ConditionDef{
		Kind: ConditionBusinessHours,
		Cron: []string{"not a cron"},
	}
	if err := Validate(g); !errors.Is(err, ErrBadCronExpr) {
		t.Errorf("expected ErrBadCronExpr, got %v", err)
	}

	g.Nodes["cond"].Condition = &domain.ConditionDef{
		Kind: ConditionBusinessHours,
		Cron: []string{"* 9-17 * * 1-5"},
	}
	if err := Validate(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_EnqueueNeedsQueue(t *testing.T) {
	g := validGraph()
	g.Nodes["q"] = &domain.Node{ID: "q", Type: domain.NodeTypeEnqueue}
	if err := Validate(g); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig, got %v", err)
	}
}

func TestValidate_SubflowNeedsTarget(t *testing.T) {
	g := validGraph()
	g.Nodes["sub"] = &domain.Node{
		ID:    "sub",
		Type:  domain.NodeTypeSubflow,
		Edges: []domain.Edge{{Label: domain.EdgeDefault, To: "bye"}},
	}
	if err := Validate(g); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig, got %v", err)
	}

	g.Nodes["sub"].SubflowID = uuid.New()
	if err := Validate(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseGraph_FillsNodeIDs(t *testing.T) {
	data := []byte(`{
		"entry": "a",
		"nodes": {
			"a": {"type": "play", "audio_ref": "audio/a.wav", "edges": [{"label": "default", "to": "b"}]},
			"b": {"type": "hangup"}
		}
	}`)

	g, err := ParseGraph(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Nodes["a"].ID != "a" || g.Nodes["b"].ID != "b" {
		t.Error("node IDs should be filled from map keys")
	}
	if err := Validate(g); err != nil {
		t.Errorf("parsed graph should validate: %v", err)
	}
}

func TestParseGraph_IDMismatch(t *testing.T) {
	data := []byte(`{"entry": "a", "nodes": {"a": {"id": "other", "type": "hangup"}}}`)
	if _, err := ParseGraph(data); !errors.Is(err, ErrBadNodeConfig) {
		t.Errorf("expected ErrBadNodeConfig, got %v", err)
	}
}

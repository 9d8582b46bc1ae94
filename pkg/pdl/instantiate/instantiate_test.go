package instantiate

import (
	"testing"

	"github.com/prost-planner/rddlc/internal/inputmodel"
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
)

// buildTable declares a single "cell" type with the given objects and
// returns the table, ready for Run.
func buildTable(t *testing.T, objects ...string) *symtab.Table {
	t.Helper()
	tab := symtab.NewTable()
	typ, err := tab.DeclareType("cell", nil)
	if err != nil {
		t.Fatalf("DeclareType: %v", err)
	}
	for _, o := range objects {
		if _, err := tab.DeclareObject(o, typ); err != nil {
			t.Fatalf("DeclareObject(%s): %v", o, err)
		}
	}
	return tab
}

func varNode(name string, args ...*inputmodel.FormulaNode) *inputmodel.FormulaNode {
	return &inputmodel.FormulaNode{Op: "var", Name: name, Args: args}
}

func paramNode(name string) *inputmodel.FormulaNode {
	return &inputmodel.FormulaNode{Op: "param", Name: name}
}

func constNode(v float64) *inputmodel.FormulaNode {
	return &inputmodel.FormulaNode{Op: "const", Const: v}
}

func TestRunGroundsSimpleBooleanCPF(t *testing.T) {
	tab := buildTable(t, "c1", "c2")
	domain := &inputmodel.Domain{
		Name: "test",
		Types: []inputmodel.TypeDecl{
			{Name: "cell", Objects: []string{"c1", "c2"}},
		},
		Variables: []inputmodel.VariableDecl{
			{Name: "open", Kind: inputmodel.KindStateFluent, ParamTypes: []string{"cell"}, ValueType: "bool", InitialValue: 0},
		},
		CPFs: []inputmodel.CPFDecl{
			{Head: "open", HeadParams: []string{"?c"}, Formula: varNode("open", paramNode("?c"))},
		},
		Reward: constNode(0),
		Horizon: 10, Discount: 1.0,
	}

	task, err := Run(domain, tab)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(task.StateFluents) != 2 {
		t.Fatalf("expected 2 grounded state fluents, got %d", len(task.StateFluents))
	}
	if task.StateFluents[0].Name != "open(c1)" || task.StateFluents[1].Name != "open(c2)" {
		t.Errorf("expected lexicographic ordering open(c1), open(c2); got %s, %s",
			task.StateFluents[0].Name, task.StateFluents[1].Name)
	}
	for i, cpf := range task.CPFs {
		if cpf.Formula.Kind != expr.KindStateFluentRef || cpf.Formula.VarIndex != i {
			t.Errorf("CPF %d: expected identity self-reference, got %v", i, cpf.Formula)
		}
		if cpf.Probabilistic {
			t.Errorf("CPF %d: expected deterministic", i)
		}
	}
	if !task.DeterministicTask {
		t.Errorf("expected DeterministicTask true")
	}
}

func TestRunAssignsCanonicalLexicographicIndices(t *testing.T) {
	tab := buildTable(t, "b", "a")
	domain := &inputmodel.Domain{
		Name:  "test",
		Types: []inputmodel.TypeDecl{{Name: "cell", Objects: []string{"b", "a"}}},
		Variables: []inputmodel.VariableDecl{
			{Name: "open", Kind: inputmodel.KindStateFluent, ParamTypes: []string{"cell"}, ValueType: "bool"},
		},
		CPFs: []inputmodel.CPFDecl{
			{Head: "open", HeadParams: []string{"?c"}, Formula: varNode("open", paramNode("?c"))},
		},
		Reward: constNode(0),
	}
	task, err := Run(domain, tab)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Declaration order is b, a; canonical index order must be lexicographic
	// by full name: open(a) before open(b), regardless of declaration order.
	if task.StateFluents[0].Name != "open(a)" || task.StateFluents[1].Name != "open(b)" {
		t.Errorf("expected open(a), open(b); got %s, %s", task.StateFluents[0].Name, task.StateFluents[1].Name)
	}
}

func TestRunRecognizesConcurrencyBound(t *testing.T) {
	tab := buildTable(t, "c1", "c2")
	sumNode := &inputmodel.FormulaNode{
		Op:      "sum",
		Binders: []inputmodel.BinderDecl{{Param: "?c", Type: "cell"}},
		Body:    varNode("push", paramNode("?c")),
	}
	precondition := &inputmodel.FormulaNode{Op: "<=", Args: []*inputmodel.FormulaNode{sumNode, constNode(1)}}
	domain := &inputmodel.Domain{
		Name:  "test",
		Types: []inputmodel.TypeDecl{{Name: "cell", Objects: []string{"c1", "c2"}}},
		Variables: []inputmodel.VariableDecl{
			{Name: "open", Kind: inputmodel.KindStateFluent, ParamTypes: []string{"cell"}, ValueType: "bool"},
			{Name: "push", Kind: inputmodel.KindActionFluent, ParamTypes: []string{"cell"}, ValueType: "bool"},
		},
		CPFs: []inputmodel.CPFDecl{
			{Head: "open", HeadParams: []string{"?c"}, Formula: varNode("open", paramNode("?c"))},
		},
		Reward:        constNode(0),
		Preconditions: []*inputmodel.FormulaNode{precondition},
	}
	task, err := Run(domain, tab)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if task.MaxConcurrent != 1 {
		t.Errorf("expected MaxConcurrent 1, got %d", task.MaxConcurrent)
	}
	if len(task.Preconditions) != 0 {
		t.Errorf("expected the concurrency precondition to be consumed, got %d remaining", len(task.Preconditions))
	}
}

func TestRunDefaultsConcurrencyToActionCount(t *testing.T) {
	tab := buildTable(t, "c1", "c2")
	domain := &inputmodel.Domain{
		Name:  "test",
		Types: []inputmodel.TypeDecl{{Name: "cell", Objects: []string{"c1", "c2"}}},
		Variables: []inputmodel.VariableDecl{
			{Name: "open", Kind: inputmodel.KindStateFluent, ParamTypes: []string{"cell"}, ValueType: "bool"},
			{Name: "push", Kind: inputmodel.KindActionFluent, ParamTypes: []string{"cell"}, ValueType: "bool"},
		},
		CPFs: []inputmodel.CPFDecl{
			{Head: "open", HeadParams: []string{"?c"}, Formula: varNode("open", paramNode("?c"))},
		},
		Reward: constNode(0),
	}
	task, err := Run(domain, tab)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if task.MaxConcurrent != 2 {
		t.Errorf("expected MaxConcurrent clamped to action count 2, got %d", task.MaxConcurrent)
	}
}

func TestRunRejectsDuplicateCPF(t *testing.T) {
	tab := buildTable(t, "c1")
	domain := &inputmodel.Domain{
		Name:  "test",
		Types: []inputmodel.TypeDecl{{Name: "cell", Objects: []string{"c1"}}},
		Variables: []inputmodel.VariableDecl{
			{Name: "open", Kind: inputmodel.KindStateFluent, ParamTypes: []string{"cell"}, ValueType: "bool"},
		},
		CPFs: []inputmodel.CPFDecl{
			{Head: "open", HeadParams: []string{"?c"}, Formula: varNode("open", paramNode("?c"))},
			{Head: "open", HeadParams: []string{"?c"}, Formula: varNode("open", paramNode("?c"))},
		},
		Reward: constNode(0),
	}
	if _, err := Run(domain, tab); err == nil {
		t.Fatalf("expected an error for duplicate CPF definitions")
	}
}

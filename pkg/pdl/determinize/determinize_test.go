package determinize

import (
	"testing"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

func TestRunBernoulliBecomesThresholdComparison(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	sf := &task.StateFluent{Index: 0, Name: "open", InitialValue: 0}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.CPFs = []*task.CPF{{
		Head:          sf,
		Formula:       expr.Bernoulli(expr.Constant(0.7)),
		Probabilistic: true,
	}}

	if err := Run(tk); err != nil {
		t.Fatalf("Run: %v", err)
	}
	det := tk.CPFs[0].Determinization
	if det == nil {
		t.Fatalf("expected Determinization to be set")
	}
	// 0.5 <= 0.7 simplifies to the constant 1.
	if v, ok := expr.IsConstant(det); !ok || v != 1 {
		t.Errorf("expected constant 1 (0.5 <= 0.7), got %v", det)
	}
}

func TestRunDiscretePicksMaxProbabilityBranch(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	sf := &task.StateFluent{Index: 0, Name: "color", InitialValue: 0}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.CPFs = []*task.CPF{{
		Head: sf,
		Formula: expr.Discrete([]expr.DiscreteBranch{
			{Value: expr.Constant(0), Prob: expr.Constant(0.2)},
			{Value: expr.Constant(1), Prob: expr.Constant(0.7)},
			{Value: expr.Constant(2), Prob: expr.Constant(0.1)},
		}),
		Probabilistic: true,
	}}

	if err := Run(tk); err != nil {
		t.Fatalf("Run: %v", err)
	}
	det := tk.CPFs[0].Determinization
	if v, ok := expr.IsConstant(det); !ok || v != 1 {
		t.Errorf("expected constant 1 (the max-probability branch's value), got %v", det)
	}
}

func TestRunRejectsNestedConditionalProbability(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	sf := &task.StateFluent{Index: 0, Name: "x", InitialValue: 0}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.CPFs = []*task.CPF{{
		Head: sf,
		Formula: expr.Discrete([]expr.DiscreteBranch{
			{Value: expr.Constant(0), Prob: expr.Bernoulli(expr.Constant(0.5))},
		}),
		Probabilistic: true,
	}}

	if err := Run(tk); err == nil {
		t.Fatalf("expected an unsupported-diagnostic error for a conditional-distribution probability")
	}
}

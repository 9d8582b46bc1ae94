package simplify

import (
	"testing"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

func TestSimplifyOnceEliminatesCPFCollapsingToInitialValue(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	sf := &task.StateFluent{Index: 0, Name: "dead", InitialValue: 0}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.CPFs = []*task.CPF{{Head: sf, Formula: expr.Constant(0)}}

	changed := simplifyOnce(tk)
	if !changed {
		t.Fatalf("expected simplifyOnce to report a change")
	}
	if len(tk.StateFluents) != 0 || len(tk.CPFs) != 0 {
		t.Errorf("expected the dead fluent and its CPF to be removed, got %d/%d", len(tk.StateFluents), len(tk.CPFs))
	}
}

func TestSimplifyOnceSplitsConjunctivePreconditions(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	a := &task.ActionFluent{Index: 0, Name: "a", Domain: expr.NewDomain(0, 1)}
	b := &task.ActionFluent{Index: 1, Name: "b", Domain: expr.NewDomain(0, 1)}
	tk.ActionFluents = []*task.ActionFluent{a, b}
	formula := expr.NAry(expr.KindConjunction, expr.ActionFluentRef(0, "a"), expr.ActionFluentRef(1, "b"))
	tk.Preconditions = []*task.ActionPrecondition{{Formula: formula, Kind: task.PreconditionStateInvariant}}

	simplifyOnce(tk)
	if len(tk.Preconditions) != 2 {
		t.Fatalf("expected the conjunction split into 2 preconditions, got %d", len(tk.Preconditions))
	}
}

func TestRemoveInapplicableActionsDropsNegatedFluent(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	a := &task.ActionFluent{Index: 0, Name: "a", Domain: expr.NewDomain(0, 1)}
	b := &task.ActionFluent{Index: 1, Name: "b", Domain: expr.NewDomain(0, 1)}
	tk.ActionFluents = []*task.ActionFluent{a, b}
	tk.Preconditions = []*task.ActionPrecondition{{
		Formula: expr.Unary(expr.KindNegation, expr.ActionFluentRef(0, "a")),
		Kind:    task.PreconditionStateInvariant,
	}}
	tk.CPFs = []*task.CPF{} // b survives with no CPF referencing it, irrelevant to this subphase

	changed := removeInapplicableActions(tk)
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(tk.ActionFluents) != 1 || tk.ActionFluents[0].Name != "b" {
		t.Fatalf("expected only 'b' to survive, reindexed to 0, got %+v", tk.ActionFluents)
	}
	if tk.ActionFluents[0].Index != 0 {
		t.Errorf("expected surviving fluent reindexed to 0, got %d", tk.ActionFluents[0].Index)
	}
	if len(tk.Preconditions) != 0 {
		t.Errorf("expected the subsumed precondition to be dropped")
	}
}

func TestRemoveIrrelevantActionsDropsUnreferencedFluent(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	used := &task.ActionFluent{Index: 0, Name: "used", Domain: expr.NewDomain(0, 1)}
	unused := &task.ActionFluent{Index: 1, Name: "unused", Domain: expr.NewDomain(0, 1)}
	tk.ActionFluents = []*task.ActionFluent{used, unused}
	sf := &task.StateFluent{Index: 0, Name: "c", InitialValue: 0}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.CPFs = []*task.CPF{{Head: sf, Formula: expr.ActionFluentRef(0, "used")}}

	changed := removeIrrelevantActions(tk)
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(tk.ActionFluents) != 1 || tk.ActionFluents[0].Name != "used" {
		t.Fatalf("expected only 'used' to survive, got %+v", tk.ActionFluents)
	}
}

func TestEnumerateDefaultRespectsConcurrencyBound(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	a := &task.ActionFluent{Index: 0, Name: "a", Domain: expr.NewDomain(0, 1)}
	b := &task.ActionFluent{Index: 1, Name: "b", Domain: expr.NewDomain(0, 1)}
	tk.ActionFluents = []*task.ActionFluent{a, b}
	tk.MaxConcurrent = 1

	removed, err := enumerateActions(tk, DisciplineDefault)
	if err != nil {
		t.Fatalf("enumerateActions: %v", err)
	}
	if removed {
		t.Fatalf("expected no fluent removal (both used across the legal states)")
	}
	if len(tk.ActionStates) != 3 {
		t.Fatalf("expected 3 legal states ({0,0},{1,0},{0,1}) under concurrency 1, got %d", len(tk.ActionStates))
	}
	for _, as := range tk.ActionStates {
		active := 0
		for _, v := range as.Values {
			if v != 0 {
				active++
			}
		}
		if active > 1 {
			t.Errorf("expected at most 1 active fluent per state, got %v", as.Values)
		}
	}
}

// TestRunSynthesizesFDRForMutexPair reproduces §8's "mutex pair via
// precondition" scenario: two Boolean action fluents a, b, precondition
// ¬(a ∧ b), concurrency 2. Expected: the Mutex Detector finds {a,b} mutex,
// FDR synthesis collapses them into one 3-valued fluent, and exactly 3
// ActionStates survive enumeration.
func TestRunSynthesizesFDRForMutexPair(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	a := &task.ActionFluent{Index: 0, Name: "a", Domain: expr.NewDomain(0, 1)}
	b := &task.ActionFluent{Index: 1, Name: "b", Domain: expr.NewDomain(0, 1)}
	tk.ActionFluents = []*task.ActionFluent{a, b}
	sf := &task.StateFluent{Index: 0, Name: "c", InitialValue: 0, Domain: expr.NewDomain(0, 1)}
	tk.StateFluents = []*task.StateFluent{sf}
	formula := expr.IfThenElse(
		expr.ActionFluentRef(0, "a"),
		expr.Constant(1),
		expr.IfThenElse(expr.ActionFluentRef(1, "b"), expr.Constant(0), expr.StateFluentRef(0, "c")),
	)
	tk.CPFs = []*task.CPF{{Head: sf, Formula: formula}}
	notBoth := expr.Unary(expr.KindNegation,
		expr.NAry(expr.KindConjunction, expr.ActionFluentRef(0, "a"), expr.ActionFluentRef(1, "b")))
	tk.Preconditions = []*task.ActionPrecondition{{Formula: notBoth, Kind: task.PreconditionStateInvariant}}
	tk.Reward = &task.Reward{Formula: expr.Constant(0)}
	tk.MaxConcurrent = 2
	tk.Horizon = 3

	if _, err := Run(tk, Options{SynthesizeFDR: true, Enumeration: DisciplineDefault}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(tk.ActionFluents) != 1 || !tk.ActionFluents[0].IsFDR {
		t.Fatalf("expected a and b collapsed into a single FDR fluent, got %+v", tk.ActionFluents)
	}
	if len(tk.ActionStates) != 3 {
		t.Errorf("expected exactly 3 legal ActionStates, got %d", len(tk.ActionStates))
	}
}

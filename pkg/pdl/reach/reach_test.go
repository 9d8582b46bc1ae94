package reach

import (
	"testing"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// TestRunFixedPointInFourSteps builds a single counter-like state fluent
// whose CPF is `counter' = counter + 1`, so the reachable domain grows by
// one value per step and never settles on its own; the horizon of 4 stops
// the loop after 4 steps with domain {0..4}, matching §8's "reachability
// fixed point in 4 steps" scenario.
func TestRunFixedPointInFourSteps(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	sf := &task.StateFluent{Index: 0, Name: "counter", InitialValue: 0, Domain: expr.NewDomain(0)}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.ActionFluents = nil
	tk.Horizon = 10

	// counter' = counter + 1, capped implicitly by the horizon bound (no
	// explicit cap formula needed since the loop stops growing once the
	// horizon is spent or the analyzer can prove no further growth).
	formula := expr.NAry(expr.KindAddition, expr.StateFluentRef(0, "counter"), expr.Constant(1))
	tk.CPFs = []*task.CPF{{Head: sf, Formula: formula}}
	tk.Horizon = 4

	steps, err := Run(tk)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if steps != 4 {
		t.Errorf("expected 4 steps, got %d", steps)
	}
	want := expr.NewDomain(0, 1, 2, 3, 4)
	if !tk.CPFs[0].Domain.Equal(want) {
		t.Errorf("expected domain %v, got %v", want, tk.CPFs[0].Domain)
	}
}

func TestRunConvergesWhenNoGrowth(t *testing.T) {
	tab := symtab.NewTable()
	tk := task.New("t", tab)
	sf := &task.StateFluent{Index: 0, Name: "flag", InitialValue: 1, Domain: expr.NewDomain(0, 1)}
	tk.StateFluents = []*task.StateFluent{sf}
	tk.Horizon = 100

	// flag' = flag (identity): the reachable set never grows past {1}.
	formula := expr.StateFluentRef(0, "flag")
	tk.CPFs = []*task.CPF{{Head: sf, Formula: formula}}

	steps, err := Run(tk)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if steps != 1 {
		t.Errorf("expected convergence after 1 step, got %d", steps)
	}
	want := expr.NewDomain(0, 1)
	if !tk.CPFs[0].Domain.Equal(want) {
		t.Errorf("expected domain %v (gap-filled prefix), got %v", want, tk.CPFs[0].Domain)
	}
}

func TestFillGapsProducesContiguousPrefix(t *testing.T) {
	got := fillGaps(expr.NewDomain(0, 3))
	want := expr.NewDomain(0, 1, 2, 3)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

package simplify

import (
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// finalizeActionStates implements §4.3's post-fixed-point finalization:
// assign each ActionState's index (already its enumeration position, kept
// here for clarity after any later reordering), and precompute the
// preconditions that could possibly be relevant to it — one that contains
// an arithmetic function, or references a negatively-depended action
// variable the state activates, or references a positively-depended action
// variable the state does not activate.
func finalizeActionStates(t *task.Task) {
	depsByPrecondition := make([]*expr.DependencySet, len(t.Preconditions))
	for i, p := range t.Preconditions {
		deps := expr.NewDependencySet()
		expr.CollectInitialInfo(p.Formula, 1, deps)
		depsByPrecondition[i] = deps
		p.IsDynamic = len(deps.DependentState) > 0
	}

	for i, as := range t.ActionStates {
		as.Index = i
		active := make(map[int]bool, len(as.ActiveFluents))
		for _, idx := range as.ActiveFluents {
			active[idx] = true
		}

		var relevant []int
		for pi, deps := range depsByPrecondition {
			if deps.HasArithmetic {
				relevant = append(relevant, pi)
				continue
			}
			matched := false
			for idx := range deps.NegativeAction {
				if active[idx] {
					matched = true
					break
				}
			}
			if !matched {
				for idx := range deps.PositiveAction {
					if !active[idx] {
						matched = true
						break
					}
				}
			}
			if matched {
				relevant = append(relevant, pi)
			}
		}
		as.RelevantPreconditions = relevant
	}
}

// Package reach implements the Reachability Analyser (§4.4): a step-bounded
// Minkowski-style fixed point over each StateFluent's reachable value set,
// using expr.CalculateDomain to advance every CPF under a representative
// action per action-equivalence class.
package reach

import (
	"fmt"
	"sort"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// actionClasses partitions t.ActionStates into equivalence classes per CPF:
// two ActionStates are equivalent for a given CPF iff they agree on every
// action variable that CPF depends on. Returns one representative
// ActionState's Values per class.
func actionClasses(t *task.Task, dependentActions map[int]struct{}) [][]float64 {
	if len(t.ActionStates) == 0 {
		// No enumerated ActionStates yet (reachability can run before
		// action enumeration settles, if the Simplifier's fixed point
		// orders phases that way): fall back to the all-zero action as the
		// sole representative.
		return [][]float64{make([]float64, len(t.ActionFluents))}
	}
	indices := make([]int, 0, len(dependentActions))
	for idx := range dependentActions {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	seen := make(map[string]bool)
	var reps [][]float64
	key := func(values []float64) string {
		s := ""
		for _, idx := range indices {
			v := 0.0
			if idx < len(values) {
				v = values[idx]
			}
			s += fmt.Sprintf("%d:%g,", idx, v)
		}
		return s
	}
	for _, as := range t.ActionStates {
		k := key(as.Values)
		if seen[k] {
			continue
		}
		seen[k] = true
		reps = append(reps, as.Values)
	}
	return reps
}

// Run advances every StateFluent's reachable domain from {initial value} to
// its fixed point (or until horizon steps have been applied, whichever
// comes first), per §4.4. It mutates cpf.Domain and t.Reward.Domain, and
// returns the number of steps actually applied.
func Run(t *task.Task) (int, error) {
	reachable := make([]expr.Domain, len(t.StateFluents))
	for i, sf := range t.StateFluents {
		reachable[i] = expr.NewDomain(sf.InitialValue)
	}

	depActions := make([]map[int]struct{}, len(t.CPFs))
	for i, cpf := range t.CPFs {
		formula := cpf.Formula
		if cpf.Probabilistic {
			if cpf.Determinization == nil {
				// Reachability needs a deterministic view; callers are
				// expected to have run the Determinizer first. Treat an
				// absent determinization defensively as "depends on
				// everything the formula touches" rather than erroring,
				// since a future Simplifier iteration will fill it in.
				formula = cpf.Formula
			} else {
				formula = cpf.Determinization
			}
		}
		deps := expr.NewDependencySet()
		expr.CollectInitialInfo(formula, 1, deps)
		depActions[i] = deps.DependentActionFluents()
	}

	nonFluentVals := make([]float64, len(t.NonFluents))
	for i, nf := range t.NonFluents {
		nonFluentVals[i] = nf.Value
	}

	steps := 0
	for t.Horizon <= 0 || steps < t.Horizon {
		steps++
		grew := false
		next := make([]expr.Domain, len(reachable))
		copy(next, reachable)

		for i, cpf := range t.CPFs {
			formula := cpf.Formula
			if cpf.Probabilistic && cpf.Determinization != nil {
				formula = cpf.Determinization
			}
			reps := actionClasses(t, depActions[i])
			var warnings []expr.DomainWarning
			var union expr.Domain
			for _, action := range reps {
				d, err := expr.CalculateDomain(formula, reachable, action, nonFluentVals, &warnings)
				if err != nil {
					return steps, err
				}
				union = union.Union(d)
			}
			merged := next[i].Union(union)
			if len(merged) != len(next[i]) {
				next[i] = merged
				grew = true
			}
		}

		reachable = next
		if !grew {
			break
		}
	}

	for i, cpf := range t.CPFs {
		cpf.Domain = fillGaps(reachable[i])
	}

	if t.Reward != nil && t.Reward.Formula != nil {
		var warnings []expr.DomainWarning
		d, err := expr.CalculateDomain(t.Reward.Formula, reachable, make([]float64, len(t.ActionFluents)), nonFluentVals, &warnings)
		if err != nil {
			return steps, err
		}
		t.Reward.Domain = d
		t.Reward.Invalidate()
	}

	return steps, nil
}

// fillGaps rounds out d to a contiguous prefix of the nonnegative integers
// up to d's maximum (I3), the final step of §4.4: "fill each set's gaps up
// to its maximum".
func fillGaps(d expr.Domain) expr.Domain {
	if len(d) == 0 {
		return d
	}
	max := d.Max()
	full := make([]float64, 0, int(max)+1)
	for v := 0.0; v <= max; v++ {
		full = append(full, v)
	}
	return expr.NewDomain(full...)
}

package simplify

import (
	"fmt"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// enumerateActions implements subphase (e): enumerate every legal
// ActionState respecting the concurrency bound and the state-independent
// preconditions, using the selected discipline. Any action fluent that is
// zero in every legal ActionState is then deleted and replaced by 0;
// Returns whether any such deletion happened (forcing a restart to (a)).
func enumerateActions(t *task.Task, discipline Discipline) (bool, error) {
	stateIndependent := stateIndependentPreconditions(t)

	var legal [][]float64
	switch discipline {
	case DisciplineIPC2018:
		legal = enumerateIPC2018(t, stateIndependent)
	default:
		legal = enumerateDefault(t, stateIndependent)
	}
	if len(legal) == 0 {
		return false, fmt.Errorf("simplify: no legal action state survives enumeration")
	}

	used := make(map[int]bool)
	for _, values := range legal {
		for idx, v := range values {
			if v != 0 {
				used[idx] = true
			}
		}
	}
	var unused []int
	for _, af := range t.ActionFluents {
		if !used[af.Index] {
			unused = append(unused, af.Index)
		}
	}
	if len(unused) > 0 {
		eliminateActionFluents(t, unused)
		return true, nil
	}

	t.ActionStates = make([]*task.ActionState, len(legal))
	for i, values := range legal {
		var active []int
		for idx, v := range values {
			if v != 0 {
				active = append(active, idx)
			}
		}
		t.ActionStates[i] = &task.ActionState{Index: i, Values: values, ActiveFluents: active}
	}
	return false, nil
}

// stateIndependentPreconditions returns the preconditions an ActionState's
// legality can be decided from without a concrete state: those the
// Simplifier has classified state-invariant, plus statically-forbidden
// single-action bans.
func stateIndependentPreconditions(t *task.Task) []*task.ActionPrecondition {
	var out []*task.ActionPrecondition
	for _, p := range t.Preconditions {
		if p.Kind == task.PreconditionStateInvariant || p.Kind == task.PreconditionStaticallyForbidden {
			out = append(out, p)
		}
	}
	return out
}

func passesPreconditions(t *task.Task, preconditions []*task.ActionPrecondition, values []float64) bool {
	nonFluentVals := make([]float64, len(t.NonFluents))
	for i, nf := range t.NonFluents {
		nonFluentVals[i] = nf.Value
	}
	env := &expr.Env{State: t.InitialState(), Action: values, NonFluents: nonFluentVals}
	for _, p := range preconditions {
		if p.Kind == task.PreconditionStaticallyForbidden {
			if values[p.ForbiddenActionIndex] != 0 {
				return false
			}
			continue
		}
		v, err := expr.Evaluate(p.Formula, env)
		if err != nil || v == 0 {
			return false
		}
	}
	return true
}

func maxConcurrent(t *task.Task) int {
	if t.MaxConcurrent <= 0 {
		return len(t.ActionFluents)
	}
	return t.MaxConcurrent
}

// enumerateDefault enumerates every joint assignment with at most
// maxConcurrent(t) active (nonzero) fluents, keeping those that pass every
// state-independent precondition.
func enumerateDefault(t *task.Task, preconditions []*task.ActionPrecondition) [][]float64 {
	n := len(t.ActionFluents)
	limit := maxConcurrent(t)
	values := make([]float64, n)
	var out [][]float64

	var build func(i, active int)
	build = func(i, active int) {
		if active > limit {
			return
		}
		if i == n {
			if !passesPreconditions(t, preconditions, values) {
				return
			}
			cp := make([]float64, n)
			copy(cp, values)
			out = append(out, cp)
			return
		}
		for _, v := range t.ActionFluents[i].Domain {
			values[i] = v
			next := active
			if v != 0 {
				next++
			}
			build(i+1, next)
		}
	}
	build(0, 0)
	return out
}

// enumerateIPC2018 builds legal ActionStates round by round: starting from
// noop, each round extends every legal action added in the previous round
// by one additional active fluent, stopping once a round adds nothing.
func enumerateIPC2018(t *task.Task, preconditions []*task.ActionPrecondition) [][]float64 {
	n := len(t.ActionFluents)
	noop := make([]float64, n)
	seen := map[string]bool{key(noop): true}
	var all [][]float64
	if passesPreconditions(t, preconditions, noop) {
		all = append(all, noop)
	}

	frontier := [][]float64{noop}
	limit := maxConcurrent(t)
	for round := 0; round < limit; round++ {
		var next [][]float64
		for _, base := range frontier {
			for i, af := range t.ActionFluents {
				if base[i] != 0 {
					continue
				}
				for _, v := range af.Domain {
					if v == 0 {
						continue
					}
					cand := append([]float64(nil), base...)
					cand[i] = v
					k := key(cand)
					if seen[k] {
						continue
					}
					seen[k] = true
					if !passesPreconditions(t, preconditions, cand) {
						continue
					}
					next = append(next, cand)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		all = append(all, next...)
		frontier = next
	}
	return all
}

func key(values []float64) string {
	return fmt.Sprint(values)
}

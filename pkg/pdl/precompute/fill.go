// Package precompute implements the Precomputer and Task Analyzer (§4.8):
// Fill enumerates every vector-cached evaluatable's full (state, action-
// class) key space and stores each cell's evaluate/evaluate_to_pd result
// exactly once; Analyze performs the random-walk pass that flags mutually
// unreasonable ActionStates, detects reward locks, computes the dominant
// final-action set, and samples the training set.
package precompute

import (
	"fmt"

	"github.com/prost-planner/rddlc/internal/workpool"
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Fill populates the precomputed tables of every evaluatable that settled
// on vector caching (§4.7's Mode/KleeneMode). Map-cached and uncacheable
// evaluatables are left empty — their cells are filled lazily by the
// downstream runtime, since their key space was judged too large to
// enumerate upfront. Preconditions carry hash metadata but no precomputed
// table (§6's output format lists none for them), so only CPFs and the
// reward are filled here.
func Fill(t *task.Task) error {
	nonFluentVals := nonFluentValues(t)

	for _, cpf := range t.CPFs {
		if cpf.Hash.Uncacheable || cpf.Hash.Mode != task.CachingVector {
			continue
		}
		vec, pd, err := fillOne(t, cpf.Hash, cpf.Formula, cpf.Probabilistic, nonFluentVals)
		if err != nil {
			return fmt.Errorf("precompute CPF %q: %w", cpf.Head.Name, err)
		}
		cpf.VectorTable = vec
		cpf.PDVectorTable = pd
	}

	if t.Reward != nil && t.Reward.Formula != nil && !t.Reward.Hash.Uncacheable && t.Reward.Hash.Mode == task.CachingVector {
		vec, _, err := fillOne(t, t.Reward.Hash, t.Reward.Formula, false, nonFluentVals)
		if err != nil {
			return fmt.Errorf("precompute reward: %w", err)
		}
		t.Reward.VectorTable = vec
	}

	return nil
}

// FillParallel is Fill's parallel counterpart: each vector-cached CPF (and
// the reward) is an independent fillOne call, so §5's optional parallel
// precompute just fans them out across a workpool.Pool sized to workers.
// workers <= 1 runs sequentially (Fill itself), matching §5's "default is
// sequential".
func FillParallel(t *task.Task, workers int) error {
	if workers <= 1 {
		return Fill(t)
	}
	nonFluentVals := nonFluentValues(t)
	pool := workpool.New(workers)
	for _, cpf := range t.CPFs {
		cpf := cpf
		if cpf.Hash.Uncacheable || cpf.Hash.Mode != task.CachingVector {
			continue
		}
		pool.Go(func() error {
			vec, pd, err := fillOne(t, cpf.Hash, cpf.Formula, cpf.Probabilistic, nonFluentVals)
			if err != nil {
				return fmt.Errorf("precompute CPF %q: %w", cpf.Head.Name, err)
			}
			cpf.VectorTable = vec
			cpf.PDVectorTable = pd
			return nil
		})
	}
	if t.Reward != nil && t.Reward.Formula != nil && !t.Reward.Hash.Uncacheable && t.Reward.Hash.Mode == task.CachingVector {
		pool.Go(func() error {
			vec, _, err := fillOne(t, t.Reward.Hash, t.Reward.Formula, false, nonFluentVals)
			if err != nil {
				return fmt.Errorf("precompute reward: %w", err)
			}
			t.Reward.VectorTable = vec
			return nil
		})
	}
	return pool.Wait()
}

// fillOne enumerates the cartesian product of meta's dependent state-fluent
// domains times its action-equivalence-class representatives, invoking
// evaluate (and evaluate_to_pd when probabilistic) at each resulting key.
// Each key is written at most once; a second write is a bug, matching §4.8's
// "cells must remain undefined until first write; writing twice is a bug".
func fillOne(t *task.Task, meta task.HashMeta, formula *expr.Expr, probabilistic bool, nonFluentVals []float64) ([]float64, []expr.PD, error) {
	size := meta.KeySpace
	if size <= 0 {
		size = int64(meta.NumActionClasses)
	}
	if size <= 0 {
		size = 1
	}
	vec := make([]float64, size)
	written := make([]bool, size)
	var pd []expr.PD
	if probabilistic {
		pd = make([]expr.PD, size)
	}

	reps := representativesByClass(t, meta)
	state := t.InitialState()

	var recurse func(i int, key int64) error
	recurse = func(i int, key int64) error {
		if i == len(meta.StateBases) {
			for cls, actionVals := range reps {
				k := key + int64(cls)
				if k < 0 || k >= size {
					return fmt.Errorf("key %d out of bounds [0,%d)", k, size)
				}
				if written[k] {
					return fmt.Errorf("key %d written twice", k)
				}
				env := &expr.Env{State: state, Action: actionVals, NonFluents: nonFluentVals}
				v, err := expr.Evaluate(formula, env)
				if err != nil {
					return err
				}
				vec[k] = v
				written[k] = true
				if probabilistic {
					dist, err := expr.EvaluateToPD(formula, env)
					if err != nil {
						return err
					}
					pd[k] = dist
				}
			}
			return nil
		}
		sb := meta.StateBases[i]
		domain := t.CPFs[sb.VarIndex].Domain
		if len(domain) == 0 {
			domain = expr.NewDomain(state[sb.VarIndex])
		}
		orig := state[sb.VarIndex]
		for _, v := range domain {
			state[sb.VarIndex] = v
			if err := recurse(i+1, key+int64(v)*sb.Base); err != nil {
				return err
			}
		}
		state[sb.VarIndex] = orig
		return nil
	}

	if err := recurse(0, 0); err != nil {
		return nil, nil, err
	}
	return vec, pd, nil
}

// representativesByClass returns, for each action-equivalence class, one
// ActionState's Values vector belonging to that class (classes with no
// ActionStates — e.g. a task with no action fluents — get the all-zero
// vector).
func representativesByClass(t *task.Task, meta task.HashMeta) [][]float64 {
	n := meta.NumActionClasses
	if n <= 0 {
		n = 1
	}
	reps := make([][]float64, n)
	filled := make([]bool, n)
	for _, as := range t.ActionStates {
		cls := meta.ActionClassOf[as.Index]
		if cls < 0 || cls >= n || filled[cls] {
			continue
		}
		reps[cls] = as.Values
		filled[cls] = true
	}
	for i := range reps {
		if !filled[i] {
			reps[i] = make([]float64, len(t.ActionFluents))
		}
	}
	return reps
}

func nonFluentValues(t *task.Task) []float64 {
	out := make([]float64, len(t.NonFluents))
	for i, nf := range t.NonFluents {
		out[i] = nf.Value
	}
	return out
}

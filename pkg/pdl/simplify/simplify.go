// Package simplify drives the Simplifier's iterated fixed point (§4.3): a
// sequence of ordered subphases — formula simplification, inapplicable- and
// irrelevant-action-fluent removal, optional FDR synthesis, action
// enumeration, and reachable-domain approximation — repeated until no
// subphase effects a change, followed by ActionState finalization.
package simplify

import (
	"fmt"

	"github.com/prost-planner/rddlc/pkg/pdl/determinize"
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/mutex"
	"github.com/prost-planner/rddlc/pkg/pdl/reach"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Discipline selects §4.3(e)'s action-enumeration strategy.
type Discipline int

const (
	DisciplineDefault Discipline = iota
	DisciplineIPC2018
)

// Options configures the Simplifier's optional subphases.
type Options struct {
	SynthesizeFDR bool
	Enumeration   Discipline
}

// Run drives the fixed point to completion, then finalizes every
// ActionState. It returns the number of outer iterations taken.
func Run(t *task.Task, opts Options) (int, error) {
	iterations := 0
	for {
		iterations++

		for simplifyOnce(t) {
		}

		if removeInapplicableActions(t) {
			continue
		}
		if removeIrrelevantActions(t) {
			continue
		}

		if opts.SynthesizeFDR {
			if err := runFDRSynthesis(t); err != nil {
				return iterations, err
			}
		}

		removed, err := enumerateActions(t, opts.Enumeration)
		if err != nil {
			return iterations, err
		}
		if removed {
			continue
		}

		if err := determinize.Run(t); err != nil {
			return iterations, err
		}
		shrunk, err := approximateReachability(t)
		if err != nil {
			return iterations, err
		}
		if shrunk {
			continue
		}

		break
	}

	finalizeActionStates(t)
	return iterations, nil
}

// simplifyOnce performs subphase (a): simplify every CPF formula, the
// reward, and every precondition; split conjunctive preconditions into
// conjuncts; and eliminate any CPF that has simplified to a constant equal
// to its head's initial value. Returns whether anything changed.
func simplifyOnce(t *task.Task) bool {
	changed := false

	for _, cpf := range t.CPFs {
		s := expr.Simplify(cpf.Formula, nil)
		if !expr.Equal(s, cpf.Formula) {
			changed = true
		}
		cpf.Formula = s
	}
	if t.Reward != nil && t.Reward.Formula != nil {
		s := expr.Simplify(t.Reward.Formula, nil)
		if !expr.Equal(s, t.Reward.Formula) {
			changed = true
		}
		t.Reward.Formula = s
	}

	var split []*task.ActionPrecondition
	for _, p := range t.Preconditions {
		s := expr.Simplify(p.Formula, nil)
		if !expr.Equal(s, p.Formula) {
			changed = true
		}
		if s.Kind == expr.KindConjunction {
			changed = true
			for _, conjunct := range s.Args {
				split = append(split, &task.ActionPrecondition{Formula: conjunct, Kind: p.Kind})
			}
			continue
		}
		p.Formula = s
		split = append(split, p)
	}
	t.Preconditions = split

	var eliminated []int
	for i, cpf := range t.CPFs {
		if v, ok := expr.IsConstant(cpf.Formula); ok && v == cpf.Head.InitialValue {
			eliminated = append(eliminated, i)
		}
	}
	if len(eliminated) > 0 {
		eliminateStateFluents(t, eliminated)
		changed = true
	}

	return changed
}

// eliminateStateFluents removes the state fluents (and their CPFs) at the
// given positions, reindexes survivors, and rewrites every surviving
// formula so references to an eliminated fluent become its constant value
// and references to a reindexed survivor follow it to its new index.
func eliminateStateFluents(t *task.Task, positions []int) {
	elim := make(map[int]bool, len(positions))
	constVal := make(map[int]float64, len(positions))
	for _, pos := range positions {
		elim[pos] = true
		v, _ := expr.IsConstant(t.CPFs[pos].Formula)
		constVal[pos] = v
	}

	var newStateFluents []*task.StateFluent
	var newCPFs []*task.CPF
	old2new := make(map[int]int)
	for i, sf := range t.StateFluents {
		if elim[i] {
			continue
		}
		old2new[i] = len(newStateFluents)
		sf.Index = len(newStateFluents)
		newStateFluents = append(newStateFluents, sf)
		newCPFs = append(newCPFs, t.CPFs[i])
	}

	visit := func(e *expr.Expr) *expr.Expr {
		if e.Kind != expr.KindStateFluentRef {
			return nil
		}
		if v, ok := constVal[e.VarIndex]; ok {
			return expr.Constant(v)
		}
		if newIdx, ok := old2new[e.VarIndex]; ok && newIdx != e.VarIndex {
			return expr.StateFluentRef(newIdx, e.VarName)
		}
		return e
	}
	rewriteTask(t, visit)

	t.StateFluents = newStateFluents
	t.CPFs = newCPFs
}

// removeInapplicableActions implements subphase (b): a precondition of the
// exact shape ¬a for an action fluent a marks a as unusable (replaced by
// 0) and the precondition itself is dropped, since it is now subsumed by
// the fluent's removal.
func removeInapplicableActions(t *task.Task) bool {
	var unusable []int
	var kept []*task.ActionPrecondition
	for _, p := range t.Preconditions {
		if p.Formula.Kind == expr.KindNegation && p.Formula.Args[0].Kind == expr.KindActionFluentRef {
			unusable = append(unusable, p.Formula.Args[0].VarIndex)
			continue
		}
		kept = append(kept, p)
	}
	if len(unusable) == 0 {
		return false
	}
	t.Preconditions = kept
	eliminateActionFluents(t, unusable)
	return true
}

// removeIrrelevantActions implements subphase (c): any action fluent no
// CPF, the reward, or any surviving precondition depends on is deleted and
// replaced by 0.
func removeIrrelevantActions(t *task.Task) bool {
	depended := make(map[int]bool)
	mark := func(formula *expr.Expr) {
		deps := expr.NewDependencySet()
		expr.CollectInitialInfo(formula, 1, deps)
		for idx := range deps.DependentActionFluents() {
			depended[idx] = true
		}
	}
	for _, cpf := range t.CPFs {
		mark(cpf.Formula)
	}
	if t.Reward != nil {
		mark(t.Reward.Formula)
	}
	for _, p := range t.Preconditions {
		mark(p.Formula)
	}

	var irrelevant []int
	for _, af := range t.ActionFluents {
		if af.IsFDR {
			continue // already a synthesized replacement, never reconsidered here
		}
		if !depended[af.Index] {
			irrelevant = append(irrelevant, af.Index)
		}
	}
	if len(irrelevant) == 0 {
		return false
	}
	eliminateActionFluents(t, irrelevant)
	return true
}

// eliminateActionFluents removes the action fluents at the given indices,
// replacing every reference to them with the constant 0, and reindexes the
// survivors throughout every formula in the Task. Any previously enumerated
// ActionStates are invalidated, since the action space just changed.
func eliminateActionFluents(t *task.Task, indices []int) {
	elim := make(map[int]bool, len(indices))
	for _, idx := range indices {
		elim[idx] = true
	}

	var survivors []*task.ActionFluent
	old2new := make(map[int]int)
	for i, af := range t.ActionFluents {
		if elim[i] {
			continue
		}
		old2new[i] = len(survivors)
		af.Index = len(survivors)
		survivors = append(survivors, af)
	}

	rewriteTask(t, func(e *expr.Expr) *expr.Expr {
		if e.Kind != expr.KindActionFluentRef {
			return nil
		}
		if elim[e.VarIndex] {
			return expr.Constant(0)
		}
		if newIdx, ok := old2new[e.VarIndex]; ok && newIdx != e.VarIndex {
			return expr.ActionFluentRef(newIdx, e.VarName)
		}
		return e
	})

	t.ActionFluents = survivors
	t.ActionStates = nil
}

// runFDRSynthesis implements subphase (d) by delegating to pkg/pdl/mutex.
func runFDRSynthesis(t *task.Task) error {
	mutexPairs, err := mutex.Detect(t)
	if err != nil {
		return fmt.Errorf("mutex detection: %w", err)
	}
	var binary []int
	for _, af := range t.ActionFluents {
		if !af.IsFDR {
			binary = append(binary, af.Index)
		}
	}
	partitions := mutex.Partitions(binary, mutexPairs)
	if err := mutex.Synthesize(t, partitions); err != nil {
		return fmt.Errorf("FDR synthesis: %w", err)
	}
	return nil
}

// approximateReachability implements subphase (f): run the Reachability
// Analyser, then eliminate any CPF whose resulting domain collapsed to a
// single value. Returns whether any fluent was eliminated.
func approximateReachability(t *task.Task) (bool, error) {
	if _, err := reach.Run(t); err != nil {
		return false, fmt.Errorf("reachability: %w", err)
	}

	var singleton []int
	for i, cpf := range t.CPFs {
		if len(cpf.Domain) == 1 {
			singleton = append(singleton, i)
		}
	}
	if len(singleton) == 0 {
		return false, nil
	}
	eliminateStateFluents(t, singleton)
	return true, nil
}

// rewriteTask applies visit (see rewriteExpr) to every formula the Task
// holds, including each CPF's Determinization when present.
func rewriteTask(t *task.Task, visit func(*expr.Expr) *expr.Expr) {
	for _, cpf := range t.CPFs {
		cpf.Formula = rewriteExpr(cpf.Formula, visit)
		if cpf.Determinization != nil {
			cpf.Determinization = rewriteExpr(cpf.Determinization, visit)
		}
	}
	if t.Reward != nil {
		t.Reward.Formula = rewriteExpr(t.Reward.Formula, visit)
	}
	for _, p := range t.Preconditions {
		p.Formula = rewriteExpr(p.Formula, visit)
	}
}

// rewriteExpr walks e, calling visit at every node. visit returns a
// replacement subtree to stop descending there, or nil to have rewriteExpr
// rebuild that node from its rewritten children.
func rewriteExpr(e *expr.Expr, visit func(*expr.Expr) *expr.Expr) *expr.Expr {
	if e == nil {
		return nil
	}
	if r := visit(e); r != nil {
		return r
	}

	out := &expr.Expr{
		Kind:       e.Kind,
		Const:      e.Const,
		VarIndex:   e.VarIndex,
		VarName:    e.VarName,
		ParamName:  e.ParamName,
		ObjectName: e.ObjectName,
		ObjectType: e.ObjectType,
		SchemaName: e.SchemaName,
		Binders:    e.Binders,
	}
	for _, a := range e.Args {
		out.Args = append(out.Args, rewriteExpr(a, visit))
	}
	for _, br := range e.DiscreteBranches {
		out.DiscreteBranches = append(out.DiscreteBranches, expr.DiscreteBranch{
			Value: rewriteExpr(br.Value, visit),
			Prob:  rewriteExpr(br.Prob, visit),
		})
	}
	for _, br := range e.Branches {
		out.Branches = append(out.Branches, expr.Branch{
			Guard:  rewriteExpr(br.Guard, visit),
			Effect: rewriteExpr(br.Effect, visit),
		})
	}
	for _, a := range e.SchemaArgs {
		out.SchemaArgs = append(out.SchemaArgs, rewriteExpr(a, visit))
	}
	out.Body = rewriteExpr(e.Body, visit)
	return out
}

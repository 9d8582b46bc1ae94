// Package mutex implements the Mutex Detector and FDR Generator (§4.6):
// pairwise SMT-backed (here: pkg/pdl/csp-backed) mutex discovery over binary
// action fluents, followed by greedy partitioning into finite-domain
// replacement variables.
package mutex

import (
	"fmt"
	"sort"

	"github.com/prost-planner/rddlc/pkg/pdl/csp"
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Pair is an unordered pair of action-fluent indices, normalized so
// First <= Second.
type Pair struct{ First, Second int }

func newPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{First: a, Second: b}
}

// Detect returns every mutex pair of binary (non-FDR) action fluents, per
// §4.6. It short-circuits the trivial CSPs (concurrency 1, or no
// preconditions at all) without touching the solver, and otherwise queries
// csp.Solver once per candidate pair.
func Detect(t *task.Task) (map[Pair]bool, error) {
	mutex := make(map[Pair]bool)
	binary := binaryActionIndices(t)

	if t.MaxConcurrent == 1 || len(t.Preconditions) == 0 {
		// Concurrency 1: any two active fluents would exceed the bound, so
		// every pair is mutex. No preconditions: nothing forbids any joint
		// assignment, so no pair is mutex.
		trivialMutex := t.MaxConcurrent == 1
		for i := 0; i < len(binary); i++ {
			for j := i + 1; j < len(binary); j++ {
				mutex[newPair(binary[i], binary[j])] = trivialMutex
			}
		}
		return mutex, nil
	}

	constraints := stateInvariantPreconditions(t)
	state := t.InitialState()
	nonFluentVals := make([]float64, len(t.NonFluents))
	for i, nf := range t.NonFluents {
		nonFluentVals[i] = nf.Value
	}

	partitioned := make(map[int]bool) // never written, so no pair is skipped; FDR fluents are already left out of binary
	for i := 0; i < len(binary); i++ {
		for j := i + 1; j < len(binary); j++ {
			a, b := binary[i], binary[j]
			if partitioned[a] || partitioned[b] {
				continue
			}
			sat, err := checkPairSat(t, constraints, state, nonFluentVals, a, b)
			if err != nil {
				return nil, err
			}
			if !sat {
				mutex[newPair(a, b)] = true
			}
		}
	}
	return mutex, nil
}

// stateInvariantPreconditions returns the subset of t.Preconditions the
// mutex CSP can evaluate without committing to a concrete state: mutex
// asks "does any JOINT ACTION activate both", independent of state, so
// only preconditions already classified state-invariant apply.
func stateInvariantPreconditions(t *task.Task) []*expr.Expr {
	var out []*expr.Expr
	for _, p := range t.Preconditions {
		if p.Kind == task.PreconditionStateInvariant {
			out = append(out, p.Formula)
		}
	}
	return out
}

func binaryActionIndices(t *task.Task) []int {
	var out []int
	for _, af := range t.ActionFluents {
		if !af.IsFDR {
			out = append(out, af.Index)
		}
	}
	return out
}

func actionVarName(idx int) string { return fmt.Sprintf("a%d", idx) }

// checkPairSat asks whether some joint action can have both a and b active
// at once, subject to every state-invariant precondition. Only the action
// fluents the precondition set (plus a and b themselves) actually mention
// are pushed into the CSP, keeping each query small regardless of how many
// action fluents the task has overall.
func checkPairSat(t *task.Task, constraints []*expr.Expr, state, nonFluentVals []float64, a, b int) (bool, error) {
	needed := map[int]struct{}{a: {}, b: {}}
	for _, formula := range constraints {
		deps := expr.NewDependencySet()
		expr.CollectInitialInfo(formula, 1, deps)
		for idx := range deps.DependentActionFluents() {
			needed[idx] = struct{}{}
		}
	}
	indices := make([]int, 0, len(needed))
	for idx := range needed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	solver := csp.NewSolver()
	solver.PushScope()
	defer solver.PopScope()

	for _, idx := range indices {
		af := t.ActionFluents[idx]
		dom := make([]int, len(af.Domain))
		for i, v := range af.Domain {
			dom[i] = int(v)
		}
		if err := solver.AddVar(csp.Var{Name: actionVarName(idx), Domain: dom}); err != nil {
			return false, err
		}
	}
	if err := solver.AddConstraint(csp.Equals1(actionVarName(a))); err != nil {
		return false, err
	}
	if err := solver.AddConstraint(csp.Equals1(actionVarName(b))); err != nil {
		return false, err
	}
	for _, formula := range constraints {
		formula := formula
		if err := solver.AddConstraint(func(assignment map[string]int) bool {
			actionVec := make([]float64, len(t.ActionFluents))
			for _, af := range t.ActionFluents {
				name := actionVarName(af.Index)
				if v, ok := assignment[name]; ok {
					actionVec[af.Index] = float64(v)
				}
			}
			env := &expr.Env{State: state, Action: actionVec, NonFluents: nonFluentVals}
			v, err := expr.Evaluate(formula, env)
			return err == nil && v != 0
		}); err != nil {
			return false, err
		}
	}

	return solver.CheckSat()
}

// Partition is one group of mutex binary action fluents slated to become a
// single FDR action variable. Partitions of size 1 are not synthesized.
type Partition struct {
	ActionIndices []int
}

// Partitions greedily groups binaryIndices into mutex cliques, per §4.6
// "Partitioning": walk in index order, start a new partition at the first
// unassigned fluent, and extend it with any unassigned fluent mutex with
// every member already in the partition.
func Partitions(binaryIndices []int, mutexPairs map[Pair]bool) []Partition {
	assigned := make(map[int]bool, len(binaryIndices))
	var out []Partition
	for _, seed := range binaryIndices {
		if assigned[seed] {
			continue
		}
		p := Partition{ActionIndices: []int{seed}}
		assigned[seed] = true
		for _, cand := range binaryIndices {
			if assigned[cand] {
				continue
			}
			if mutexWithAll(cand, p.ActionIndices, mutexPairs) {
				p.ActionIndices = append(p.ActionIndices, cand)
				assigned[cand] = true
			}
		}
		out = append(out, p)
	}
	return out
}

func mutexWithAll(cand int, members []int, mutexPairs map[Pair]bool) bool {
	for _, m := range members {
		if !mutexPairs[newPair(cand, m)] {
			return false
		}
	}
	return true
}

// Synthesize applies FDR synthesis (§4.6) to every partition of size > 1:
// it allocates a fresh Type with one Object per original fluent plus a
// "none-of-those" sentinel, creates a replacement ActionFluent over it, and
// rewrites every occurrence of each absorbed binary fluent throughout
// t.CPFs/t.Reward/t.Preconditions. Every absorbed fluent is removed from
// t.ActionFluents (not left dangling) and every surviving fluent after it
// is reindexed accordingly, since a dangling unreferenced binary fluent
// would otherwise still double the action-enumeration space in subphase
// (e) for no reason. ActionStates, enumerated against the pre-synthesis
// action space, are invalidated; subphase (e) rebuilds them.
//
// Sentinel placement mirrors the original's two-phase remap: internally the
// sentinel is appended last while building the Type's Objects (so the n
// original fluents take Ordinals 0..n-1 and the sentinel Ordinal n during
// construction), then the whole Object list is rotated so the sentinel ends
// up at Ordinal 0 and the originals at 1..n, matching §4.6's "the sentinel takes index 0" invariant. Skipping this
// and assigning the sentinel index 0 up front is equivalent here since no
// Ordinal is observed mid-construction, but the rotation is kept anyway as
// a direct, documented analogue of the original two-phase algorithm, since
// an off-by-one at this step would silently corrupt every rewritten
// formula.
func Synthesize(t *task.Task, partitions []Partition) error {
	type group struct {
		originals []*task.ActionFluent
	}
	absorbed := make(map[int]bool)
	var groups []group
	for _, p := range partitions {
		if len(p.ActionIndices) <= 1 {
			continue
		}
		originals := make([]*task.ActionFluent, len(p.ActionIndices))
		for i, idx := range p.ActionIndices {
			originals[i] = t.ActionFluents[idx]
			absorbed[idx] = true
		}
		groups = append(groups, group{originals: originals})
	}
	if len(groups) == 0 {
		return nil
	}

	var survivors []*task.ActionFluent
	old2new := make(map[int]int)
	for i, af := range t.ActionFluents {
		if absorbed[i] {
			continue
		}
		old2new[i] = len(survivors)
		af.Index = len(survivors)
		survivors = append(survivors, af)
	}

	replacements := make(map[int]*expr.Expr)
	nextIndex := len(survivors)
	for _, g := range groups {
		typeName := fmt.Sprintf("__fdr%d", len(t.Symtab.Types()))
		typ, err := t.Symtab.DeclareType(typeName, nil)
		if err != nil {
			return err
		}
		// Phase one: declare one Object per original fluent (Ordinal
		// 0..n-1), then append the sentinel last (Ordinal n).
		for _, af := range g.originals {
			if _, err := t.Symtab.DeclareObject(af.Name, typ); err != nil {
				return err
			}
		}
		if _, err := t.Symtab.DeclareObject("none", typ); err != nil {
			return err
		}
		// Phase two: rotate the sentinel (currently last) to the front so
		// its Ordinal becomes 0, per §4.6.
		rotateSentinelToFront(typ)

		domain := make(expr.Domain, len(g.originals)+1)
		for i := range domain {
			domain[i] = float64(i)
		}
		fdr := &task.ActionFluent{
			Index:       nextIndex,
			Name:        typeName,
			Domain:      domain,
			IsFDR:       true,
			FDROriginal: make([]string, len(g.originals)),
		}
		for i, af := range g.originals {
			fdr.FDROriginal[i] = af.Name
			replacements[af.Index] = expr.NAry(expr.KindEquals, expr.ActionFluentRef(fdr.Index, fdr.Name), expr.Constant(float64(i+1)))
		}
		survivors = append(survivors, fdr)
		nextIndex++
	}

	rewriteTask(t, func(e *expr.Expr) *expr.Expr {
		if e.Kind != expr.KindActionFluentRef {
			return nil
		}
		if rep, ok := replacements[e.VarIndex]; ok {
			return rep
		}
		if newIdx, ok := old2new[e.VarIndex]; ok && newIdx != e.VarIndex {
			return expr.ActionFluentRef(newIdx, e.VarName)
		}
		return e
	})

	t.ActionFluents = survivors
	t.ActionStates = nil
	return nil
}

// rotateSentinelToFront moves typ.Objects' last element to the front and
// renumbers every Object's Ordinal to match its new position.
func rotateSentinelToFront(typ *symtab.Type) {
	n := len(typ.Objects)
	if n == 0 {
		return
	}
	sentinel := typ.Objects[n-1]
	rest := typ.Objects[:n-1]
	reordered := make([]*symtab.Object, 0, n)
	reordered = append(reordered, sentinel)
	reordered = append(reordered, rest...)
	for i, o := range reordered {
		o.Ordinal = i
	}
	typ.Objects = reordered
}

// rewriteTask applies visit (see rewriteExpr) to every formula the Task
// holds.
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

// Package hashkey implements the Hash-Key Generator (§4.7): it assigns
// every surviving CPF a base for the whole-state hash (and its Kleene
// counterpart), and assigns every evaluatable — each CPF, the reward, and
// each action precondition — an action-equivalence-class partition plus a
// state-fluent hash base, picking vector or map caching per the task's
// configured thresholds. Overflow anywhere along a base's running product
// disables that hash (state hashing entirely, or just the one evaluatable).
package hashkey

import (
	"fmt"
	"sort"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Run computes every hash-key artifact §4.7 names: the per-CPF state and
// Kleene-state hash bases, each evaluatable's HashMeta, and the task-level
// inverse "which evaluatables does v_j affect" index.
func Run(t *task.Task) {
	computeStateHashBases(t)
	computeKleeneHashBases(t)

	for i, cpf := range t.CPFs {
		cpf.Hash = evaluatableHash(t, cpf.Formula)
		_ = i
	}
	if t.Reward != nil {
		t.Reward.Hash = evaluatableHash(t, t.Reward.Formula)
	}
	for _, p := range t.Preconditions {
		p.Hash = evaluatableHash(t, p.Formula)
	}

	buildAffectedByStateFluent(t)
}

// computeStateHashBases assigns CPFs[i].StateHashBase = ∏_{j<i} |dom(v_j)|
// (§4.7 "State hash"), disabling whole-state hashing entirely (clearing
// every base back to 0) if the running product overflows.
func computeStateHashBases(t *task.Task) {
	var base int64 = 1
	overflow := false
	for _, cpf := range t.CPFs {
		cpf.StateHashBase = base
		if overflow {
			continue
		}
		sz := domainSize(cpf.Domain)
		next, ok := mulOverflow(base, sz)
		if !ok {
			overflow = true
			continue
		}
		base = next
	}
	t.StateHashingEnabled = !overflow
	if overflow {
		for _, cpf := range t.CPFs {
			cpf.StateHashBase = 0
		}
	}
}

// computeKleeneHashBases mirrors computeStateHashBases for the Kleene
// state, whose per-variable size is the powerset of its domain minus the
// empty set (2^|dom| - 1), since a Kleene value is a nonempty subset of
// possible concrete values.
func computeKleeneHashBases(t *task.Task) {
	var base int64 = 1
	overflow := false
	for _, cpf := range t.CPFs {
		cpf.KleeneHashBase = base
		if overflow {
			continue
		}
		sz, ok := kleeneDomainSize(cpf.Domain)
		if !ok {
			overflow = true
			continue
		}
		next, ok := mulOverflow(base, sz)
		if !ok {
			overflow = true
			continue
		}
		base = next
	}
	t.KleeneHashingEnabled = !overflow
	if overflow {
		for _, cpf := range t.CPFs {
			cpf.KleeneHashBase = 0
		}
	}
}

// evaluatableHash computes one evaluatable's HashMeta: its action-
// equivalence-class partition, its state-fluent hash bases (running
// product of dependent state fluents' domain sizes, starting at the
// number of action classes), and the caching mode each of the standard
// and Kleene key spaces settles on. Overflow in either key space marks the
// evaluatable Uncacheable.
func evaluatableHash(t *task.Task, formula *expr.Expr) task.HashMeta {
	deps := expr.NewDependencySet()
	expr.CollectInitialInfo(formula, 1, deps)

	classOf, numClasses := actionEquivalenceClasses(t, deps)
	meta := task.HashMeta{ActionClassOf: classOf, NumActionClasses: numClasses}

	stateDeps := sortedKeys(deps.DependentState)

	startBase := int64(numClasses)
	if startBase == 0 {
		startBase = 1
	}

	keySpace, stateBases, ok := accumulateBases(t, stateDeps, startBase, domainSize)
	if !ok {
		meta.Uncacheable = true
	} else {
		meta.StateBases = stateBases
		meta.KeySpace = keySpace
		meta.Mode = cachingMode(keySpace, task.VectorCacheThreshold)
	}

	kleeneKeySpace, _, kok := accumulateBases(t, stateDeps, startBase, kleeneDomainSizeOrZero)
	if !kok {
		meta.Uncacheable = true
	} else {
		meta.KleeneKeySpace = kleeneKeySpace
		meta.KleeneMode = cachingMode(kleeneKeySpace, task.KleeneVectorCacheThreshold)
	}

	return meta
}

// accumulateBases walks stateDeps in order, recording each one's running-
// product base via sizeOf, and returns the final key space. Both
// standard and Kleene hash bases share this shape; only the per-fluent
// sizing function differs. The returned StateBase slice is only
// meaningful for the caller that wants it recorded (the standard hash);
// the Kleene pass reuses the function purely for its key-space total.
func accumulateBases(t *task.Task, stateDeps []int, start int64, sizeOf func(expr.Domain) int64) (int64, []task.StateBase, bool) {
	base := start
	var bases []task.StateBase
	for _, idx := range stateDeps {
		// The reachable domain for state fluent idx lives on its CPF (the
		// Reachability Analyser writes cpf.Domain, not StateFluent.Domain),
		// since CPFs[idx].Head == StateFluents[idx] throughout (task.go).
		domain := t.CPFs[idx].Domain
		bases = append(bases, task.StateBase{VarIndex: idx, Base: base})
		sz := sizeOf(domain)
		if sz <= 0 {
			return 0, nil, false
		}
		next, ok := mulOverflow(base, sz)
		if !ok {
			return 0, nil, false
		}
		base = next
	}
	return base, bases, true
}

// actionEquivalenceClasses assigns each ActionState an equivalence class
// index, 0, 1, 2, ... in first-encountered order, keyed by the values of
// only the action fluents the evaluatable actually depends on (§4.7
// "action-equivalence-class partitioning"). An evaluatable with no action
// dependency collapses every ActionState into a single class 0.
func actionEquivalenceClasses(t *task.Task, deps *expr.DependencySet) (map[int]int, int) {
	relevant := sortedKeys(deps.DependentActionFluents())
	classOf := make(map[int]int, len(t.ActionStates))
	seen := make(map[string]int)
	next := 0
	for _, as := range t.ActionStates {
		key := make([]float64, len(relevant))
		for i, idx := range relevant {
			key[i] = as.Values[idx]
		}
		k := fmt.Sprint(key)
		cls, ok := seen[k]
		if !ok {
			cls = next
			seen[k] = cls
			next++
		}
		classOf[as.Index] = cls
	}
	if next == 0 {
		next = 1
	}
	return classOf, next
}

// buildAffectedByStateFluent inverts every evaluatable's StateBases into
// Task.AffectedByStateFluent, so an incremental state update touching v_j
// can recompute only the hash keys that actually depend on it.
func buildAffectedByStateFluent(t *task.Task) {
	affected := make([][]task.EvaluatableRef, len(t.StateFluents))
	record := func(meta task.HashMeta, ref task.EvaluatableRef) {
		for _, sb := range meta.StateBases {
			affected[sb.VarIndex] = append(affected[sb.VarIndex], ref)
		}
	}
	for i, cpf := range t.CPFs {
		record(cpf.Hash, task.EvaluatableRef{Kind: task.EvaluatableCPF, Index: i})
	}
	if t.Reward != nil {
		record(t.Reward.Hash, task.EvaluatableRef{Kind: task.EvaluatableReward})
	}
	for i, p := range t.Preconditions {
		record(p.Hash, task.EvaluatableRef{Kind: task.EvaluatablePrecondition, Index: i})
	}
	t.AffectedByStateFluent = affected
}

func cachingMode(keySpace, threshold int64) task.CachingMode {
	if keySpace <= threshold {
		return task.CachingVector
	}
	return task.CachingMap
}

func domainSize(d expr.Domain) int64 {
	if len(d) == 0 {
		return 1
	}
	return int64(len(d))
}

// kleeneDomainSize returns 2^|dom| - 1 (the nonempty powerset size), or
// false if |dom| is large enough that the shift itself would overflow.
func kleeneDomainSize(d expr.Domain) (int64, bool) {
	n := len(d)
	if n == 0 {
		n = 1
	}
	if n >= 63 {
		return 0, false
	}
	return (int64(1) << uint(n)) - 1, true
}

func kleeneDomainSizeOrZero(d expr.Domain) int64 {
	sz, ok := kleeneDomainSize(d)
	if !ok {
		return 0
	}
	return sz
}

// mulOverflow returns a*b and true, or (0, false) if that product
// overflows int64.
func mulOverflow(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

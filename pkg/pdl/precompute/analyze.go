package precompute

import (
	"fmt"
	"sort"
	"time"

	"github.com/prost-planner/rddlc/internal/rng"
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Options configures the Task Analyzer's random walk (§4.8). Zero-value
// Options is invalid; use DefaultOptions as a starting point.
type Options struct {
	WalkCount         int
	WalkLength        int
	TrainingSetSize   int
	DetectRewardLocks bool
	WalkBudget        time.Duration
}

// DefaultOptions returns the Task Analyzer's default configuration:
// 30 walks bounded by the task's horizon (or 50 steps absent one), a
// training set of 200 states, reward-lock detection on, and a 2-second
// wall-clock budget (§5: "the random-walk ... checks each take a wall-
// clock budget and terminate the enclosing loop early when exceeded").
func DefaultOptions(t *task.Task) Options {
	walkLength := t.Horizon
	if walkLength <= 0 {
		walkLength = 50
	}
	return Options{
		WalkCount:         30,
		WalkLength:        walkLength,
		TrainingSetSize:   200,
		DetectRewardLocks: true,
		WalkBudget:        2 * time.Second,
	}
}

// AnalysisResult is the Task Analyzer's full output: the spec-named
// aggregate flags (mirrored onto Task by Analyze) plus the supplemented
// per-state unreasonable-action bitmask original_source/state_set_generator.cc
// additionally tracks (keyed by encountered-state hash, or by encounter
// order when perfect state hashing is disabled).
type AnalysisResult struct {
	EncounteredStatesCount     int
	UnreasonableActionDetected bool
	UnreasonableActionPairs    map[int][][2]int
	RewardLockDetected         bool
	DominantFinalActions       []int
	TrainingSet                [][]float64
}

// Analyze implements the Task Analyzer (§4.8): random walks from the
// initial state flag mutually unreasonable ActionState pairs and collect
// encountered states; reward locks and the dominant final-action set are
// then computed, and a random subset of encountered states is sampled into
// the training set. The spec-named aggregate fields are written onto t;
// the richer per-state result is returned for the supplemented per-state
// pruning feature.
func Analyze(t *task.Task, source *rng.Source, opts Options) (*AnalysisResult, error) {
	nonFluentVals := nonFluentValues(t)
	result := &AnalysisResult{UnreasonableActionPairs: make(map[int][][2]int)}
	aggregatePairs := make(map[[2]int]bool)

	encounteredOrder := make(map[string]int)
	var encountered [][]float64
	recordState := func(state []float64) int {
		k := fmt.Sprint(state)
		if idx, ok := encounteredOrder[k]; ok {
			return idx
		}
		idx := len(encountered)
		encounteredOrder[k] = idx
		encountered = append(encountered, append([]float64(nil), state...))
		return idx
	}
	recordState(t.InitialState())

	deadline := time.Now().Add(opts.WalkBudget)
	for walk := 0; walk < opts.WalkCount && time.Now().Before(deadline); walk++ {
		state := t.InitialState()
		for step := 0; step < opts.WalkLength && time.Now().Before(deadline); step++ {
			stateIdx := recordState(state)
			pairs, err := unreasonablePairsAt(t, state, nonFluentVals)
			if err != nil {
				return nil, fmt.Errorf("precompute: analyzing state %v: %w", state, err)
			}
			if len(pairs) > 0 {
				key := stateKey(t, state, stateIdx)
				result.UnreasonableActionPairs[key] = append(result.UnreasonableActionPairs[key], pairs...)
				for _, p := range pairs {
					aggregatePairs[p] = true
				}
			}
			if len(t.ActionStates) == 0 {
				break
			}
			chosen := t.ActionStates[source.Intn(len(t.ActionStates))]
			next, err := sampleSuccessor(t, state, chosen.Values, nonFluentVals, source)
			if err != nil {
				return nil, fmt.Errorf("precompute: sampling successor: %w", err)
			}
			state = next
		}
	}

	result.EncounteredStatesCount = len(encountered)
	result.UnreasonableActionDetected = len(aggregatePairs) > 0

	t.EncounteredStatesCount = result.EncounteredStatesCount
	t.UnreasonableActionDetected = result.UnreasonableActionDetected
	if t.UnreasonableActionPairs == nil {
		t.UnreasonableActionPairs = make(map[[2]int]bool)
	}
	for p, ok := range aggregatePairs {
		t.UnreasonableActionPairs[p] = ok
	}

	if opts.DetectRewardLocks && t.Reward != nil {
		locked, err := anyRewardLock(t, encountered, nonFluentVals)
		if err != nil {
			return nil, fmt.Errorf("precompute: reward-lock detection: %w", err)
		}
		result.RewardLockDetected = locked
		t.RewardLockDetected = locked
	}

	result.DominantFinalActions = dominantFinalActions(t)

	result.TrainingSet = sampleTrainingSet(encountered, opts.TrainingSetSize, source)
	t.TrainingSet = result.TrainingSet

	return result, nil
}

// stateKey picks the integer a per-state bitmask entry is recorded under:
// the perfect state hash when §4.7 enabled it, falling back to the state's
// encounter order otherwise (still unique per distinct state within one
// analysis run, just not a portable hash).
func stateKey(t *task.Task, state []float64, encounterIndex int) int {
	if !t.StateHashingEnabled {
		return encounterIndex
	}
	var key int64
	for i, v := range state {
		if i >= len(t.CPFs) {
			break
		}
		key += int64(v) * t.CPFs[i].StateHashBase
	}
	return int(key)
}

// unreasonablePairsAt evaluates every ActionState's per-CPF successor
// distribution at state and returns every pair whose distributions are
// identical across every CPF (§4.8: "any two ActionStates whose
// probability distributions over successors are identical").
func unreasonablePairsAt(t *task.Task, state, nonFluentVals []float64) ([][2]int, error) {
	if len(t.ActionStates) < 2 {
		return nil, nil
	}
	signatures := make([]string, len(t.ActionStates))
	for i, as := range t.ActionStates {
		sig, err := successorSignature(t, state, as.Values, nonFluentVals)
		if err != nil {
			return nil, err
		}
		signatures[i] = sig
	}
	var pairs [][2]int
	for i := 0; i < len(t.ActionStates); i++ {
		for j := i + 1; j < len(t.ActionStates); j++ {
			if signatures[i] == signatures[j] {
				pairs = append(pairs, [2]int{t.ActionStates[i].Index, t.ActionStates[j].Index})
			}
		}
	}
	return pairs, nil
}

// successorSignature builds a deterministic string encoding of every CPF's
// outcome distribution under (state, action), assuming the standard
// factored-MDP conditional independence between CPFs (each CPF's next
// value distribution depends only on the current joint state and action,
// not on the other CPFs' sampled outcomes).
func successorSignature(t *task.Task, state, action, nonFluentVals []float64) (string, error) {
	env := &expr.Env{State: state, Action: action, NonFluents: nonFluentVals}
	var b []byte
	for _, cpf := range t.CPFs {
		pd, err := expr.EvaluateToPD(cpf.Formula, env)
		if err != nil {
			return "", err
		}
		for _, e := range pd {
			b = append(b, []byte(fmt.Sprintf("%d:%g:%g|", cpf.Head.Index, e.Value, e.Prob))...)
		}
		b = append(b, ';')
	}
	return string(b), nil
}

// sampleSuccessor draws one concrete next state by sampling each CPF's PD
// independently, per the same factored-independence assumption
// successorSignature relies on.
func sampleSuccessor(t *task.Task, state, action, nonFluentVals []float64, source *rng.Source) ([]float64, error) {
	env := &expr.Env{State: state, Action: action, NonFluents: nonFluentVals}
	next := make([]float64, len(t.StateFluents))
	for i, cpf := range t.CPFs {
		pd, err := expr.EvaluateToPD(cpf.Formula, env)
		if err != nil {
			return nil, err
		}
		next[i] = samplePD(pd, source)
	}
	return next, nil
}

func samplePD(pd expr.PD, source *rng.Source) float64 {
	if len(pd) == 0 {
		return 0
	}
	r := source.Float64()
	acc := 0.0
	for _, e := range pd {
		acc += e.Prob
		if r < acc {
			return e.Value
		}
	}
	return pd[len(pd)-1].Value
}

// anyRewardLock reports whether any encountered state is a reward lock:
// its reward already sits at the reward function's minimum or maximum, and
// a bounded Kleene monotone inflation from that state can never widen the
// reward's possible value away from that extremum (§4.8).
func anyRewardLock(t *task.Task, encountered [][]float64, nonFluentVals []float64) (bool, error) {
	minVal, err := t.Reward.MinCached()
	if err != nil {
		return false, nil
	}
	maxVal, err := t.Reward.MaxCached()
	if err != nil {
		return false, nil
	}
	reps := allActionValues(t)
	for _, state := range encountered {
		var env *expr.Env
		if len(reps) > 0 {
			env = &expr.Env{State: state, Action: reps[0], NonFluents: nonFluentVals}
		} else {
			env = &expr.Env{State: state, Action: make([]float64, len(t.ActionFluents)), NonFluents: nonFluentVals}
		}
		val, err := expr.Evaluate(t.Reward.Formula, env)
		if err != nil {
			return false, err
		}
		var extremal float64
		switch {
		case val == minVal:
			extremal = minVal
		case val == maxVal:
			extremal = maxVal
		default:
			continue
		}
		locked, err := isMonotoneRewardLock(t, state, extremal, reps, nonFluentVals)
		if err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
	}
	return false, nil
}

// isMonotoneRewardLock widens the Kleene state set starting from the
// singleton state, re-evaluating every CPF's determinized domain under
// every legal action at each step, and fails fast the moment the reward's
// possible value set could contain anything but extremal. Bounded at 20
// steps (or the task horizon if smaller) since a true fixed point, if one
// exists, is reached quickly in practice for the small state spaces this
// compiler targets.
func isMonotoneRewardLock(t *task.Task, state []float64, extremal float64, reps [][]float64, nonFluentVals []float64) (bool, error) {
	reachable := make([]expr.Domain, len(t.StateFluents))
	for i, v := range state {
		reachable[i] = expr.NewDomain(v)
	}
	limit := t.Horizon
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	if len(reps) == 0 {
		reps = [][]float64{make([]float64, len(t.ActionFluents))}
	}
	for step := 0; step < limit; step++ {
		next := make([]expr.Domain, len(reachable))
		copy(next, reachable)
		grew := false
		for i, cpf := range t.CPFs {
			formula := cpf.Formula
			if cpf.Probabilistic && cpf.Determinization != nil {
				formula = cpf.Determinization
			}
			var union expr.Domain
			var warnings []expr.DomainWarning
			for _, action := range reps {
				d, err := expr.CalculateDomain(formula, reachable, action, nonFluentVals, &warnings)
				if err != nil {
					return false, err
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

		var warnings []expr.DomainWarning
		for _, action := range reps {
			d, err := expr.CalculateDomain(t.Reward.Formula, reachable, action, nonFluentVals, &warnings)
			if err != nil {
				return false, err
			}
			if len(d) != 1 || d[0] != extremal {
				return false, nil
			}
		}
		if !grew {
			break
		}
	}
	return true, nil
}

func allActionValues(t *task.Task) [][]float64 {
	out := make([][]float64, len(t.ActionStates))
	for i, as := range t.ActionStates {
		out[i] = as.Values
	}
	return out
}

// dominantFinalActions implements §4.8's dominance rule: A dominates B iff
// A carries no relevant preconditions, A's active fluents cover every
// positively-rewarded active fluent of B, and B's active fluents cover
// every negatively-rewarded active fluent of A. Returns the indices of
// every ActionState not dominated by some other.
func dominantFinalActions(t *task.Task) []int {
	if t.Reward == nil || len(t.ActionStates) == 0 {
		var all []int
		for _, as := range t.ActionStates {
			all = append(all, as.Index)
		}
		return all
	}
	deps := expr.NewDependencySet()
	expr.CollectInitialInfo(t.Reward.Formula, 1, deps)

	activeSets := make([]map[int]bool, len(t.ActionStates))
	for i, as := range t.ActionStates {
		m := make(map[int]bool, len(as.ActiveFluents))
		for _, idx := range as.ActiveFluents {
			m[idx] = true
		}
		activeSets[i] = m
	}

	dominated := make(map[int]bool)
	for i, a := range t.ActionStates {
		if len(a.RelevantPreconditions) != 0 {
			continue
		}
		for j, b := range t.ActionStates {
			if i == j || dominated[b.Index] {
				continue
			}
			if coversRelevant(activeSets[i], activeSets[j], deps.PositiveAction) &&
				coversRelevant(activeSets[j], activeSets[i], deps.NegativeAction) {
				dominated[b.Index] = true
			}
		}
	}

	var out []int
	for _, as := range t.ActionStates {
		if !dominated[as.Index] {
			out = append(out, as.Index)
		}
	}
	sort.Ints(out)
	return out
}

// coversRelevant reports whether every index in other that also appears in
// relevant is present in cover.
func coversRelevant(cover, other map[int]bool, relevant map[int]struct{}) bool {
	for idx := range other {
		if _, ok := relevant[idx]; ok && !cover[idx] {
			return false
		}
	}
	return true
}

// sampleTrainingSet draws min(len(encountered), size) states uniformly at
// random without replacement, always keeping the initial state (§4.8's
// "training set ... from the set of encountered states (including the
// initial state)").
func sampleTrainingSet(encountered [][]float64, size int, source *rng.Source) [][]float64 {
	if size <= 0 || len(encountered) <= size {
		out := make([][]float64, len(encountered))
		copy(out, encountered)
		return out
	}
	perm := source.Perm(len(encountered) - 1)
	out := make([][]float64, 0, size)
	out = append(out, encountered[0])
	for _, p := range perm {
		if len(out) >= size {
			break
		}
		out = append(out, encountered[p+1])
	}
	return out
}

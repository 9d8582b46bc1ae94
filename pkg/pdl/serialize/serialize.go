// Package serialize implements the Output Writer (§6 External Interfaces):
// it renders a compiled Task to the fixed-order section layout the
// downstream runtime expects, writing every formula through expr.Print's
// prefix grammar. Grounded on the teacher pack's own generated-text writer
// (dolthub-go-mysql-server's enginetest/testgen_test.go), which builds a
// bufio.Writer over a plain io.Writer and checks for failure only once, at
// Flush, rather than after every WriteString/Fprintf call.
package serialize

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Options controls the output writer's optional header stamp. RunID, when
// set, is emitted as a leading comment line so the compiled file can be
// traced back to the run that produced it.
type Options struct {
	RunID string
}

// WriteTask renders t to w in the section order fixed by §6: task header,
// action fluents, CPFs (deterministic then probabilistic), reward,
// preconditions, action states, the per-CPF state-fluent hash-key inverse,
// and the training set.
func WriteTask(w io.Writer, t *task.Task, opts Options) error {
	bw := bufio.NewWriter(w)
	if opts.RunID != "" {
		fmt.Fprintf(bw, "// run %s\n", opts.RunID)
	}
	writeHeader(bw, t)
	writeActionFluents(bw, t)
	writeCPFs(bw, t)
	writeReward(bw, t)
	writePreconditions(bw, t)
	writeActionStates(bw, t)
	writeStateFluentHashInverse(bw, t)
	writeTrainingSet(bw, t)
	return bw.Flush()
}

func writeHeader(bw *bufio.Writer, t *task.Task) {
	fmt.Fprintf(bw, "task %s\n", t.Name)
	fmt.Fprintf(bw, "horizon %d\n", t.Horizon)
	fmt.Fprintf(bw, "discount %s\n", formatFloat(t.Discount))
	fmt.Fprintf(bw, "numStateFluents %d\n", len(t.StateFluents))
	fmt.Fprintf(bw, "numActionFluents %d\n", len(t.ActionFluents))
	fmt.Fprintf(bw, "numNonFluents %d\n", len(t.NonFluents))
	fmt.Fprintf(bw, "numPreconditions %d\n", len(t.Preconditions))
	fmt.Fprintf(bw, "numActionStates %d\n", len(t.ActionStates))
	fmt.Fprintf(bw, "initialState %s\n", formatFloats(t.InitialState()))
	fmt.Fprintf(bw, "deterministic %t\n", t.DeterministicTask)
	fmt.Fprintf(bw, "stateHashing %t\n", t.StateHashingEnabled)
	fmt.Fprintf(bw, "kleeneHashing %t\n", t.KleeneHashingEnabled)
	fmt.Fprintf(bw, "finalRewardCalculationMethod %s\n", finalRewardCalculationMethod(t))
	fmt.Fprintf(bw, "rewardLockDetected %t\n", t.RewardLockDetected)
	fmt.Fprintf(bw, "unreasonableActionDetected %t\n", t.UnreasonableActionDetected)
	fmt.Fprintf(bw, "encounteredStatesCount %d\n", t.EncounteredStatesCount)
}

// finalRewardCalculationMethod names how the runtime should total a
// trajectory's reward. A purely deterministic task sums each step's exact
// reward; a probabilistic one accumulates the reward's expectation instead.
// The precomputed reward table holds point values only; no PD table is
// filled for the reward.
func finalRewardCalculationMethod(t *task.Task) string {
	if t.DeterministicTask {
		return "deterministic-sum"
	}
	return "expected-value"
}

func writeActionFluents(bw *bufio.Writer, t *task.Task) {
	fmt.Fprintf(bw, "actionFluents %d\n", len(t.ActionFluents))
	for _, af := range t.ActionFluents {
		fmt.Fprintf(bw, "  %d %s domainSize=%d values=%s\n", af.Index, af.Name, len(af.Domain), formatFloats(af.Domain))
	}
}

func writeCPFs(bw *bufio.Writer, t *task.Task) {
	deterministic, probabilistic := partitionCPFs(t)
	fmt.Fprintf(bw, "cpfs %d\n", len(t.CPFs))
	for _, i := range deterministic {
		writeCPF(bw, t, i)
	}
	for _, i := range probabilistic {
		writeCPF(bw, t, i)
	}
}

func partitionCPFs(t *task.Task) (deterministic, probabilistic []int) {
	for i, cpf := range t.CPFs {
		if cpf.Probabilistic {
			probabilistic = append(probabilistic, i)
		} else {
			deterministic = append(deterministic, i)
		}
	}
	return deterministic, probabilistic
}

func writeCPF(bw *bufio.Writer, t *task.Task, i int) {
	cpf := t.CPFs[i]
	fmt.Fprintf(bw, "  cpf %d %s domain=%s\n", i, cpf.Head.Name, formatFloats(cpf.Domain))
	fmt.Fprintf(bw, "    formula %s\n", expr.Print(cpf.Formula))
	if cpf.Probabilistic {
		fmt.Fprintf(bw, "    determinization %s\n", expr.Print(cpf.Determinization))
	}
	fmt.Fprintf(bw, "    hashIndex %d\n", i)
	writeHashMeta(bw, "    ", cpf.Hash)
	writePrecomputedTable(bw, "    ", cpf.Hash, cpf.VectorTable, cpf.MapTable)
	writeActionHashKeyMap(bw, "    ", cpf.Hash)
}

func writeReward(bw *bufio.Writer, t *task.Task) {
	if t.Reward == nil {
		fmt.Fprintln(bw, "reward none")
		return
	}
	fmt.Fprintf(bw, "reward formula %s\n", expr.Print(t.Reward.Formula))
	if min, err := t.Reward.MinCached(); err == nil {
		fmt.Fprintf(bw, "  min %s\n", formatFloat(min))
	}
	if max, err := t.Reward.MaxCached(); err == nil {
		fmt.Fprintf(bw, "  max %s\n", formatFloat(max))
	}
	writeHashMeta(bw, "  ", t.Reward.Hash)
	writePrecomputedTable(bw, "  ", t.Reward.Hash, t.Reward.VectorTable, t.Reward.MapTable)
}

func writePreconditions(bw *bufio.Writer, t *task.Task) {
	fmt.Fprintf(bw, "preconditions %d\n", len(t.Preconditions))
	for i, p := range t.Preconditions {
		fmt.Fprintf(bw, "  %d kind=%s dynamic=%t formula=%s\n", i, preconditionKindName(p.Kind), p.IsDynamic, expr.Print(p.Formula))
		writeHashMeta(bw, "    ", p.Hash)
	}
}

func preconditionKindName(k task.PreconditionKind) string {
	switch k {
	case task.PreconditionStateDependent:
		return "stateDependent"
	case task.PreconditionStateInvariant:
		return "stateInvariant"
	case task.PreconditionStaticallyForbidden:
		return "staticallyForbidden"
	default:
		return "unknown"
	}
}

func writeActionStates(bw *bufio.Writer, t *task.Task) {
	fmt.Fprintf(bw, "actionStates %d\n", len(t.ActionStates))
	for _, as := range t.ActionStates {
		fmt.Fprintf(bw, "  %d values=%s relevantPreconditions=%s\n", as.Index, formatFloats(as.Values), formatInts(as.RelevantPreconditions))
	}
}

// writeStateFluentHashInverse emits, for each state fluent v_j, the
// evaluatables whose hash key depends on it together with the base they
// assigned v_j — the inverse view §4.7 names "evaluatables affected by
// v_j", read back out of Task.AffectedByStateFluent.
func writeStateFluentHashInverse(bw *bufio.Writer, t *task.Task) {
	fmt.Fprintf(bw, "stateFluentHashBases %d\n", len(t.StateFluents))
	for j, sf := range t.StateFluents {
		cpf := t.CPFs[j]
		fmt.Fprintf(bw, "  %d %s stateHashBase=%d kleeneHashBase=%d\n", j, sf.Name, cpf.StateHashBase, cpf.KleeneHashBase)
		var affected []task.EvaluatableRef
		if j < len(t.AffectedByStateFluent) {
			affected = t.AffectedByStateFluent[j]
		}
		for _, ref := range affected {
			meta := evaluatableHashMeta(t, ref)
			base, kbase := baseFor(meta, j)
			fmt.Fprintf(bw, "    %s base=%d kleeneBase=%d\n", evaluatableRefName(t, ref), base, kbase)
		}
	}
}

func evaluatableHashMeta(t *task.Task, ref task.EvaluatableRef) task.HashMeta {
	switch ref.Kind {
	case task.EvaluatableCPF:
		return t.CPFs[ref.Index].Hash
	case task.EvaluatableReward:
		return t.Reward.Hash
	case task.EvaluatablePrecondition:
		return t.Preconditions[ref.Index].Hash
	default:
		return task.HashMeta{}
	}
}

func evaluatableRefName(t *task.Task, ref task.EvaluatableRef) string {
	switch ref.Kind {
	case task.EvaluatableCPF:
		return fmt.Sprintf("cpf(%s)", t.CPFs[ref.Index].Head.Name)
	case task.EvaluatableReward:
		return "reward"
	case task.EvaluatablePrecondition:
		return fmt.Sprintf("precondition(%d)", ref.Index)
	default:
		return "unknown"
	}
}

func baseFor(meta task.HashMeta, varIndex int) (int64, int64) {
	for _, sb := range meta.StateBases {
		if sb.VarIndex == varIndex {
			return sb.Base, sb.Base
		}
	}
	return 0, 0
}

func writeTrainingSet(bw *bufio.Writer, t *task.Task) {
	fmt.Fprintf(bw, "trainingSet %d\n", len(t.TrainingSet))
	for _, state := range t.TrainingSet {
		fmt.Fprintf(bw, "  %s\n", formatFloats(state))
	}
}

func writeHashMeta(bw *bufio.Writer, indent string, meta task.HashMeta) {
	if meta.Uncacheable {
		fmt.Fprintf(bw, "%scachingMode uncacheable\n", indent)
		return
	}
	fmt.Fprintf(bw, "%scachingMode %s keySpace=%d numActionClasses=%d\n", indent, meta.Mode, meta.KeySpace, meta.NumActionClasses)
	fmt.Fprintf(bw, "%skleeneCachingMode %s kleeneKeySpace=%d\n", indent, meta.KleeneMode, meta.KleeneKeySpace)
}

func writePrecomputedTable(bw *bufio.Writer, indent string, meta task.HashMeta, vec []float64, m map[int]float64) {
	if meta.Uncacheable || meta.Mode != task.CachingVector || len(vec) == 0 {
		return
	}
	fmt.Fprintf(bw, "%sprecomputed %s\n", indent, formatFloats(vec))
	_ = m // map-cached tables are filled lazily by the runtime; nothing to emit here.
}

func writeActionHashKeyMap(bw *bufio.Writer, indent string, meta task.HashMeta) {
	if len(meta.ActionClassOf) == 0 {
		return
	}
	keys := make([]int, 0, len(meta.ActionClassOf))
	for k := range meta.ActionClassOf {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fmt.Fprintf(bw, "%sactionHashKeyMap", indent)
	for _, k := range keys {
		fmt.Fprintf(bw, " %d:%d", k, meta.ActionClassOf[k])
	}
	fmt.Fprintln(bw)
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func formatFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return "[" + joinStrings(parts) + "]"
}

func formatInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + joinStrings(parts) + "]"
}

func joinStrings(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// Package task holds the Task Model (§3 Data Model): the grounded
// variables, CPFs, reward, preconditions, and action states that the rest
// of the compiler pipeline reads and rewrites. Task is mutated in place
// across pipeline stages (§5: "the Task is uniquely owned by the
// pipeline") but every Expression subtree it references remains immutable,
// per the expr package's own contract.
package task

import (
	"fmt"
	"strings"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
)

// CachingMode selects how an evaluatable's precomputed results are stored
// (§4.7 "Caching mode").
type CachingMode int

const (
	CachingVector CachingMode = iota
	CachingMap
)

func (m CachingMode) String() string {
	if m == CachingVector {
		return "vector"
	}
	return "map"
}

// Thresholds above which an evaluatable's key space forces map-based
// caching instead of a preallocated vector (§4.7).
const (
	VectorCacheThreshold       = 1_000_000
	KleeneVectorCacheThreshold = 200_000
)

// StateBase is one (dependency index, hash base) pair recorded for an
// evaluatable's hash-key computation (§4.7 "State-fluent hash bases").
type StateBase struct {
	VarIndex int
	Base     int64
}

// HashMeta is the hash-key bookkeeping shared by every evaluatable kind
// (CPF, Reward, ActionPrecondition): its action-equivalence-class
// assignment, its state-fluent hash bases, and which caching mode it
// settled on (§4.7).
type HashMeta struct {
	ActionClassOf    map[int]int // ActionState.Index -> equivalence class index
	NumActionClasses int
	StateBases       []StateBase
	KeySpace         int64
	Mode             CachingMode
	KleeneKeySpace   int64
	KleeneMode       CachingMode
	Uncacheable      bool // overflow while computing a base (§7 Resource errors)
}

// StateFluent is a grounded state variable (§3 "Grounded Variable").
type StateFluent struct {
	Index        int
	Name         string // full name, e.g. "at(r1,c2)"
	InitialValue float64
	Domain       expr.Domain // I3: prefix of the nonnegative integers, contains InitialValue
}

// ActionFluent is a grounded action variable. IsFDR marks a fluent
// synthesized by §4.6's FDR Generator; FDROriginal names the binary
// fluents it replaces, in the order their values (1..n) represent them (a
// non-FDR fluent leaves this nil).
type ActionFluent struct {
	Index       int
	Name        string
	Domain      expr.Domain
	IsFDR       bool
	FDROriginal []string
}

// NonFluent is a grounded constant.
type NonFluent struct {
	Index int
	Name  string
	Value float64
}

// CPF is a grounded conditional probability function (§3 "CPF").
type CPF struct {
	Head            *StateFluent
	Formula         *expr.Expr
	Probabilistic   bool        // I4
	Determinization *expr.Expr  // I4: non-nil iff Probabilistic
	Domain          expr.Domain // filled by the Reachability Analyser

	// StateHashBase and KleeneHashBase are this CPF's multiplier in the
	// full-state (resp. Kleene-state) hash key, the running product of
	// prior CPFs' domain (resp. powerset) sizes (§4.7 "State hash").
	StateHashBase  int64
	KleeneHashBase int64

	Hash          HashMeta
	VectorTable   []float64
	MapTable      map[int]float64
	PDVectorTable []expr.PD
	PDMapTable    map[int]expr.PD
}

// Reward is the CPF-like reward entity (§3 "Reward"). Min/Max are cached
// once Domain is known; Invalidate clears the cache when Domain changes
// (the Reachability Analyser may revisit the reward's domain across fixed-
// point iterations).
type Reward struct {
	Formula *expr.Expr
	Domain  expr.Domain
	Hash    HashMeta

	VectorTable []float64
	MapTable    map[int]float64

	minCached *float64
	maxCached *float64
}

// MinCached returns the reward's minimum possible value, computed from
// Domain on first call and cached thereafter (mirrors the original
// preprocessor's separate min/max cache across repeated iterations,
// instead of recomputing from scratch every time).
func (r *Reward) MinCached() (float64, error) {
	if r.minCached != nil {
		return *r.minCached, nil
	}
	if len(r.Domain) == 0 {
		return 0, fmt.Errorf("reward: domain not yet computed")
	}
	v := r.Domain.Min()
	r.minCached = &v
	return v, nil
}

// MaxCached returns the reward's maximum possible value, cached like
// MinCached.
func (r *Reward) MaxCached() (float64, error) {
	if r.maxCached != nil {
		return *r.maxCached, nil
	}
	if len(r.Domain) == 0 {
		return 0, fmt.Errorf("reward: domain not yet computed")
	}
	v := r.Domain.Max()
	r.maxCached = &v
	return v, nil
}

// Invalidate drops the cached Min/Max, forcing recomputation from Domain
// on the next call.
func (r *Reward) Invalidate() {
	r.minCached = nil
	r.maxCached = nil
}

// PreconditionKind classifies an ActionPrecondition after simplification
// (§3 "ActionPrecondition").
type PreconditionKind int

const (
	PreconditionStateDependent PreconditionKind = iota
	PreconditionStateInvariant
	PreconditionStaticallyForbidden
)

// ActionPrecondition is a surviving state-action constraint. IsDynamic
// marks a precondition that references some state fluent (a true SAC that
// must be rechecked after every transition), as opposed to one that only
// ever restricts the legal action set for an already-fixed action.
type ActionPrecondition struct {
	Formula              *expr.Expr
	Kind                  PreconditionKind
	ForbiddenActionIndex int // valid iff Kind == PreconditionStaticallyForbidden
	IsDynamic            bool
	Hash                  HashMeta
}

// EvaluatableKind distinguishes the three kinds of formula the Hash-Key
// Generator assigns hash bases to (§4.7).
type EvaluatableKind int

const (
	EvaluatableCPF EvaluatableKind = iota
	EvaluatableReward
	EvaluatablePrecondition
)

// EvaluatableRef names one evaluatable by kind and, for CPF/Precondition,
// its index into Task.CPFs/Task.Preconditions (ignored for Reward, which is
// a singleton).
type EvaluatableRef struct {
	Kind  EvaluatableKind
	Index int
}

// ActionState is one legal joint action assignment (§3 "ActionState").
type ActionState struct {
	Index                  int
	Values                 []float64 // one entry per ActionFluent, in index order
	ActiveFluents          []int     // indices of nonzero entries
	RelevantPreconditions []int     // indices into Task.Preconditions
}

// groundedRef records what a grounded variable's full name resolves to,
// for Task.ResolveVariable (implementing expr.VariableResolver).
type groundedRef struct {
	kind        expr.VarKind
	index       int
	nonFluent   bool
	constantVal float64
}

// Task owns every grounded entity produced by the Instantiator and is
// mutated in place by every later pipeline stage (§3 "Task").
type Task struct {
	Name   string
	Symtab *symtab.Table

	StateFluents  []*StateFluent
	ActionFluents []*ActionFluent
	NonFluents    []*NonFluent

	CPFs          []*CPF // CPFs[i].Head == StateFluents[i] while both survive in lockstep
	Reward        *Reward
	Preconditions []*ActionPrecondition
	ActionStates  []*ActionState

	Horizon       int
	Discount      float64
	MaxConcurrent int

	DeterministicTask          bool
	StateHashingEnabled        bool
	KleeneHashingEnabled       bool
	EncounteredStatesCount     int
	RewardLockDetected         bool
	UnreasonableActionDetected bool
	UnreasonableActionPairs    map[[2]int]bool

	TrainingSet [][]float64

	// AffectedByStateFluent[j] lists every evaluatable whose hash key
	// depends on StateFluents[j], so a single write to v_j can update only
	// the hash keys it actually touches (§4.7 "evaluatables affected by
	// v_j"). Built by the Hash-Key Generator.
	AffectedByStateFluent [][]EvaluatableRef

	groundedNames map[string]groundedRef
}

// New creates an empty Task ready for the Instantiator to populate.
func New(name string, symbols *symtab.Table) *Task {
	return &Task{
		Name:                    name,
		Symtab:                  symbols,
		groundedNames:           make(map[string]groundedRef),
		UnreasonableActionPairs: make(map[[2]int]bool),
	}
}

// fullName assembles the canonical name of a grounded variable from its
// schema name and bound object names (§3: "a full name assembled from the
// schema name and the tuple of object names").
func fullName(schema string, objectNames []string) string {
	if len(objectNames) == 0 {
		return schema
	}
	return schema + "(" + strings.Join(objectNames, ",") + ")"
}

// RegisterStateFluent records a grounded StateFluent's full name so later
// UninstantiatedVariable references resolve to it.
func (t *Task) RegisterStateFluent(schema string, objectNames []string, index int) {
	t.groundedNames[fullName(schema, objectNames)] = groundedRef{kind: expr.VarKindState, index: index}
}

// RegisterActionFluent records a grounded ActionFluent's full name.
func (t *Task) RegisterActionFluent(schema string, objectNames []string, index int) {
	t.groundedNames[fullName(schema, objectNames)] = groundedRef{kind: expr.VarKindAction, index: index}
}

// RegisterNonFluent records a grounded NonFluent's full name and bound
// constant value.
func (t *Task) RegisterNonFluent(schema string, objectNames []string, value float64) {
	t.groundedNames[fullName(schema, objectNames)] = groundedRef{nonFluent: true, constantVal: value}
}

// ResolveVariable implements expr.VariableResolver, looking up a grounded
// variable by (schema name, bound object tuple) as Instantiate requires.
func (t *Task) ResolveVariable(schemaName string, objectNames []string) (expr.VarKind, int, float64, bool, error) {
	ref, ok := t.groundedNames[fullName(schemaName, objectNames)]
	if !ok {
		return 0, 0, 0, false, fmt.Errorf("undefined variable reference: %s", fullName(schemaName, objectNames))
	}
	if ref.nonFluent {
		return 0, 0, ref.constantVal, true, nil
	}
	return ref.kind, ref.index, 0, false, nil
}

// Env builds an expr.Env over a concrete state and action assignment,
// suitable for Evaluate/EvaluateToPD on this Task's CPFs/reward/
// preconditions.
func (t *Task) Env(state, action []float64) *expr.Env {
	nf := make([]float64, len(t.NonFluents))
	for i, n := range t.NonFluents {
		nf[i] = n.Value
	}
	return &expr.Env{State: state, Action: action, NonFluents: nf}
}

// InitialState returns the vector of StateFluent initial values, in index
// order.
func (t *Task) InitialState() []float64 {
	out := make([]float64, len(t.StateFluents))
	for i, sf := range t.StateFluents {
		out[i] = sf.InitialValue
	}
	return out
}

// RecomputeDeterministic sets DeterministicTask from the current CPFs,
// per I4: the task is deterministic iff no surviving CPF is probabilistic.
func (t *Task) RecomputeDeterministic() {
	for _, c := range t.CPFs {
		if c.Probabilistic {
			t.DeterministicTask = false
			return
		}
	}
	t.DeterministicTask = true
}

// Package expr implements the polymorphic expression algebra described in
// §4.1: a single tagged sum type for logical/arithmetic/probabilistic
// formulas, with one implementation per generic operation that dispatches
// on the node's Kind rather than dozens of per-class visitor methods. Every
// operation that rewrites a tree returns a freshly allocated tree; no
// *Expr is ever mutated after construction, so subtrees may be shared
// freely between parents (see Intern).
package expr

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Kind discriminates the variant an *Expr node holds. Every generic
// operation in this package is a total function of Kind by exhaustive
// switch. The compiler does not flag a Kind that a switch leaves out; in
// Evaluate, EvaluateToKleene, CalculateDomain and DeterminizeMostLikely such
// a Kind reaches the default branch, which returns an "unsupported kind"
// error at run time.
type Kind int

const (
	// Leaves
	KindConstant Kind = iota
	KindStateFluentRef
	KindActionFluentRef
	KindNonFluentRef
	KindParameterRef // schematic-only: an unbound Parameter or quantifier binder name
	KindObjectRef    // schematic-only: a Parameter already bound to a concrete Object

	// n-ary connectives (§3 Logical Expression)
	KindConjunction
	KindDisjunction
	KindAddition
	KindSubtraction
	KindMultiplication
	KindDivision
	KindEquals
	KindGreater
	KindLower
	KindGreaterEqual
	KindLowerEqual

	// unary
	KindNegation
	KindExponential

	// probabilistic constructors
	KindBernoulli
	KindDiscrete

	// conditional constructors
	KindIfThenElse
	KindMultiConditionChecker

	// schematic-only quantifiers
	KindUninstantiatedVariable
	KindSum
	KindProduct
	KindForall
	KindExists
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindStateFluentRef:
		return "state-fluent"
	case KindActionFluentRef:
		return "action-fluent"
	case KindNonFluentRef:
		return "non-fluent"
	case KindParameterRef:
		return "parameter"
	case KindObjectRef:
		return "object"
	case KindConjunction:
		return "and"
	case KindDisjunction:
		return "or"
	case KindAddition:
		return "+"
	case KindSubtraction:
		return "-"
	case KindMultiplication:
		return "*"
	case KindDivision:
		return "/"
	case KindEquals:
		return "=="
	case KindGreater:
		return ">"
	case KindLower:
		return "<"
	case KindGreaterEqual:
		return ">="
	case KindLowerEqual:
		return "<="
	case KindNegation:
		return "~"
	case KindExponential:
		return "exp"
	case KindBernoulli:
		return "Bernoulli"
	case KindDiscrete:
		return "Discrete"
	case KindIfThenElse:
		return "if"
	case KindMultiConditionChecker:
		return "switch"
	case KindUninstantiatedVariable:
		return "uninstantiated-variable"
	case KindSum:
		return "sum"
	case KindProduct:
		return "prod"
	case KindForall:
		return "forall"
	case KindExists:
		return "exists"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Binder is a quantifier's (parameter name, ranging-type name) pair, e.g.
// `?x : type1` in `forall_{?x : type1} ...`.
type Binder struct {
	Param string
	Type  string
}

// DiscreteBranch is one (value, probability) pair of a Discrete
// distribution constructor.
type DiscreteBranch struct {
	Value *Expr
	Prob  *Expr
}

// Branch is one (guard, effect) pair of a MultiConditionChecker. The final
// branch's Guard is always the NumericConstant 1, guaranteeing totality.
type Branch struct {
	Guard  *Expr
	Effect *Expr
}

// Expr is the single recursive sum type every formula in the compiler is
// built from. Only the fields relevant to Kind are populated; which fields
// apply to which Kind is documented per-field below. Expr values are
// immutable once constructed: every rewrite in this package builds and
// returns a new *Expr.
type Expr struct {
	Kind Kind

	// KindConstant
	Const float64

	// KindStateFluentRef / KindActionFluentRef / KindNonFluentRef: the
	// grounded variable's canonical index within its kind (§3 Grounded
	// Variable).
	VarIndex int
	VarName  string // retained for diagnostics and the prefix printer

	// KindParameterRef
	ParamName string

	// KindObjectRef
	ObjectName string
	ObjectType string

	// KindConjunction, KindDisjunction, KindAddition, KindSubtraction,
	// KindMultiplication, KindDivision, KindEquals, KindGreater, KindLower,
	// KindGreaterEqual, KindLowerEqual: operands, left to right.
	// KindNegation, KindExponential: operands[0] is the sole operand.
	// KindIfThenElse: operands = [cond, then, else].
	Args []*Expr

	// KindBernoulli: operands[0] is the success-probability expression.
	// (reuses Args[0])

	// KindDiscrete
	DiscreteBranches []DiscreteBranch

	// KindMultiConditionChecker
	Branches []Branch

	// KindUninstantiatedVariable
	SchemaName string
	SchemaArgs []*Expr // Parameter/Object leaves bound to the schema's params

	// KindSum, KindProduct, KindForall, KindExists
	Binders []Binder
	Body    *Expr
}

// --- interning of frequent literals (§9 "Shared subexpressions") ---

var (
	// Zero, One, True and False are shared, stable constant nodes. All
	// other subtree sharing in this package is incidental (callers may
	// reuse a returned *Expr as a child of multiple parents) but never
	// required; these four are the only nodes guaranteed to be returned
	// by identity across calls.
	Zero  = &Expr{Kind: KindConstant, Const: 0}
	One   = &Expr{Kind: KindConstant, Const: 1}
	True  = One
	False = Zero
)

// Constant returns a NumericConstant node. Frequent literals 0 and 1 are
// interned to the shared Zero/One nodes.
func Constant(v float64) *Expr {
	if v == 0 {
		return Zero
	}
	if v == 1 {
		return One
	}
	return &Expr{Kind: KindConstant, Const: v}
}

// IsConstant reports whether e is a NumericConstant, and if so its value.
func IsConstant(e *Expr) (float64, bool) {
	if e.Kind == KindConstant {
		return e.Const, true
	}
	return 0, false
}

// StateFluentRef, ActionFluentRef and NonFluentRef construct leaf
// references to grounded variables by canonical index.
func StateFluentRef(index int, name string) *Expr {
	return &Expr{Kind: KindStateFluentRef, VarIndex: index, VarName: name}
}

func ActionFluentRef(index int, name string) *Expr {
	return &Expr{Kind: KindActionFluentRef, VarIndex: index, VarName: name}
}

func NonFluentRef(index int, name string) *Expr {
	return &Expr{Kind: KindNonFluentRef, VarIndex: index, VarName: name}
}

// ParameterRef constructs a schematic-only Parameter/binder leaf.
func ParameterRef(name string) *Expr {
	return &Expr{Kind: KindParameterRef, ParamName: name}
}

// ObjectRef constructs a schematic-only leaf for a Parameter already bound
// to a concrete Object.
func ObjectRef(objectName, typeName string) *Expr {
	return &Expr{Kind: KindObjectRef, ObjectName: objectName, ObjectType: typeName}
}

// NAry constructs an n-ary connective node (Conjunction, Disjunction,
// Addition, Subtraction, Multiplication, Division, or a comparison).
func NAry(kind Kind, args ...*Expr) *Expr {
	return &Expr{Kind: kind, Args: args}
}

// Unary constructs a Negation or Exponential node.
func Unary(kind Kind, arg *Expr) *Expr {
	return &Expr{Kind: kind, Args: []*Expr{arg}}
}

// Bernoulli constructs a Bernoulli(p) node.
func Bernoulli(p *Expr) *Expr {
	return &Expr{Kind: KindBernoulli, Args: []*Expr{p}}
}

// Discrete constructs a Discrete({(v_i,p_i)}) node.
func Discrete(branches []DiscreteBranch) *Expr {
	return &Expr{Kind: KindDiscrete, DiscreteBranches: branches}
}

// IfThenElse constructs an IfThenElse(cond, then, els) node.
func IfThenElse(cond, then, els *Expr) *Expr {
	return &Expr{Kind: KindIfThenElse, Args: []*Expr{cond, then, els}}
}

// MultiConditionChecker constructs a guarded-effect chain. The caller is
// responsible for ensuring the final branch's Guard is the constant 1;
// Simplify relies on this invariant (§3 CPF, I1-adjacent totality guarantee).
func MultiConditionChecker(branches []Branch) *Expr {
	return &Expr{Kind: KindMultiConditionChecker, Branches: branches}
}

// UninstantiatedVariable constructs a schematic reference to a variable
// schema with the given (still possibly schematic) argument expressions.
func UninstantiatedVariable(schemaName string, args []*Expr) *Expr {
	return &Expr{Kind: KindUninstantiatedVariable, SchemaName: schemaName, SchemaArgs: args}
}

// Quantifier constructs a Sum/Product/Forall/Exists node.
func Quantifier(kind Kind, binders []Binder, body *Expr) *Expr {
	return &Expr{Kind: kind, Binders: binders, Body: body}
}

// --- structural equality and hashing ---

// Equal reports whether a and b denote the same tree shape, recursively,
// ignoring pointer identity (§9: "Equality between expressions used for
// canonicalization is structural, not identity-based.").
func Equal(a, b *Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindConstant:
		return a.Const == b.Const
	case KindStateFluentRef, KindActionFluentRef, KindNonFluentRef:
		return a.VarIndex == b.VarIndex
	case KindParameterRef:
		return a.ParamName == b.ParamName
	case KindObjectRef:
		return a.ObjectName == b.ObjectName && a.ObjectType == b.ObjectType
	case KindDiscrete:
		if len(a.DiscreteBranches) != len(b.DiscreteBranches) {
			return false
		}
		for i := range a.DiscreteBranches {
			if !Equal(a.DiscreteBranches[i].Value, b.DiscreteBranches[i].Value) ||
				!Equal(a.DiscreteBranches[i].Prob, b.DiscreteBranches[i].Prob) {
				return false
			}
		}
		return true
	case KindMultiConditionChecker:
		if len(a.Branches) != len(b.Branches) {
			return false
		}
		for i := range a.Branches {
			if !Equal(a.Branches[i].Guard, b.Branches[i].Guard) ||
				!Equal(a.Branches[i].Effect, b.Branches[i].Effect) {
				return false
			}
		}
		return true
	case KindUninstantiatedVariable:
		if a.SchemaName != b.SchemaName || len(a.SchemaArgs) != len(b.SchemaArgs) {
			return false
		}
		for i := range a.SchemaArgs {
			if !Equal(a.SchemaArgs[i], b.SchemaArgs[i]) {
				return false
			}
		}
		return true
	case KindSum, KindProduct, KindForall, KindExists:
		if len(a.Binders) != len(b.Binders) || !Equal(a.Body, b.Body) {
			return false
		}
		for i := range a.Binders {
			if a.Binders[i] != b.Binders[i] {
				return false
			}
		}
		return true
	default:
		if len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	}
}

// StructuralHash returns a content hash over the canonical shape of e,
// using xxhash (grounded on the go-mysql-server example's hashing stack).
// Structurally equal trees hash equally; unequal trees may collide, so a
// matching hash alone does not prove equality (Equal does). Nothing else in
// this module calls it: the Simplifier's fixed-point check uses Equal
// directly, and constants are not interned through it.
func StructuralHash(e *Expr) uint64 {
	d := xxhash.New()
	hashInto(d, e)
	return d.Sum64()
}

func hashInto(d *xxhash.Digest, e *Expr) {
	if e == nil {
		d.Write([]byte{0xff})
		return
	}
	var kindByte [1]byte
	kindByte[0] = byte(e.Kind)
	d.Write(kindByte[:])
	switch e.Kind {
	case KindConstant:
		fmt.Fprintf(d, "%g", e.Const)
	case KindStateFluentRef, KindActionFluentRef, KindNonFluentRef:
		fmt.Fprintf(d, "%d", e.VarIndex)
	case KindParameterRef:
		d.WriteString(e.ParamName)
	case KindObjectRef:
		d.WriteString(e.ObjectName)
		d.WriteString(e.ObjectType)
	case KindDiscrete:
		for _, br := range e.DiscreteBranches {
			hashInto(d, br.Value)
			hashInto(d, br.Prob)
		}
	case KindMultiConditionChecker:
		for _, br := range e.Branches {
			hashInto(d, br.Guard)
			hashInto(d, br.Effect)
		}
	case KindUninstantiatedVariable:
		d.WriteString(e.SchemaName)
		for _, a := range e.SchemaArgs {
			hashInto(d, a)
		}
	case KindSum, KindProduct, KindForall, KindExists:
		for _, b := range e.Binders {
			d.WriteString(b.Param)
			d.WriteString(b.Type)
		}
		hashInto(d, e.Body)
	default:
		for _, a := range e.Args {
			hashInto(d, a)
		}
	}
}

// Domain is an ordered set of numeric values a StateFluent or evaluatable
// can take. Invariant I3 requires a StateFluent's Domain to be a prefix of
// the nonnegative integers; Domain itself makes no such assumption so it
// can also represent interval/Kleene overapproximations mid-analysis.
type Domain []float64

// NewDomain returns a Domain containing the deduplicated, sorted values.
func NewDomain(values ...float64) Domain {
	seen := make(map[float64]struct{}, len(values))
	out := make(Domain, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// Contains reports whether v is a member of d.
func (d Domain) Contains(v float64) bool {
	i := sort.SearchFloat64s(d, v)
	return i < len(d) && d[i] == v
}

// Union returns the sorted deduplicated union of d and other.
func (d Domain) Union(other Domain) Domain {
	return NewDomain(append(append(Domain{}, d...), other...)...)
}

// Min and Max return the domain's extremes. Both panic on an empty domain;
// callers must check len(d) first (an empty reachable domain signals an
// inconsistent/unreachable fluent and is always a bug at this stage).
func (d Domain) Min() float64 { return d[0] }
func (d Domain) Max() float64 { return d[len(d)-1] }

// Equal reports whether d and other contain the same values.
func (d Domain) Equal(other Domain) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

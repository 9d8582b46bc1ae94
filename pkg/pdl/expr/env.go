package expr

import "fmt"

// Env is the evaluation context passed to Evaluate, EvaluateToPD and
// EvaluateToKleene: the current values of every grounded state fluent,
// action fluent and non-fluent, indexed by their canonical index (§3
// Grounded Variable). expr cannot import the task package (task imports
// expr for CPF/Reward formulas), so Env is the narrow interface the two
// packages share instead of a direct dependency on task.Task.
type Env struct {
	State      []float64
	Action     []float64
	NonFluents []float64
}

// VarKind distinguishes which grounded-variable table a reference indexes
// into, for the leaf Kinds that carry a VarIndex.
type VarKind int

const (
	VarKindState VarKind = iota
	VarKindAction
	VarKindNonFluent
)

// VariableResolver looks up a grounded variable by schema name and bound
// Object tuple, as required by Instantiate (§4.1: "For UninstantiatedVariable
// leaves, looks up the grounded variable in the Task by (schema, bound-object
// tuple)"). Implemented by task.Task; kept as an interface here so this
// package never imports task.
type VariableResolver interface {
	// ResolveVariable returns either a grounded variable reference (kind,
	// index) or, for a non-fluent, its constant value directly.
	ResolveVariable(schemaName string, objectNames []string) (kind VarKind, index int, nonFluentValue float64, isNonFluent bool, err error)
}

// QuantifierInstantiator supplies the object universe a quantifier binder
// ranges over, as required by ReplaceQuantifier (§4.1). Implemented by
// symtab.Table.
type QuantifierInstantiator interface {
	ObjectNamesOf(typeName string) ([]string, error)
}

func (e *Expr) leafString() string {
	switch e.Kind {
	case KindConstant:
		return fmt.Sprintf("%g", e.Const)
	case KindStateFluentRef:
		return fmt.Sprintf("$s(%d)", e.VarIndex)
	case KindActionFluentRef:
		return fmt.Sprintf("$a(%d)", e.VarIndex)
	case KindNonFluentRef:
		return fmt.Sprintf("$c(%d)", e.VarIndex)
	case KindParameterRef:
		return "?" + e.ParamName
	case KindObjectRef:
		return e.ObjectName
	default:
		return e.Kind.String()
	}
}

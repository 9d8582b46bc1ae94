// Package instantiate implements the Instantiator (§4.2): it turns a
// parsed, schematic inputmodel.Domain into a fully grounded task.Task by
// enumerating cartesian products of parameter-type object universes,
// eliminating quantifiers, and resolving every UninstantiatedVariable leaf
// to a concrete grounded variable.
package instantiate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prost-planner/rddlc/internal/inputmodel"
	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// kindByToken reverses expr.Kind.String() for the operator tokens the
// inputmodel's FormulaNode.Op field carries.
var kindByToken = map[string]expr.Kind{
	"and": expr.KindConjunction, "or": expr.KindDisjunction,
	"+": expr.KindAddition, "-": expr.KindSubtraction,
	"*": expr.KindMultiplication, "/": expr.KindDivision,
	"==": expr.KindEquals, ">": expr.KindGreater, "<": expr.KindLower,
	">=": expr.KindGreaterEqual, "<=": expr.KindLowerEqual,
	"~": expr.KindNegation, "exp": expr.KindExponential,
	"Bernoulli": expr.KindBernoulli, "Discrete": expr.KindDiscrete,
	"if": expr.KindIfThenElse, "switch": expr.KindMultiConditionChecker,
	"sum": expr.KindSum, "prod": expr.KindProduct,
	"forall": expr.KindForall, "exists": expr.KindExists,
}

// BuildSchematicExpr converts a parsed inputmodel.FormulaNode into a
// schematic (pre-grounding) *expr.Expr, ready for ReplaceQuantifier and
// Instantiate.
func BuildSchematicExpr(n *inputmodel.FormulaNode) (*expr.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("nil formula node")
	}
	switch n.Op {
	case "const":
		return expr.Constant(n.Const), nil
	case "param":
		return expr.ParameterRef(n.Name), nil
	case "var":
		args := make([]*expr.Expr, len(n.Args))
		for i, a := range n.Args {
			sub, err := BuildSchematicExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = sub
		}
		return expr.UninstantiatedVariable(n.Name, args), nil
	case "Bernoulli":
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("Bernoulli expects 1 argument, got %d", len(n.Args))
		}
		p, err := BuildSchematicExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		return expr.Bernoulli(p), nil
	case "Discrete":
		branches := make([]expr.DiscreteBranch, len(n.Branches))
		for i, br := range n.Branches {
			v, err := BuildSchematicExpr(br.Value)
			if err != nil {
				return nil, err
			}
			p, err := BuildSchematicExpr(br.Prob)
			if err != nil {
				return nil, err
			}
			branches[i] = expr.DiscreteBranch{Value: v, Prob: p}
		}
		return expr.Discrete(branches), nil
	case "if":
		if len(n.Args) != 3 {
			return nil, fmt.Errorf("if expects 3 arguments, got %d", len(n.Args))
		}
		cond, err := BuildSchematicExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		then, err := BuildSchematicExpr(n.Args[1])
		if err != nil {
			return nil, err
		}
		els, err := BuildSchematicExpr(n.Args[2])
		if err != nil {
			return nil, err
		}
		return expr.IfThenElse(cond, then, els), nil
	case "switch":
		branches := make([]expr.Branch, len(n.GuardedBranches))
		for i, br := range n.GuardedBranches {
			g, err := BuildSchematicExpr(br.Guard)
			if err != nil {
				return nil, err
			}
			eff, err := BuildSchematicExpr(br.Effect)
			if err != nil {
				return nil, err
			}
			branches[i] = expr.Branch{Guard: g, Effect: eff}
		}
		return expr.MultiConditionChecker(branches), nil
	case "sum", "prod", "forall", "exists":
		kind := kindByToken[n.Op]
		binders := make([]expr.Binder, len(n.Binders))
		for i, b := range n.Binders {
			binders[i] = expr.Binder{Param: b.Param, Type: b.Type}
		}
		body, err := BuildSchematicExpr(n.Body)
		if err != nil {
			return nil, err
		}
		return expr.Quantifier(kind, binders, body), nil
	default:
		kind, ok := kindByToken[n.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported input formula operator %q", n.Op)
		}
		args := make([]*expr.Expr, len(n.Args))
		for i, a := range n.Args {
			sub, err := BuildSchematicExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = sub
		}
		return &expr.Expr{Kind: kind, Args: args}, nil
	}
}

// objectTuples returns the cartesian product of each paramType's object
// universe, in lexicographic order over the parameter list (the first
// parameter varies slowest), per §4.2's instantiate_params.
func objectTuples(symbols *symtab.Table, paramTypes []string) ([][]string, error) {
	if len(paramTypes) == 0 {
		return [][]string{{}}, nil
	}
	universes := make([][]string, len(paramTypes))
	for i, pt := range paramTypes {
		typ, err := symbols.Type(pt)
		if err != nil {
			return nil, fmt.Errorf("unknown parameter type %q: %w", pt, err)
		}
		objs := symbols.AllObjectsOf(typ)
		names := make([]string, len(objs))
		for j, o := range objs {
			names[j] = o.Name
		}
		universes[i] = names
	}
	var out [][]string
	var walk func(idx int, cur []string)
	walk = func(idx int, cur []string) {
		if idx == len(universes) {
			tuple := make([]string, len(cur))
			copy(tuple, cur)
			out = append(out, tuple)
			return
		}
		for _, name := range universes[idx] {
			walk(idx+1, append(cur, name))
		}
	}
	walk(0, nil)
	return out, nil
}

func fullName(schema string, objects []string) string {
	if len(objects) == 0 {
		return schema
	}
	return schema + "(" + strings.Join(objects, ",") + ")"
}

func valueTypeDomain(symbols *symtab.Table, valueType string) (expr.Domain, error) {
	switch valueType {
	case "bool":
		return expr.NewDomain(0, 1), nil
	case "int", "real":
		return nil, nil // unbounded/unknown until the Reachability Analyser runs
	default:
		typ, err := symbols.Type(valueType)
		if err != nil {
			return nil, fmt.Errorf("unknown value type %q: %w", valueType, err)
		}
		objs := symbols.AllObjectsOf(typ)
		vals := make([]float64, len(objs))
		for i := range objs {
			vals[i] = float64(i)
		}
		return expr.NewDomain(vals...), nil
	}
}

// groundedVar is a pending grounded variable before its canonical index is
// assigned (I2 requires a global lexicographic sort per kind first).
type groundedVar struct {
	name    string
	decl    inputmodel.VariableDecl
	objects []string
}

// Run grounds domain into a fresh task.Task. symbols must already have
// every Type declared from domain.Types before calling Run (the caller
// owns type/object declaration so the same Table can be reused across
// tooling that needs it before grounding, e.g. tests).
func Run(domain *inputmodel.Domain, symbols *symtab.Table) (*task.Task, error) {
	t := task.New(domain.Name, symbols)

	var stateVars, actionVars, nonFluentVars []groundedVar
	declByName := make(map[string]inputmodel.VariableDecl, len(domain.Variables))
	for _, v := range domain.Variables {
		declByName[v.Name] = v
		tuples, err := objectTuples(symbols, v.ParamTypes)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		for _, objs := range tuples {
			gv := groundedVar{name: fullName(v.Name, objs), decl: v, objects: objs}
			switch v.Kind {
			case inputmodel.KindStateFluent:
				stateVars = append(stateVars, gv)
			case inputmodel.KindActionFluent:
				actionVars = append(actionVars, gv)
			case inputmodel.KindNonFluent:
				nonFluentVars = append(nonFluentVars, gv)
			case inputmodel.KindInterm:
				return nil, fmt.Errorf("interm-fluent %q: unsupported (no downstream consumer in this pipeline)", v.Name)
			default:
				return nil, fmt.Errorf("variable %q: unknown kind %q", v.Name, v.Kind)
			}
		}
	}

	sortByName := func(vs []groundedVar) {
		sort.Slice(vs, func(i, j int) bool { return vs[i].name < vs[j].name })
	}
	sortByName(stateVars)
	sortByName(actionVars)
	sortByName(nonFluentVars)

	nonFluentValue := make(map[string]float64, len(domain.NonFluents))
	for _, b := range domain.NonFluents {
		nonFluentValue[fullName(b.Name, b.Objects)] = b.Value
	}

	for i, gv := range stateVars {
		dom, err := valueTypeDomain(symbols, gv.decl.ValueType)
		if err != nil {
			return nil, err
		}
		if dom == nil {
			dom = expr.NewDomain(gv.decl.InitialValue)
		} else if !dom.Contains(gv.decl.InitialValue) {
			return nil, fmt.Errorf("state-fluent %q: initial value %v not in declared domain", gv.name, gv.decl.InitialValue)
		}
		sf := &task.StateFluent{Index: i, Name: gv.name, InitialValue: gv.decl.InitialValue, Domain: dom}
		t.StateFluents = append(t.StateFluents, sf)
		t.RegisterStateFluent(gv.decl.Name, gv.objects, i)
	}
	for i, gv := range actionVars {
		dom, err := valueTypeDomain(symbols, gv.decl.ValueType)
		if err != nil {
			return nil, err
		}
		if dom == nil {
			dom = expr.NewDomain(0, 1)
		}
		af := &task.ActionFluent{Index: i, Name: gv.name, Domain: dom}
		t.ActionFluents = append(t.ActionFluents, af)
		t.RegisterActionFluent(gv.decl.Name, gv.objects, i)
	}
	for i, gv := range nonFluentVars {
		v, ok := nonFluentValue[gv.name]
		if !ok {
			v = gv.decl.InitialValue
		}
		nf := &task.NonFluent{Index: i, Name: gv.name, Value: v}
		t.NonFluents = append(t.NonFluents, nf)
		t.RegisterNonFluent(gv.decl.Name, gv.objects, v)
	}

	cpfByHead := make(map[string]*inputmodel.CPFDecl, len(domain.CPFs))
	for i := range domain.CPFs {
		c := &domain.CPFs[i]
		if _, dup := cpfByHead[c.Head]; dup {
			return nil, fmt.Errorf("duplicate CPF definition for %q", c.Head)
		}
		cpfByHead[c.Head] = c
	}

	t.CPFs = make([]*task.CPF, len(stateVars))
	for idx, gv := range stateVars {
		cdecl, ok := cpfByHead[gv.decl.Name]
		if !ok {
			return nil, fmt.Errorf("state-fluent %q has no CPF", gv.decl.Name)
		}
		schematic, err := BuildSchematicExpr(cdecl.Formula)
		if err != nil {
			return nil, fmt.Errorf("CPF %q: %w", cdecl.Head, err)
		}
		replaced, err := expr.ReplaceQuantifier(schematic, map[string]expr.Binding{}, symbols)
		if err != nil {
			return nil, fmt.Errorf("CPF %q: %w", cdecl.Head, err)
		}
		bindings := make(map[string]expr.Binding, len(cdecl.HeadParams))
		for i, p := range cdecl.HeadParams {
			if i >= len(gv.objects) {
				return nil, fmt.Errorf("CPF %q: wrong parameter arity", cdecl.Head)
			}
			typeName := ""
			if i < len(gv.decl.ParamTypes) {
				typeName = gv.decl.ParamTypes[i]
			}
			bindings[p] = expr.Binding{ObjectName: gv.objects[i], TypeName: typeName}
		}
		formula, err := expr.Instantiate(replaced, t, bindings)
		if err != nil {
			return nil, fmt.Errorf("CPF %q: %w", cdecl.Head, err)
		}
		t.CPFs[idx] = &task.CPF{
			Head:          t.StateFluents[idx],
			Formula:       formula,
			Probabilistic: containsProbabilistic(formula),
		}
	}
	t.RecomputeDeterministic()

	if domain.Reward != nil {
		schematic, err := BuildSchematicExpr(domain.Reward)
		if err != nil {
			return nil, fmt.Errorf("reward: %w", err)
		}
		replaced, err := expr.ReplaceQuantifier(schematic, map[string]expr.Binding{}, symbols)
		if err != nil {
			return nil, fmt.Errorf("reward: %w", err)
		}
		formula, err := expr.Instantiate(replaced, t, map[string]expr.Binding{})
		if err != nil {
			return nil, fmt.Errorf("reward: %w", err)
		}
		t.Reward = &task.Reward{Formula: formula}
	}

	var preconditions []*task.ActionPrecondition
	for i, p := range domain.Preconditions {
		schematic, err := BuildSchematicExpr(p)
		if err != nil {
			return nil, fmt.Errorf("precondition %d: %w", i, err)
		}
		replaced, err := expr.ReplaceQuantifier(schematic, map[string]expr.Binding{}, symbols)
		if err != nil {
			return nil, fmt.Errorf("precondition %d: %w", i, err)
		}
		formula, err := expr.Instantiate(replaced, t, map[string]expr.Binding{})
		if err != nil {
			return nil, fmt.Errorf("precondition %d: %w", i, err)
		}
		preconditions = append(preconditions, &task.ActionPrecondition{Formula: formula, Kind: task.PreconditionStateDependent})
	}

	t.Preconditions, t.MaxConcurrent = recognizeConcurrencyBound(preconditions, len(t.ActionFluents))
	if domain.MaxConcurrent > 0 && domain.MaxConcurrent < t.MaxConcurrent {
		t.MaxConcurrent = domain.MaxConcurrent
	}
	t.Horizon = domain.Horizon
	t.Discount = domain.Discount
	return t, nil
}

func containsProbabilistic(e *expr.Expr) bool {
	if e == nil {
		return false
	}
	if e.Kind == expr.KindBernoulli || e.Kind == expr.KindDiscrete {
		return true
	}
	for _, a := range e.Args {
		if containsProbabilistic(a) {
			return true
		}
	}
	for _, br := range e.DiscreteBranches {
		if containsProbabilistic(br.Value) || containsProbabilistic(br.Prob) {
			return true
		}
	}
	for _, br := range e.Branches {
		if containsProbabilistic(br.Guard) || containsProbabilistic(br.Effect) {
			return true
		}
	}
	return false
}

// recognizeConcurrencyBound implements §4.2 step 5: a precondition of the
// form `sum(a_1, ..., a_n) <= k` over exactly the task's own action-fluent
// vector is converted into the concurrency bound and dropped from the
// precondition list. If no such pattern is found, the bound defaults to
// the total number of action fluents (the boundary case in §8: "The
// concurrency bound is clamped to the number of action variables").
func recognizeConcurrencyBound(preconditions []*task.ActionPrecondition, numActions int) ([]*task.ActionPrecondition, int) {
	bound := numActions
	var kept []*task.ActionPrecondition
	for _, p := range preconditions {
		if k, ok := matchConcurrencyPattern(p.Formula, numActions); ok {
			if k < bound {
				bound = k
			}
			continue
		}
		kept = append(kept, p)
	}
	return kept, bound
}

// matchConcurrencyPattern recognizes `sum(a_i) <= k` in any of the forms
// the grounded comparison can take: `sum(a_i) <= k`, the operand-swapped
// `k >= sum(a_i)`, and the strict `sum(a_i) < k+1` (i.e. k+1 exclusive).
func matchConcurrencyPattern(e *expr.Expr, numActions int) (int, bool) {
	sum, k, ok := normalizeConcurrencyComparison(e)
	if !ok || sum.Kind != expr.KindAddition {
		return 0, false
	}
	seen := make(map[int]bool)
	for _, a := range sum.Args {
		if a.Kind != expr.KindActionFluentRef {
			return 0, false
		}
		seen[a.VarIndex] = true
	}
	if len(seen) != numActions {
		return 0, false
	}
	return k, true
}

// normalizeConcurrencyComparison rewrites a two-operand comparison into
// (sum-expression, bound) form, or reports it does not match any
// recognized shape.
func normalizeConcurrencyComparison(e *expr.Expr) (*expr.Expr, int, bool) {
	if len(e.Args) != 2 {
		return nil, 0, false
	}
	switch e.Kind {
	case expr.KindLowerEqual:
		// sum(a_i) <= k
		if k, ok := expr.IsConstant(e.Args[1]); ok {
			return e.Args[0], int(k), true
		}
	case expr.KindGreaterEqual:
		// k >= sum(a_i)
		if k, ok := expr.IsConstant(e.Args[0]); ok {
			return e.Args[1], int(k), true
		}
	case expr.KindLower:
		// sum(a_i) < k+1  ==  sum(a_i) <= k
		if kPlusOne, ok := expr.IsConstant(e.Args[1]); ok {
			return e.Args[0], int(kPlusOne) - 1, true
		}
	}
	return nil, 0, false
}

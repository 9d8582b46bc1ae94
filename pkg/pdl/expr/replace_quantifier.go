package expr

import "fmt"

// Binding records a Parameter name bound to a concrete Object, carrying
// both the object's own name and its declared type name (the latter is
// needed to rebuild an ObjectRef leaf and to resolve further nested
// quantifiers over the same type).
type Binding struct {
	ObjectName string
	TypeName   string
}

// quantifierKindFor maps a quantifier Kind to the n-ary connective its
// expansion produces: Sum/Product/Forall/Exists expand into n-ary
// Addition/Multiplication/Conjunction/Disjunction respectively (§4.1).
func quantifierKindFor(k Kind) (Kind, error) {
	switch k {
	case KindSum:
		return KindAddition, nil
	case KindProduct:
		return KindMultiplication, nil
	case KindForall:
		return KindConjunction, nil
	case KindExists:
		return KindDisjunction, nil
	default:
		return 0, fmt.Errorf("not a quantifier kind: %v", k)
	}
}

// ReplaceQuantifier implements §4.1's replace_quantifier: given a map from
// parameter name to Object, it replaces matching Parameter leaves by the
// bound Object and expands quantifiers over the cartesian product of their
// binders' object universes. The bindings map is copied on each recursive
// descent into a quantifier body (never shared) so that a binder can shadow
// an outer parameter of the same name without corrupting the caller's map
// (§9 "Quantifier scoping").
func ReplaceQuantifier(e *Expr, bindings map[string]Binding, inst QuantifierInstantiator) (*Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case KindParameterRef:
		if b, ok := bindings[e.ParamName]; ok {
			return ObjectRef(b.ObjectName, b.TypeName), nil
		}
		return e, nil
	case KindSum, KindProduct, KindForall, KindExists:
		return expandQuantifier(e, bindings, inst)
	case KindUninstantiatedVariable:
		args := make([]*Expr, len(e.SchemaArgs))
		for i, a := range e.SchemaArgs {
			r, err := ReplaceQuantifier(a, bindings, inst)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return UninstantiatedVariable(e.SchemaName, args), nil
	case KindDiscrete:
		branches := make([]DiscreteBranch, len(e.DiscreteBranches))
		for i, br := range e.DiscreteBranches {
			v, err := ReplaceQuantifier(br.Value, bindings, inst)
			if err != nil {
				return nil, err
			}
			p, err := ReplaceQuantifier(br.Prob, bindings, inst)
			if err != nil {
				return nil, err
			}
			branches[i] = DiscreteBranch{Value: v, Prob: p}
		}
		return Discrete(branches), nil
	case KindMultiConditionChecker:
		branches := make([]Branch, len(e.Branches))
		for i, br := range e.Branches {
			g, err := ReplaceQuantifier(br.Guard, bindings, inst)
			if err != nil {
				return nil, err
			}
			eff, err := ReplaceQuantifier(br.Effect, bindings, inst)
			if err != nil {
				return nil, err
			}
			branches[i] = Branch{Guard: g, Effect: eff}
		}
		return MultiConditionChecker(branches), nil
	case KindConstant, KindStateFluentRef, KindActionFluentRef, KindNonFluentRef, KindObjectRef:
		return e, nil
	default:
		args := make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			r, err := ReplaceQuantifier(a, bindings, inst)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return &Expr{Kind: e.Kind, Args: args}, nil
	}
}

// expandQuantifier expands a single Sum/Product/Forall/Exists node into the
// n-ary connective over every instance in the cartesian product of its
// binders' object universes.
func expandQuantifier(e *Expr, bindings map[string]Binding, inst QuantifierInstantiator) (*Expr, error) {
	connective, err := quantifierKindFor(e.Kind)
	if err != nil {
		return nil, err
	}

	// universes[i] holds the object names the i-th binder ranges over.
	universes := make([][]string, len(e.Binders))
	for i, b := range e.Binders {
		names, err := inst.ObjectNamesOf(b.Type)
		if err != nil {
			return nil, fmt.Errorf("quantifier over unknown type %q: %w", b.Type, err)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("quantifier binder %q ranges over empty type %q", b.Param, b.Type)
		}
		universes[i] = names
	}

	var instances []*Expr
	var walk func(idx int, scoped map[string]Binding) error
	walk = func(idx int, scoped map[string]Binding) error {
		if idx == len(e.Binders) {
			body, err := ReplaceQuantifier(e.Body, scoped, inst)
			if err != nil {
				return err
			}
			instances = append(instances, body)
			return nil
		}
		binder := e.Binders[idx]
		for _, objName := range universes[idx] {
			// Copy the scope on every recursive descent: a binder may
			// shadow an outer parameter of the same name, and sibling
			// branches of the cartesian product must not see each
			// other's bindings.
			next := make(map[string]Binding, len(scoped)+1)
			for k, v := range scoped {
				next[k] = v
			}
			next[binder.Param] = Binding{ObjectName: objName, TypeName: binder.Type}
			if err := walk(idx+1, next); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, bindings); err != nil {
		return nil, err
	}
	return &Expr{Kind: connective, Args: instances}, nil
}

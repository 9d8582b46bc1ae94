package expr

import "fmt"

// Instantiate implements §4.1's instantiate: for UninstantiatedVariable
// leaves it looks up the grounded variable in the resolver by (schema,
// bound-object tuple); for a non-fluent schema the lookup returns a
// NumericConstant of the bound value. Any remaining Parameter leaves
// (e.g. direct `?p1 == ?p2` style equality checks copied verbatim from the
// schema) are substituted from bindings the same way ReplaceQuantifier
// would, since by this point the formula is already quantifier-free (I1)
// and bindings holds the full parameter tuple for one grounding.
func Instantiate(e *Expr, resolver VariableResolver, bindings map[string]Binding) (*Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case KindParameterRef:
		if b, ok := bindings[e.ParamName]; ok {
			return ObjectRef(b.ObjectName, b.TypeName), nil
		}
		return nil, fmt.Errorf("unbound parameter %q during instantiation", e.ParamName)
	case KindUninstantiatedVariable:
		objNames := make([]string, len(e.SchemaArgs))
		for i, a := range e.SchemaArgs {
			resolved, err := Instantiate(a, resolver, bindings)
			if err != nil {
				return nil, err
			}
			if resolved.Kind != KindObjectRef {
				return nil, fmt.Errorf("schema %q argument %d did not resolve to an object", e.SchemaName, i)
			}
			objNames[i] = resolved.ObjectName
		}
		kind, index, nfVal, isNonFluent, err := resolver.ResolveVariable(e.SchemaName, objNames)
		if err != nil {
			return nil, fmt.Errorf("resolving %s(%v): %w", e.SchemaName, objNames, err)
		}
		if isNonFluent {
			return Constant(nfVal), nil
		}
		switch kind {
		case VarKindState:
			return StateFluentRef(index, e.SchemaName), nil
		case VarKindAction:
			return ActionFluentRef(index, e.SchemaName), nil
		default:
			return nil, fmt.Errorf("unexpected variable kind for %q", e.SchemaName)
		}
	case KindDiscrete:
		branches := make([]DiscreteBranch, len(e.DiscreteBranches))
		for i, br := range e.DiscreteBranches {
			v, err := Instantiate(br.Value, resolver, bindings)
			if err != nil {
				return nil, err
			}
			p, err := Instantiate(br.Prob, resolver, bindings)
			if err != nil {
				return nil, err
			}
			branches[i] = DiscreteBranch{Value: v, Prob: p}
		}
		return Discrete(branches), nil
	case KindMultiConditionChecker:
		branches := make([]Branch, len(e.Branches))
		for i, br := range e.Branches {
			g, err := Instantiate(br.Guard, resolver, bindings)
			if err != nil {
				return nil, err
			}
			eff, err := Instantiate(br.Effect, resolver, bindings)
			if err != nil {
				return nil, err
			}
			branches[i] = Branch{Guard: g, Effect: eff}
		}
		return MultiConditionChecker(branches), nil
	case KindConstant, KindStateFluentRef, KindActionFluentRef, KindNonFluentRef, KindObjectRef:
		return e, nil
	case KindSum, KindProduct, KindForall, KindExists:
		return nil, fmt.Errorf("instantiate: quantifier %v survived replaceQuantifier (invariant I1 violated)", e.Kind)
	default:
		args := make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			r, err := Instantiate(a, resolver, bindings)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return &Expr{Kind: e.Kind, Args: args}, nil
	}
}

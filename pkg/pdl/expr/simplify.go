package expr

// Simplify implements §4.1's simplify: constant folding; absorbing/identity
// laws; flattening of nested associative operators (and/or/+/×); IfThenElse
// collapsing (constant conditions, `if c then 1 else 0` -> c, nested
// IfThenElse/MultiConditionChecker on the else-branch folded into a single
// MultiConditionChecker); short-circuiting Conjunction/Disjunction; static
// decision of Equals/comparisons over constants; dropping zero-probability
// Discrete branches. replacements is a StateFluent-index-to-constant map
// used to propagate the removal of fluents whose CPFs simplified to a
// constant (§4.3(a)); pass a nil or empty map when no fluents have been
// eliminated yet.
func Simplify(e *Expr, replacements map[int]float64) *Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindConstant, KindParameterRef, KindObjectRef, KindActionFluentRef, KindNonFluentRef:
		return e
	case KindStateFluentRef:
		if v, ok := replacements[e.VarIndex]; ok {
			return Constant(v)
		}
		return e
	case KindConjunction:
		return simplifyAssoc(e, replacements, KindConjunction, 1 /*identity*/, 0 /*absorbing*/)
	case KindDisjunction:
		return simplifyAssoc(e, replacements, KindDisjunction, 0, 1)
	case KindAddition:
		return simplifySum(e, replacements)
	case KindMultiplication:
		return simplifyProduct(e, replacements)
	case KindSubtraction:
		return simplifyFoldNumeric(e, replacements, KindSubtraction, func(a, b float64) float64 { return a - b })
	case KindDivision:
		return simplifyFoldNumeric(e, replacements, KindDivision, func(a, b float64) float64 { return a / b })
	case KindEquals:
		return simplifyChainCompare(e, replacements, KindEquals, func(a, b float64) bool { return a == b })
	case KindGreater:
		return simplifyChainCompare(e, replacements, KindGreater, func(a, b float64) bool { return a > b })
	case KindLower:
		return simplifyChainCompare(e, replacements, KindLower, func(a, b float64) bool { return a < b })
	case KindGreaterEqual:
		return simplifyChainCompare(e, replacements, KindGreaterEqual, func(a, b float64) bool { return a >= b })
	case KindLowerEqual:
		return simplifyChainCompare(e, replacements, KindLowerEqual, func(a, b float64) bool { return a <= b })
	case KindNegation:
		x := Simplify(e.Args[0], replacements)
		if v, ok := IsConstant(x); ok {
			if v == 0 {
				return One
			}
			return Zero
		}
		// ~~x == (is 1/0 valued) x, but we cannot assume x is Boolean-typed
		// in general, so no further algebraic collapse is applied here.
		return Unary(KindNegation, x)
	case KindExponential:
		x := Simplify(e.Args[0], replacements)
		return Unary(KindExponential, x)
	case KindBernoulli:
		p := Simplify(e.Args[0], replacements)
		return Bernoulli(p)
	case KindDiscrete:
		return simplifyDiscrete(e, replacements)
	case KindIfThenElse:
		return simplifyIfThenElse(e, replacements)
	case KindMultiConditionChecker:
		return simplifyMultiConditionChecker(e, replacements)
	case KindUninstantiatedVariable:
		args := make([]*Expr, len(e.SchemaArgs))
		for i, a := range e.SchemaArgs {
			args[i] = Simplify(a, replacements)
		}
		return UninstantiatedVariable(e.SchemaName, args)
	case KindSum, KindProduct, KindForall, KindExists:
		// Schematic-only; simplification only ever runs post-grounding
		// (I1), but recurse defensively rather than panic.
		return &Expr{Kind: e.Kind, Binders: e.Binders, Body: Simplify(e.Body, replacements)}
	default:
		return e
	}
}

// simplifyAssoc handles Conjunction/Disjunction: it flattens nested
// same-kind children, drops identity elements, and short-circuits to the
// absorbing element if any child is absorbing.
func simplifyAssoc(e *Expr, replacements map[int]float64, kind Kind, identity, absorbing float64) *Expr {
	var flat []*Expr
	var flatten func(args []*Expr)
	flatten = func(args []*Expr) {
		for _, a := range args {
			s := Simplify(a, replacements)
			if v, ok := IsConstant(s); ok {
				if v == absorbing {
					flat = []*Expr{Constant(absorbing)}
					return
				}
				if v == identity {
					continue
				}
			}
			if s.Kind == kind {
				flatten(s.Args)
				continue
			}
			flat = append(flat, s)
		}
	}
	flatten(e.Args)
	if len(flat) == 1 && IsAbsorbingOnly(flat) {
		return flat[0]
	}
	if len(flat) == 0 {
		return Constant(identity)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Expr{Kind: kind, Args: flat}
}

// IsAbsorbingOnly reports whether flat is the singleton absorbing-element
// result produced by simplifyAssoc's short circuit.
func IsAbsorbingOnly(flat []*Expr) bool {
	return len(flat) == 1 && flat[0].Kind == KindConstant
}

func simplifySum(e *Expr, replacements map[int]float64) *Expr {
	var flat []*Expr
	constSum := 0.0
	haveConst := false
	var flatten func(args []*Expr)
	flatten = func(args []*Expr) {
		for _, a := range args {
			s := Simplify(a, replacements)
			if v, ok := IsConstant(s); ok {
				constSum += v
				haveConst = true
				continue
			}
			if s.Kind == KindAddition {
				flatten(s.Args)
				continue
			}
			flat = append(flat, s)
		}
	}
	flatten(e.Args)
	if haveConst && constSum != 0 {
		flat = append(flat, Constant(constSum))
	}
	if len(flat) == 0 {
		return Constant(constSum)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Expr{Kind: KindAddition, Args: flat}
}

func simplifyProduct(e *Expr, replacements map[int]float64) *Expr {
	var flat []*Expr
	constProd := 1.0
	var flatten func(args []*Expr)
	flatten = func(args []*Expr) {
		for _, a := range args {
			s := Simplify(a, replacements)
			if v, ok := IsConstant(s); ok {
				constProd *= v
				continue
			}
			if s.Kind == KindMultiplication {
				flatten(s.Args)
				continue
			}
			flat = append(flat, s)
		}
	}
	flatten(e.Args)
	if constProd == 0 {
		return Zero
	}
	if constProd != 1 {
		flat = append(flat, Constant(constProd))
	}
	if len(flat) == 0 {
		return Constant(constProd)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Expr{Kind: KindMultiplication, Args: flat}
}

func simplifyFoldNumeric(e *Expr, replacements map[int]float64, kind Kind, op func(a, b float64) float64) *Expr {
	args := make([]*Expr, len(e.Args))
	allConst := true
	for i, a := range e.Args {
		args[i] = Simplify(a, replacements)
		if _, ok := IsConstant(args[i]); !ok {
			allConst = false
		}
	}
	if allConst {
		acc, _ := IsConstant(args[0])
		for _, a := range args[1:] {
			v, _ := IsConstant(a)
			acc = op(acc, v)
		}
		return Constant(acc)
	}
	return &Expr{Kind: kind, Args: args}
}

func simplifyChainCompare(e *Expr, replacements map[int]float64, kind Kind, cmp func(a, b float64) bool) *Expr {
	args := make([]*Expr, len(e.Args))
	allConst := true
	for i, a := range e.Args {
		args[i] = Simplify(a, replacements)
		if _, ok := IsConstant(args[i]); !ok {
			allConst = false
		}
	}
	if allConst {
		ok := true
		for i := 0; i+1 < len(args); i++ {
			a, _ := IsConstant(args[i])
			b, _ := IsConstant(args[i+1])
			if !cmp(a, b) {
				ok = false
				break
			}
		}
		if ok {
			return One
		}
		return Zero
	}
	// Redesign-flagged newer-lineage behavior (§9 Open Questions): a single
	// constant child that, combined with the comparison's semantics,
	// determines the whole chain's truth value independent of the other
	// (still-unknown) children is not collapsed here for Equals beyond the
	// all-constant case above — open-question resolution directs this
	// package to CalculateDomain for that short-circuit, not Simplify.
	return &Expr{Kind: kind, Args: args}
}

func simplifyDiscrete(e *Expr, replacements map[int]float64) *Expr {
	var kept []DiscreteBranch
	for _, br := range e.DiscreteBranches {
		p := Simplify(br.Prob, replacements)
		if v, ok := IsConstant(p); ok && v == 0 {
			continue
		}
		v := Simplify(br.Value, replacements)
		kept = append(kept, DiscreteBranch{Value: v, Prob: p})
	}
	if len(kept) == 1 {
		return kept[0].Value
	}
	return Discrete(kept)
}

func simplifyIfThenElse(e *Expr, replacements map[int]float64) *Expr {
	cond := Simplify(e.Args[0], replacements)
	then := Simplify(e.Args[1], replacements)
	els := Simplify(e.Args[2], replacements)

	if v, ok := IsConstant(cond); ok {
		if v != 0 {
			return then
		}
		return els
	}
	if tv, ok := IsConstant(then); ok && tv == 1 {
		if ev, ok := IsConstant(els); ok && ev == 0 {
			return cond
		}
	}
	switch els.Kind {
	case KindIfThenElse:
		branches := []Branch{{Guard: cond, Effect: then}}
		branches = append(branches, ifChainToBranches(els)...)
		return MultiConditionChecker(branches)
	case KindMultiConditionChecker:
		branches := append([]Branch{{Guard: cond, Effect: then}}, els.Branches...)
		return MultiConditionChecker(branches)
	default:
		return IfThenElse(cond, then, els)
	}
}

// ifChainToBranches flattens a right-leaning IfThenElse chain into Branch
// pairs, terminating with the constant-1-guarded final else value.
func ifChainToBranches(e *Expr) []Branch {
	if e.Kind != KindIfThenElse {
		return []Branch{{Guard: One, Effect: e}}
	}
	out := []Branch{{Guard: e.Args[0], Effect: e.Args[1]}}
	return append(out, ifChainToBranches(e.Args[2])...)
}

func simplifyMultiConditionChecker(e *Expr, replacements map[int]float64) *Expr {
	var out []Branch
	for _, br := range e.Branches {
		g := Simplify(br.Guard, replacements)
		eff := Simplify(br.Effect, replacements)
		if v, ok := IsConstant(g); ok {
			if v == 0 {
				continue // unreachable branch, drop it
			}
			// This guard is always true: every later branch is dead.
			out = append(out, Branch{Guard: One, Effect: eff})
			break
		}
		out = append(out, Branch{Guard: g, Effect: eff})
	}
	if len(out) == 1 {
		return out[0].Effect
	}
	if len(out) == 0 {
		return Zero
	}
	return MultiConditionChecker(out)
}

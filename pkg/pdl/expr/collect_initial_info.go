package expr

// DependencySet accumulates the flags and dependency sets §4.1's
// collect_initial_info produces: whether the expression is probabilistic,
// whether it contains any arithmetic function, the set of state fluents it
// depends on, and — separately for action fluents — the indices on which it
// is positively and negatively depended, since Subtraction/Multiplication/
// Division can reverse an action fluent's polarity and comparisons must
// conservatively mark both.
type DependencySet struct {
	Probabilistic      bool
	HasArithmetic      bool
	DependentState     map[int]struct{}
	PositiveAction      map[int]struct{}
	NegativeAction      map[int]struct{}
}

// NewDependencySet returns an empty DependencySet ready for accumulation.
func NewDependencySet() *DependencySet {
	return &DependencySet{
		DependentState: make(map[int]struct{}),
		PositiveAction: make(map[int]struct{}),
		NegativeAction: make(map[int]struct{}),
	}
}

// DependentActionFluents returns the union of positively- and negatively-
// depended action fluent indices.
func (d *DependencySet) DependentActionFluents() map[int]struct{} {
	out := make(map[int]struct{}, len(d.PositiveAction)+len(d.NegativeAction))
	for k := range d.PositiveAction {
		out[k] = struct{}{}
	}
	for k := range d.NegativeAction {
		out[k] = struct{}{}
	}
	return out
}

// CollectInitialInfo implements §4.1's collect_initial_info, recursing over
// e and accumulating into out. polarity is +1 or -1 and flips across
// Subtraction's right operand and across a constant-negative
// Multiplication/Division operand (§9 Open Questions: when both operands of
// a Multiplication/Division are non-constant, the sign is ambiguous and
// both polarities are conservatively recorded, matching the source's
// hedge).
func CollectInitialInfo(e *Expr, polarity int, out *DependencySet) {
	if e == nil {
		return
	}
	switch e.Kind {
	case KindConstant, KindParameterRef, KindObjectRef:
		return
	case KindStateFluentRef:
		out.DependentState[e.VarIndex] = struct{}{}
	case KindActionFluentRef:
		markAction(out, e.VarIndex, polarity)
	case KindNonFluentRef:
		return
	case KindAddition, KindConjunction, KindDisjunction:
		for _, a := range e.Args {
			CollectInitialInfo(a, polarity, out)
		}
	case KindSubtraction:
		if len(e.Args) > 0 {
			CollectInitialInfo(e.Args[0], polarity, out)
		}
		for _, a := range e.Args[1:] {
			CollectInitialInfo(a, -polarity, out)
		}
	case KindMultiplication, KindDivision:
		out.HasArithmetic = true
		signPolarity := constantSignPolarity(e.Args)
		for _, a := range e.Args {
			CollectInitialInfo(a, polarity*signPolarity, out)
			if signPolarity == 0 {
				// Ambiguous sign: also record the opposite polarity so
				// both are conservatively possible.
				CollectInitialInfo(a, -polarity, out)
			}
		}
	case KindEquals, KindGreater, KindLower, KindGreaterEqual, KindLowerEqual:
		out.HasArithmetic = true
		for _, a := range e.Args {
			// Comparisons conservatively mark every encountered action
			// variable as both positively and negatively depended-on.
			CollectInitialInfo(a, 1, out)
			CollectInitialInfo(a, -1, out)
		}
	case KindNegation:
		CollectInitialInfo(e.Args[0], -polarity, out)
	case KindExponential:
		out.HasArithmetic = true
		CollectInitialInfo(e.Args[0], polarity, out)
	case KindIfThenElse:
		CollectInitialInfo(e.Args[0], 1, out)
		CollectInitialInfo(e.Args[0], -1, out)
		CollectInitialInfo(e.Args[1], polarity, out)
		CollectInitialInfo(e.Args[2], polarity, out)
	case KindMultiConditionChecker:
		for _, br := range e.Branches {
			CollectInitialInfo(br.Guard, 1, out)
			CollectInitialInfo(br.Guard, -1, out)
			CollectInitialInfo(br.Effect, polarity, out)
		}
	case KindBernoulli:
		out.Probabilistic = true
		CollectInitialInfo(e.Args[0], 1, out)
		CollectInitialInfo(e.Args[0], -1, out)
	case KindDiscrete:
		out.Probabilistic = true
		for _, br := range e.DiscreteBranches {
			CollectInitialInfo(br.Value, polarity, out)
			CollectInitialInfo(br.Prob, 1, out)
			CollectInitialInfo(br.Prob, -1, out)
		}
	case KindUninstantiatedVariable:
		for _, a := range e.SchemaArgs {
			CollectInitialInfo(a, polarity, out)
		}
	case KindSum, KindProduct, KindForall, KindExists:
		CollectInitialInfo(e.Body, polarity, out)
	}
}

// constantSignPolarity inspects a Multiplication/Division argument list for
// a single constant operand and returns its sign (+1, -1), or 0 if no
// operand is a constant (ambiguous — both polarities are possible) or a
// constant operand is itself zero (treated as ambiguous, conservatively).
func constantSignPolarity(args []*Expr) int {
	for _, a := range args {
		if v, ok := IsConstant(a); ok {
			switch {
			case v > 0:
				return 1
			case v < 0:
				return -1
			default:
				return 0
			}
		}
	}
	return 0
}

func markAction(out *DependencySet, index, polarity int) {
	if polarity >= 0 {
		out.PositiveAction[index] = struct{}{}
	}
	if polarity <= 0 {
		out.NegativeAction[index] = struct{}{}
	}
}

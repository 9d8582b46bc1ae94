package expr

import "fmt"

// DeterminizeMostLikely implements §4.1's determinize_most_likely: replaces
// every Bernoulli(p) node by the comparison `seed <= p`, where seed is the
// expression seedFactory returns, and every Discrete node by a
// MultiConditionChecker that selects the most likely branch: branch i's
// guard requires its probability to be strictly greater than every earlier
// branch's and at least every later branch's, so ties go to the earliest
// branch in declaration order, and the last branch's guard is the constant
// 1. seedFactory is called once per Bernoulli node (Discrete nodes do not
// call it) and its result is used as is; nothing here requires the returned
// expressions to be distinct.
func DeterminizeMostLikely(e *Expr, seedFactory func() *Expr) (*Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case KindConstant, KindParameterRef, KindObjectRef, KindActionFluentRef, KindNonFluentRef, KindStateFluentRef:
		return e, nil
	case KindBernoulli:
		p, err := DeterminizeMostLikely(e.Args[0], seedFactory)
		if err != nil {
			return nil, err
		}
		seed := seedFactory()
		return NAry(KindLowerEqual, seed, p), nil
	case KindDiscrete:
		if len(e.DiscreteBranches) == 0 {
			return nil, fmt.Errorf("determinizeMostLikely: Discrete with no branches")
		}
		branches := make([]Branch, 0, len(e.DiscreteBranches))
		probs := make([]*Expr, len(e.DiscreteBranches))
		values := make([]*Expr, len(e.DiscreteBranches))
		for i, br := range e.DiscreteBranches {
			p, err := DeterminizeMostLikely(br.Prob, seedFactory)
			if err != nil {
				return nil, err
			}
			v, err := DeterminizeMostLikely(br.Value, seedFactory)
			if err != nil {
				return nil, err
			}
			probs[i] = p
			values[i] = v
		}
		for i := range probs {
			guardArgs := make([]*Expr, 0, len(probs)-1)
			for j := range probs {
				if i == j {
					continue
				}
				if j < i {
					// Earlier branch: strictly greater, so an exact tie
					// resolves to the earliest branch in declaration order.
					guardArgs = append(guardArgs, NAry(KindGreater, probs[i], probs[j]))
				} else {
					guardArgs = append(guardArgs, NAry(KindGreaterEqual, probs[i], probs[j]))
				}
			}
			var guard *Expr
			if len(guardArgs) == 0 || i == len(probs)-1 {
				// The last branch is reached only when no earlier branch is
				// the earliest maximum, so it is the maximum itself.
				guard = One
			} else {
				guard = NAry(KindConjunction, guardArgs...)
			}
			branches = append(branches, Branch{Guard: guard, Effect: values[i]})
		}
		return MultiConditionChecker(branches), nil
	case KindConjunction, KindDisjunction, KindAddition, KindSubtraction, KindMultiplication, KindDivision,
		KindEquals, KindGreater, KindLower, KindGreaterEqual, KindLowerEqual:
		args := make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			d, err := DeterminizeMostLikely(a, seedFactory)
			if err != nil {
				return nil, err
			}
			args[i] = d
		}
		return NAry(e.Kind, args...), nil
	case KindNegation, KindExponential:
		x, err := DeterminizeMostLikely(e.Args[0], seedFactory)
		if err != nil {
			return nil, err
		}
		return Unary(e.Kind, x), nil
	case KindIfThenElse:
		cond, err := DeterminizeMostLikely(e.Args[0], seedFactory)
		if err != nil {
			return nil, err
		}
		then, err := DeterminizeMostLikely(e.Args[1], seedFactory)
		if err != nil {
			return nil, err
		}
		els, err := DeterminizeMostLikely(e.Args[2], seedFactory)
		if err != nil {
			return nil, err
		}
		return IfThenElse(cond, then, els), nil
	case KindMultiConditionChecker:
		out := make([]Branch, len(e.Branches))
		for i, br := range e.Branches {
			g, err := DeterminizeMostLikely(br.Guard, seedFactory)
			if err != nil {
				return nil, err
			}
			eff, err := DeterminizeMostLikely(br.Effect, seedFactory)
			if err != nil {
				return nil, err
			}
			out[i] = Branch{Guard: g, Effect: eff}
		}
		return MultiConditionChecker(out), nil
	case KindUninstantiatedVariable:
		args := make([]*Expr, len(e.SchemaArgs))
		for i, a := range e.SchemaArgs {
			d, err := DeterminizeMostLikely(a, seedFactory)
			if err != nil {
				return nil, err
			}
			args[i] = d
		}
		return UninstantiatedVariable(e.SchemaName, args), nil
	default:
		return nil, fmt.Errorf("determinizeMostLikely: unsupported kind %v", e.Kind)
	}
}

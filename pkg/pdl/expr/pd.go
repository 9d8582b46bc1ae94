package expr

import (
	"fmt"
	"sort"
)

// PDEntry is one (value, probability) outcome of a discrete probability
// distribution.
type PDEntry struct {
	Value float64
	Prob  float64
}

// PD is a discrete probability distribution, normalized so that entries are
// sorted ascending by Value, no two entries share a Value, and Probs sum to
// (approximately) 1. §8 requires EvaluateToPD to return "nonnegative
// probabilities summing to 1" for every probabilistic CPF; Normalize is
// responsible for the summing-duplicates and sorting half of that
// guarantee, not for renormalizing a distribution that doesn't already sum
// to 1 (a bug upstream, not something to silently paper over).
type PD []PDEntry

// Normalize merges duplicate values (summing their probabilities), drops
// zero-probability entries, and sorts ascending by value.
func Normalize(entries map[float64]float64) PD {
	out := make(PD, 0, len(entries))
	for v, p := range entries {
		if p == 0 {
			continue
		}
		out = append(out, PDEntry{Value: v, Prob: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func singleton(v float64) PD {
	return PD{{Value: v, Prob: 1}}
}

// Sum returns the total probability mass, for validating §8's "sums to 1"
// property in tests.
func (p PD) Sum() float64 {
	s := 0.0
	for _, e := range p {
		s += e.Prob
	}
	return s
}

// EvaluateToPD implements §4.1's evaluate_to_pd: deterministic subtrees
// degenerate to a singleton distribution; Bernoulli/Discrete introduce
// genuine uncertainty; n-ary arithmetic/logical/comparison operators
// combine independent operand distributions by enumeration; IfThenElse and
// MultiConditionChecker compute a weighted mixture over the branches whose
// guards can hold.
func EvaluateToPD(e *Expr, env *Env) (PD, error) {
	switch e.Kind {
	case KindBernoulli:
		p, err := Evaluate(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		return Normalize(map[float64]float64{0: 1 - p, 1: p}), nil
	case KindDiscrete:
		m := make(map[float64]float64)
		for _, br := range e.DiscreteBranches {
			v, err := Evaluate(br.Value, env)
			if err != nil {
				return nil, err
			}
			p, err := Evaluate(br.Prob, env)
			if err != nil {
				return nil, err
			}
			m[v] += p
		}
		return Normalize(m), nil
	case KindConjunction:
		return foldPD(e.Args, env, boolAnd)
	case KindDisjunction:
		return foldPD(e.Args, env, boolOr)
	case KindAddition:
		return foldPD(e.Args, env, func(a, b float64) float64 { return a + b })
	case KindSubtraction:
		return foldPD(e.Args, env, func(a, b float64) float64 { return a - b })
	case KindMultiplication:
		return foldPD(e.Args, env, func(a, b float64) float64 { return a * b })
	case KindDivision:
		return foldPD(e.Args, env, func(a, b float64) float64 { return a / b })
	case KindEquals:
		return chainComparePD(e.Args, env, func(a, b float64) bool { return a == b })
	case KindGreater:
		return chainComparePD(e.Args, env, func(a, b float64) bool { return a > b })
	case KindLower:
		return chainComparePD(e.Args, env, func(a, b float64) bool { return a < b })
	case KindGreaterEqual:
		return chainComparePD(e.Args, env, func(a, b float64) bool { return a >= b })
	case KindLowerEqual:
		return chainComparePD(e.Args, env, func(a, b float64) bool { return a <= b })
	case KindNegation:
		x, err := EvaluateToPD(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		m := make(map[float64]float64)
		for _, en := range x {
			if en.Value == 0 {
				m[1] += en.Prob
			} else {
				m[0] += en.Prob
			}
		}
		return Normalize(m), nil
	case KindIfThenElse:
		return evaluateIfThenElseToPD(e, env)
	case KindMultiConditionChecker:
		return evaluateMultiConditionCheckerToPD(e.Branches, env)
	default:
		v, err := Evaluate(e, env)
		if err != nil {
			return nil, fmt.Errorf("evaluateToPD: %w", err)
		}
		return singleton(v), nil
	}
}

func boolAnd(a, b float64) float64 {
	if a != 0 && b != 0 {
		return 1
	}
	return 0
}

func boolOr(a, b float64) float64 {
	if a != 0 || b != 0 {
		return 1
	}
	return 0
}

// foldPD computes the PD of every operand and left-folds them pairwise
// under op, multiplying probabilities across the cartesian product of
// outcomes (the operands are treated as independent, per §4.1).
func foldPD(args []*Expr, env *Env, op func(a, b float64) float64) (PD, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("n-ary operator with no operands")
	}
	acc, err := EvaluateToPD(args[0], env)
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		next, err := EvaluateToPD(a, env)
		if err != nil {
			return nil, err
		}
		acc = combine2(acc, next, op)
	}
	return acc, nil
}

func chainComparePD(args []*Expr, env *Env, cmp func(a, b float64) bool) (PD, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("comparison with fewer than 2 operands")
	}
	pds := make([]PD, len(args))
	for i, a := range args {
		pd, err := EvaluateToPD(a, env)
		if err != nil {
			return nil, err
		}
		pds[i] = pd
	}
	result := singleton(1)
	for i := 0; i+1 < len(pds); i++ {
		pair := combine2(pds[i], pds[i+1], func(a, b float64) float64 {
			if cmp(a, b) {
				return 1
			}
			return 0
		})
		result = combine2(result, pair, boolAnd)
	}
	return result, nil
}

func combine2(a, b PD, op func(x, y float64) float64) PD {
	m := make(map[float64]float64)
	for _, ea := range a {
		for _, eb := range b {
			m[op(ea.Value, eb.Value)] += ea.Prob * eb.Prob
		}
	}
	return Normalize(m)
}

func evaluateIfThenElseToPD(e *Expr, env *Env) (PD, error) {
	condPD, err := EvaluateToPD(e.Args[0], env)
	if err != nil {
		return nil, err
	}
	pTrue, pFalse := 0.0, 0.0
	for _, en := range condPD {
		if en.Value != 0 {
			pTrue += en.Prob
		} else {
			pFalse += en.Prob
		}
	}
	m := make(map[float64]float64)
	if pTrue > 0 {
		thenPD, err := EvaluateToPD(e.Args[1], env)
		if err != nil {
			return nil, err
		}
		for _, en := range thenPD {
			m[en.Value] += pTrue * en.Prob
		}
	}
	if pFalse > 0 {
		elsePD, err := EvaluateToPD(e.Args[2], env)
		if err != nil {
			return nil, err
		}
		for _, en := range elsePD {
			m[en.Value] += pFalse * en.Prob
		}
	}
	return Normalize(m), nil
}

// evaluateMultiConditionCheckerToPD walks the guarded-effect chain,
// assigning to each branch the probability mass not already consumed by an
// earlier branch's guard, per §4.1's "weighted mixture over the prefix of
// guards".
func evaluateMultiConditionCheckerToPD(branches []Branch, env *Env) (PD, error) {
	m := make(map[float64]float64)
	remaining := 1.0
	for _, br := range branches {
		if remaining <= 0 {
			break
		}
		guardPD, err := EvaluateToPD(br.Guard, env)
		if err != nil {
			return nil, err
		}
		pTrue := 0.0
		for _, en := range guardPD {
			if en.Value != 0 {
				pTrue += en.Prob
			}
		}
		mass := remaining * pTrue
		if mass > 0 {
			effPD, err := EvaluateToPD(br.Effect, env)
			if err != nil {
				return nil, err
			}
			for _, en := range effPD {
				m[en.Value] += mass * en.Prob
			}
		}
		remaining -= mass
	}
	return Normalize(m), nil
}

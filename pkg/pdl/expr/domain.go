package expr

import (
	"fmt"
	"math"
)

// DomainWarning is a non-fatal diagnostic raised by CalculateDomain, per §7
// Resource/Semantic error handling: a division whose divisor range contains
// zero is logged as a warning and the result interval widens to (-inf,inf)
// rather than aborting compilation.
type DomainWarning struct {
	Message string
}

func (w DomainWarning) Error() string { return w.Message }

// CalculateDomain implements §4.1's calculate_domain: given candidate
// domains for every state fluent and a concrete joint action assignment, it
// overapproximates the set of scalar values e can produce. Arithmetic
// (+, -, *, /) uses interval arithmetic over each operand's [min,max] bound
// rather than full cartesian enumeration, since state-fluent domains can
// grow large over the Reachability Analyser's fixed point and only the
// bounds are needed to keep the overapproximation sound and cheap.
// Comparisons and logical connectives instead decide exactly which of {0,1}
// are reachable (Minkowski expansion), which is always at most a 2-element
// question regardless of operand domain size. Warnings collects non-fatal
// diagnostics (e.g. division by a range spanning zero); the caller decides
// whether to surface them.
func CalculateDomain(e *Expr, domains []Domain, action []float64, nonFluents []float64, warnings *[]DomainWarning) (Domain, error) {
	switch e.Kind {
	case KindConstant:
		return NewDomain(e.Const), nil
	case KindStateFluentRef:
		if e.VarIndex >= len(domains) {
			return nil, fmt.Errorf("calculateDomain: state index %d out of range", e.VarIndex)
		}
		return domains[e.VarIndex], nil
	case KindActionFluentRef:
		if e.VarIndex >= len(action) {
			return nil, fmt.Errorf("calculateDomain: action index %d out of range", e.VarIndex)
		}
		return NewDomain(action[e.VarIndex]), nil
	case KindNonFluentRef:
		return NewDomain(nonFluents[e.VarIndex]), nil
	case KindConjunction:
		canTrue, canFalse := true, false
		for _, a := range e.Args {
			d, err := CalculateDomain(a, domains, action, nonFluents, warnings)
			if err != nil {
				return nil, err
			}
			lo, hi := bounds(d)
			if hi == 0 {
				canTrue = false
			}
			if lo <= 0 && hi >= 0 {
				canFalse = true
			}
		}
		return boolDomain(canTrue, canFalse), nil
	case KindDisjunction:
		canTrue, canFalse := false, true
		for _, a := range e.Args {
			d, err := CalculateDomain(a, domains, action, nonFluents, warnings)
			if err != nil {
				return nil, err
			}
			lo, hi := bounds(d)
			if lo != 0 || hi != 0 {
				canTrue = true
			}
			if !(lo <= 0 && hi >= 0) {
				canFalse = false
			}
		}
		return boolDomain(canTrue, canFalse), nil
	case KindAddition:
		return intervalFold(e, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (float64, float64) {
			return lo1 + lo2, hi1 + hi2
		})
	case KindSubtraction:
		return intervalFold(e, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (float64, float64) {
			return lo1 - hi2, hi1 - lo2
		})
	case KindMultiplication:
		return intervalFold(e, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (float64, float64) {
			candidates := []float64{lo1 * lo2, lo1 * hi2, hi1 * lo2, hi1 * hi2}
			return minOf(candidates), maxOf(candidates)
		})
	case KindDivision:
		return intervalFold(e, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (float64, float64) {
			if lo2 <= 0 && hi2 >= 0 {
				if warnings != nil {
					*warnings = append(*warnings, DomainWarning{Message: "division with divisor range containing 0; widening to (-inf,inf)"})
				}
				return math.Inf(-1), math.Inf(1)
			}
			candidates := []float64{lo1 / lo2, lo1 / hi2, hi1 / lo2, hi1 / hi2}
			return minOf(candidates), maxOf(candidates)
		})
	case KindEquals:
		return compareDomainChain(e.Args, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (bool, bool) {
			overlap := lo1 <= hi2 && lo2 <= hi1
			exactSinglePoint := lo1 == hi1 && lo2 == hi2 && lo1 == lo2
			canTrue := overlap
			canFalse := !exactSinglePoint
			return canTrue, canFalse
		})
	case KindGreater:
		return compareDomainChain(e.Args, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (bool, bool) {
			return hi1 > lo2, lo1 <= hi2
		})
	case KindLower:
		return compareDomainChain(e.Args, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (bool, bool) {
			return lo1 < hi2, hi1 >= lo2
		})
	case KindGreaterEqual:
		return compareDomainChain(e.Args, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (bool, bool) {
			return hi1 >= lo2, lo1 < hi2
		})
	case KindLowerEqual:
		return compareDomainChain(e.Args, domains, action, nonFluents, warnings, func(lo1, hi1, lo2, hi2 float64) (bool, bool) {
			return lo1 <= hi2, hi1 > lo2
		})
	case KindNegation:
		d, err := CalculateDomain(e.Args[0], domains, action, nonFluents, warnings)
		if err != nil {
			return nil, err
		}
		lo, hi := bounds(d)
		return boolDomain(lo <= 0 && hi >= 0, !(lo == 0 && hi == 0)), nil
	case KindExponential:
		d, err := CalculateDomain(e.Args[0], domains, action, nonFluents, warnings)
		if err != nil {
			return nil, err
		}
		lo, hi := bounds(d)
		return NewDomain(math.Exp(lo), math.Exp(hi)), nil
	case KindIfThenElse:
		cond, err := CalculateDomain(e.Args[0], domains, action, nonFluents, warnings)
		if err != nil {
			return nil, err
		}
		lo, hi := bounds(cond)
		var result Domain
		if !(hi == 0) {
			then, err := CalculateDomain(e.Args[1], domains, action, nonFluents, warnings)
			if err != nil {
				return nil, err
			}
			result = result.Union(then)
		}
		if lo <= 0 && hi >= 0 {
			els, err := CalculateDomain(e.Args[2], domains, action, nonFluents, warnings)
			if err != nil {
				return nil, err
			}
			result = result.Union(els)
		}
		return result, nil
	case KindMultiConditionChecker:
		var result Domain
		for _, br := range e.Branches {
			g, err := CalculateDomain(br.Guard, domains, action, nonFluents, warnings)
			if err != nil {
				return nil, err
			}
			lo, hi := bounds(g)
			if hi == 0 {
				continue // guard certainly false, branch unreachable
			}
			eff, err := CalculateDomain(br.Effect, domains, action, nonFluents, warnings)
			if err != nil {
				return nil, err
			}
			result = result.Union(eff)
			if lo > 0 {
				break // guard certainly true: no later branch is reachable
			}
		}
		return result, nil
	case KindBernoulli, KindDiscrete:
		return nil, fmt.Errorf("calculateDomain: probabilistic node %v; compute on the CPF's determinization instead (see §9 Open Questions)", e.Kind)
	default:
		return nil, fmt.Errorf("calculateDomain: unsupported kind %v", e.Kind)
	}
}

func bounds(d Domain) (float64, float64) {
	if len(d) == 0 {
		return math.Inf(1), math.Inf(-1)
	}
	return d.Min(), d.Max()
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func intervalFold(e *Expr, domains []Domain, action []float64, nonFluents []float64, warnings *[]DomainWarning, op func(lo1, hi1, lo2, hi2 float64) (float64, float64)) (Domain, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("n-ary numeric operator with no operands")
	}
	first, err := CalculateDomain(e.Args[0], domains, action, nonFluents, warnings)
	if err != nil {
		return nil, err
	}
	lo, hi := bounds(first)
	for _, a := range e.Args[1:] {
		next, err := CalculateDomain(a, domains, action, nonFluents, warnings)
		if err != nil {
			return nil, err
		}
		lo2, hi2 := bounds(next)
		lo, hi = op(lo, hi, lo2, hi2)
	}
	if lo == hi {
		return NewDomain(lo), nil
	}
	return NewDomain(lo, hi), nil
}

func compareDomainChain(args []*Expr, domains []Domain, action []float64, nonFluents []float64, warnings *[]DomainWarning, cmp func(lo1, hi1, lo2, hi2 float64) (canTrue, canFalse bool)) (Domain, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("comparison with fewer than 2 operands")
	}
	bs := make([][2]float64, len(args))
	for i, a := range args {
		d, err := CalculateDomain(a, domains, action, nonFluents, warnings)
		if err != nil {
			return nil, err
		}
		lo, hi := bounds(d)
		bs[i] = [2]float64{lo, hi}
	}
	canTrue, canFalse := true, false
	for i := 0; i+1 < len(bs); i++ {
		pt, pf := cmp(bs[i][0], bs[i][1], bs[i+1][0], bs[i+1][1])
		if !pt {
			canTrue = false
		}
		if pf {
			canFalse = true
		}
	}
	return boolDomain(canTrue, canFalse), nil
}

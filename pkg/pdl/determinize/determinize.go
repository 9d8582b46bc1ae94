// Package determinize implements the Determinizer (§4.5): for every
// probabilistic CPF, it computes the most-likely-outcome deterministic
// analogue and simplifies it, leaving task.CPF.Determinization populated
// per invariant I4.
package determinize

import (
	"fmt"

	"github.com/prost-planner/rddlc/pkg/pdl/expr"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Seed is the fixed determinization threshold §4.5 specifies:
// Bernoulli(p) becomes 0.5 <= p.
const Seed = 0.5

func seedFactory() func() *expr.Expr {
	seed := expr.Constant(Seed)
	return func() *expr.Expr { return seed }
}

// Run walks every CPF in t and, for each one marked Probabilistic, sets its
// Determinization to determinize_most_likely(seed=0.5) followed by
// Simplify. Non-probabilistic CPFs are left untouched (I4).
func Run(t *task.Task) error {
	for _, cpf := range t.CPFs {
		if !cpf.Probabilistic {
			continue
		}
		if err := rejectNestedConditionalProbabilities(cpf.Formula); err != nil {
			return fmt.Errorf("CPF %q: %w", cpf.Head.Name, err)
		}
		det, err := expr.DeterminizeMostLikely(cpf.Formula, seedFactory())
		if err != nil {
			return fmt.Errorf("CPF %q: %w", cpf.Head.Name, err)
		}
		cpf.Determinization = expr.Simplify(det, nil)
	}
	return nil
}

// rejectNestedConditionalProbabilities implements §4.5's "a Discrete whose
// probabilities are themselves conditional distributions is rejected with
// an explicit unsupported diagnostic": a Discrete branch's probability
// formula may be state-dependent (an ordinary formula over state fluents),
// but it may not itself be, or contain, a Bernoulli/Discrete constructor.
func rejectNestedConditionalProbabilities(e *expr.Expr) error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case expr.KindDiscrete:
		for _, br := range e.DiscreteBranches {
			if containsProbabilistic(br.Prob) {
				return fmt.Errorf("unsupported: Discrete branch probability is itself a conditional distribution")
			}
			if err := rejectNestedConditionalProbabilities(br.Value); err != nil {
				return err
			}
			if err := rejectNestedConditionalProbabilities(br.Prob); err != nil {
				return err
			}
		}
		return nil
	case expr.KindBernoulli:
		return rejectNestedConditionalProbabilities(e.Args[0])
	case expr.KindMultiConditionChecker:
		for _, br := range e.Branches {
			if err := rejectNestedConditionalProbabilities(br.Guard); err != nil {
				return err
			}
			if err := rejectNestedConditionalProbabilities(br.Effect); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, a := range e.Args {
			if err := rejectNestedConditionalProbabilities(a); err != nil {
				return err
			}
		}
		return nil
	}
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

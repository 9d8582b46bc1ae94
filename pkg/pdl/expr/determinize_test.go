package expr

import "testing"

func newSeedFactory() func() *Expr {
	n := 0
	return func() *Expr {
		n++
		return ParameterRef("seed")
	}
}

func TestDeterminizeMostLikelyBernoulli(t *testing.T) {
	e := Bernoulli(Constant(0.7))
	got, err := DeterminizeMostLikely(e, newSeedFactory())
	if err != nil {
		t.Fatalf("DeterminizeMostLikely: %v", err)
	}
	if got.Kind != KindLowerEqual {
		t.Fatalf("DeterminizeMostLikely(Bernoulli) = %v, want a <= comparison", Print(got))
	}
}

func TestDeterminizeMostLikelyDiscretePicksMaxProbability(t *testing.T) {
	e := Discrete([]DiscreteBranch{
		{Value: Constant(1), Prob: Constant(0.2)},
		{Value: Constant(2), Prob: Constant(0.5)},
		{Value: Constant(3), Prob: Constant(0.3)},
	})
	got, err := DeterminizeMostLikely(e, newSeedFactory())
	if err != nil {
		t.Fatalf("DeterminizeMostLikely: %v", err)
	}
	if got.Kind != KindMultiConditionChecker {
		t.Fatalf("DeterminizeMostLikely(Discrete) = %v, want MultiConditionChecker", Print(got))
	}
	// Evaluate the resulting chain; only the 0.5-probability branch's guard
	// should hold since probabilities are already concrete constants.
	env := &Env{}
	val, err := Evaluate(got, env)
	if err != nil {
		t.Fatalf("Evaluate(determinized Discrete): %v", err)
	}
	if val != 2 {
		t.Errorf("determinized Discrete evaluates to %v, want 2 (the most likely outcome)", val)
	}
}

func TestDeterminizeMostLikelyRecursesIntoSubtree(t *testing.T) {
	e := NAry(KindAddition, Bernoulli(Constant(0.5)), Constant(1))
	got, err := DeterminizeMostLikely(e, newSeedFactory())
	if err != nil {
		t.Fatalf("DeterminizeMostLikely: %v", err)
	}
	if got.Kind != KindAddition {
		t.Fatalf("DeterminizeMostLikely(Bernoulli+1) = %v, want top-level Addition preserved", Print(got))
	}
	if got.Args[0].Kind != KindLowerEqual {
		t.Errorf("nested Bernoulli not determinized: %v", Print(got))
	}
}

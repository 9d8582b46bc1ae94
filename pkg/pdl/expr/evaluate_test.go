package expr

import "testing"

func TestEvaluateArithmetic(t *testing.T) {
	env := &Env{State: []float64{3}, Action: []float64{4}}
	e := NAry(KindAddition, StateFluentRef(0, "x"), ActionFluentRef(0, "a"), Constant(1))
	got, err := Evaluate(e, env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != 8 {
		t.Errorf("Evaluate(x+a+1) = %v, want 8", got)
	}
}

func TestEvaluateChainCompare(t *testing.T) {
	env := &Env{}
	e := NAry(KindLower, Constant(1), Constant(2), Constant(3))
	got, err := Evaluate(e, env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != 1 {
		t.Errorf("Evaluate(1<2<3) = %v, want 1", got)
	}
	e2 := NAry(KindLower, Constant(1), Constant(5), Constant(3))
	got2, err := Evaluate(e2, env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got2 != 0 {
		t.Errorf("Evaluate(1<5<3) = %v, want 0", got2)
	}
}

func TestEvaluateMultiConditionChecker(t *testing.T) {
	env := &Env{State: []float64{0}}
	s := StateFluentRef(0, "p")
	e := MultiConditionChecker([]Branch{
		{Guard: s, Effect: Constant(1)},
		{Guard: One, Effect: Constant(2)},
	})
	got, err := Evaluate(e, env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != 2 {
		t.Errorf("Evaluate(switch) with p=0 = %v, want 2 (fallthrough branch)", got)
	}
}

func TestEvaluateRejectsProbabilistic(t *testing.T) {
	env := &Env{}
	_, err := Evaluate(Bernoulli(Constant(0.5)), env)
	if err == nil {
		t.Fatal("Evaluate(Bernoulli) should error, deterministic evaluation cannot resolve it")
	}
}

func TestEvaluateToPDBernoulli(t *testing.T) {
	env := &Env{}
	pd, err := EvaluateToPD(Bernoulli(Constant(0.3)), env)
	if err != nil {
		t.Fatalf("EvaluateToPD: %v", err)
	}
	if s := pd.Sum(); s < 0.999 || s > 1.001 {
		t.Errorf("PD does not sum to 1: %v", s)
	}
	want := map[float64]float64{0: 0.7, 1: 0.3}
	if len(pd) != 2 {
		t.Fatalf("got %d entries, want 2", len(pd))
	}
	for _, en := range pd {
		if got, ok := want[en.Value]; !ok || got != en.Prob {
			t.Errorf("entry %v has prob %v, want %v", en.Value, en.Prob, want[en.Value])
		}
	}
}

func TestEvaluateToPDIndependentCombination(t *testing.T) {
	env := &Env{}
	e := NAry(KindAddition, Bernoulli(Constant(0.5)), Bernoulli(Constant(0.5)))
	pd, err := EvaluateToPD(e, env)
	if err != nil {
		t.Fatalf("EvaluateToPD: %v", err)
	}
	if s := pd.Sum(); s < 0.999 || s > 1.001 {
		t.Errorf("PD does not sum to 1: %v", s)
	}
	mass := make(map[float64]float64)
	for _, en := range pd {
		mass[en.Value] = en.Prob
	}
	if mass[0] < 0.24 || mass[0] > 0.26 {
		t.Errorf("P(sum=0) = %v, want ~0.25", mass[0])
	}
	if mass[1] < 0.49 || mass[1] > 0.51 {
		t.Errorf("P(sum=1) = %v, want ~0.5", mass[1])
	}
	if mass[2] < 0.24 || mass[2] > 0.26 {
		t.Errorf("P(sum=2) = %v, want ~0.25", mass[2])
	}
}

func TestEvaluateToKleeneUncertainPropagation(t *testing.T) {
	env := &KleeneEnv{State: []Domain{NewDomain(0, 1)}}
	e := NAry(KindConjunction, StateFluentRef(0, "p"), One)
	got, err := EvaluateToKleene(e, env)
	if err != nil {
		t.Fatalf("EvaluateToKleene: %v", err)
	}
	if !got.Equal(NewDomain(0, 1)) {
		t.Errorf("EvaluateToKleene(p and true) with p in {0,1} = %v, want {0,1}", got)
	}
}

func TestEvaluateToKleeneDefiniteCollapse(t *testing.T) {
	env := &KleeneEnv{State: []Domain{NewDomain(1)}}
	e := NAry(KindConjunction, StateFluentRef(0, "p"), Zero)
	got, err := EvaluateToKleene(e, env)
	if err != nil {
		t.Fatalf("EvaluateToKleene: %v", err)
	}
	if !got.Equal(NewDomain(0)) {
		t.Errorf("EvaluateToKleene(p and false) = %v, want {0}", got)
	}
}

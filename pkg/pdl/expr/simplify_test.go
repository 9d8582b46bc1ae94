package expr

import "testing"

func TestSimplifyConstantFolding(t *testing.T) {
	e := NAry(KindAddition, Constant(2), Constant(3), Constant(4))
	got := Simplify(e, nil)
	v, ok := IsConstant(got)
	if !ok || v != 9 {
		t.Errorf("Simplify(2+3+4) = %v, want constant 9", Print(got))
	}
}

func TestSimplifyConjunctionAbsorbing(t *testing.T) {
	s := StateFluentRef(0, "p")
	e := NAry(KindConjunction, s, Zero)
	got := Simplify(e, nil)
	v, ok := IsConstant(got)
	if !ok || v != 0 {
		t.Errorf("Simplify(p and false) = %v, want constant 0", Print(got))
	}
}

func TestSimplifyConjunctionIdentityDropped(t *testing.T) {
	s := StateFluentRef(0, "p")
	e := NAry(KindConjunction, s, One)
	got := Simplify(e, nil)
	if !Equal(got, s) {
		t.Errorf("Simplify(p and true) = %v, want p", Print(got))
	}
}

func TestSimplifyFlattensNestedAddition(t *testing.T) {
	inner := NAry(KindAddition, Constant(1), Constant(2))
	outer := NAry(KindAddition, inner, Constant(3))
	got := Simplify(outer, nil)
	v, ok := IsConstant(got)
	if !ok || v != 6 {
		t.Errorf("Simplify((1+2)+3) = %v, want constant 6", Print(got))
	}
}

func TestSimplifyStateFluentReplacement(t *testing.T) {
	s := StateFluentRef(2, "done")
	got := Simplify(s, map[int]float64{2: 1})
	v, ok := IsConstant(got)
	if !ok || v != 1 {
		t.Errorf("Simplify with replacement for index 2 = %v, want constant 1", Print(got))
	}
}

func TestSimplifyIfThenElseConstantCondition(t *testing.T) {
	s := StateFluentRef(0, "p")
	e := IfThenElse(One, s, Constant(5))
	got := Simplify(e, nil)
	if !Equal(got, s) {
		t.Errorf("Simplify(if true then p else 5) = %v, want p", Print(got))
	}
}

func TestSimplifyIfThenElseIndicatorCollapse(t *testing.T) {
	cond := StateFluentRef(0, "p")
	e := IfThenElse(cond, One, Zero)
	got := Simplify(e, nil)
	if !Equal(got, cond) {
		t.Errorf("Simplify(if p then 1 else 0) = %v, want p", Print(got))
	}
}

func TestSimplifyNestedIfChainBecomesMultiConditionChecker(t *testing.T) {
	c1 := StateFluentRef(0, "a")
	c2 := StateFluentRef(1, "b")
	e := IfThenElse(c1, Constant(10), IfThenElse(c2, Constant(20), Constant(30)))
	got := Simplify(e, nil)
	if got.Kind != KindMultiConditionChecker {
		t.Fatalf("Simplify(nested if) = %v, want MultiConditionChecker", Print(got))
	}
	if len(got.Branches) != 3 {
		t.Errorf("got %d branches, want 3", len(got.Branches))
	}
}

func TestSimplifyDiscreteDropsZeroProbabilityBranch(t *testing.T) {
	e := Discrete([]DiscreteBranch{
		{Value: Constant(1), Prob: Constant(0)},
		{Value: Constant(2), Prob: Constant(1)},
	})
	got := Simplify(e, nil)
	v, ok := IsConstant(got)
	if !ok || v != 2 {
		t.Errorf("Simplify(Discrete with one live branch) = %v, want constant 2", Print(got))
	}
}

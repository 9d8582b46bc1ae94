package expr

import "testing"

func TestCollectInitialInfoStateDependency(t *testing.T) {
	e := NAry(KindAddition, StateFluentRef(2, "x"), StateFluentRef(5, "y"))
	out := NewDependencySet()
	CollectInitialInfo(e, 1, out)
	if _, ok := out.DependentState[2]; !ok {
		t.Error("missing dependency on state fluent 2")
	}
	if _, ok := out.DependentState[5]; !ok {
		t.Error("missing dependency on state fluent 5")
	}
}

func TestCollectInitialInfoSubtractionFlipsPolarity(t *testing.T) {
	e := NAry(KindSubtraction, ActionFluentRef(0, "a"), ActionFluentRef(1, "b"))
	out := NewDependencySet()
	CollectInitialInfo(e, 1, out)
	if _, ok := out.PositiveAction[0]; !ok {
		t.Error("left operand of subtraction should stay positively depended")
	}
	if _, ok := out.NegativeAction[1]; !ok {
		t.Error("right operand of subtraction should be negatively depended")
	}
	if _, ok := out.PositiveAction[1]; ok {
		t.Error("right operand of subtraction should not also be positively depended")
	}
}

func TestCollectInitialInfoComparisonMarksBothPolarities(t *testing.T) {
	e := NAry(KindGreater, ActionFluentRef(0, "a"), Constant(3))
	out := NewDependencySet()
	CollectInitialInfo(e, 1, out)
	if _, ok := out.PositiveAction[0]; !ok {
		t.Error("comparison should mark positive dependency")
	}
	if _, ok := out.NegativeAction[0]; !ok {
		t.Error("comparison should mark negative dependency")
	}
	if !out.HasArithmetic {
		t.Error("comparison should set HasArithmetic")
	}
}

func TestCollectInitialInfoProbabilisticFlag(t *testing.T) {
	e := Bernoulli(Constant(0.4))
	out := NewDependencySet()
	CollectInitialInfo(e, 1, out)
	if !out.Probabilistic {
		t.Error("Bernoulli node should set Probabilistic")
	}
}

func TestCollectInitialInfoAmbiguousMultiplicationSign(t *testing.T) {
	e := NAry(KindMultiplication, ActionFluentRef(0, "a"), ActionFluentRef(1, "b"))
	out := NewDependencySet()
	CollectInitialInfo(e, 1, out)
	// Neither operand is a constant, so sign is ambiguous: both fluents are
	// conservatively recorded under both polarities.
	if _, ok := out.PositiveAction[0]; !ok {
		t.Error("ambiguous product should mark positive dependency on operand 0")
	}
	if _, ok := out.NegativeAction[0]; !ok {
		t.Error("ambiguous product should mark negative dependency on operand 0")
	}
}

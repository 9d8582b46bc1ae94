package expr

import (
	"math"
	"testing"
)

func TestCalculateDomainAddition(t *testing.T) {
	domains := []Domain{NewDomain(0, 1, 2)}
	e := NAry(KindAddition, StateFluentRef(0, "x"), Constant(10))
	got, err := CalculateDomain(e, domains, nil, nil, nil)
	if err != nil {
		t.Fatalf("CalculateDomain: %v", err)
	}
	if got.Min() != 10 || got.Max() != 12 {
		t.Errorf("CalculateDomain(x+10) = [%v,%v], want [10,12]", got.Min(), got.Max())
	}
}

func TestCalculateDomainDivisionByZeroRangeWarns(t *testing.T) {
	domains := []Domain{NewDomain(-1, 0, 1)}
	e := NAry(KindDivision, Constant(1), StateFluentRef(0, "x"))
	var warnings []DomainWarning
	got, err := CalculateDomain(e, domains, nil, nil, &warnings)
	if err != nil {
		t.Fatalf("CalculateDomain: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if !math.IsInf(got.Min(), -1) || !math.IsInf(got.Max(), 1) {
		t.Errorf("CalculateDomain(1/x) with x ranging over 0 = [%v,%v], want (-inf,inf)", got.Min(), got.Max())
	}
}

func TestCalculateDomainEqualsOverlapping(t *testing.T) {
	domains := []Domain{NewDomain(1, 2, 3), NewDomain(3, 4, 5)}
	e := NAry(KindEquals, StateFluentRef(0, "x"), StateFluentRef(1, "y"))
	got, err := CalculateDomain(e, domains, nil, nil, nil)
	if err != nil {
		t.Fatalf("CalculateDomain: %v", err)
	}
	if !got.Contains(1) || !got.Contains(0) {
		t.Errorf("CalculateDomain(x==y) over overlapping ranges = %v, want both 0 and 1 reachable", got)
	}
}

func TestCalculateDomainEqualsDisjoint(t *testing.T) {
	domains := []Domain{NewDomain(1, 2), NewDomain(10, 11)}
	e := NAry(KindEquals, StateFluentRef(0, "x"), StateFluentRef(1, "y"))
	got, err := CalculateDomain(e, domains, nil, nil, nil)
	if err != nil {
		t.Fatalf("CalculateDomain: %v", err)
	}
	if !got.Equal(NewDomain(0)) {
		t.Errorf("CalculateDomain(x==y) over disjoint ranges = %v, want {0}", got)
	}
}

func TestCalculateDomainIfThenElseUnionsReachableBranches(t *testing.T) {
	domains := []Domain{NewDomain(0, 1)}
	cond := StateFluentRef(0, "p")
	e := IfThenElse(cond, Constant(5), Constant(9))
	got, err := CalculateDomain(e, domains, nil, nil, nil)
	if err != nil {
		t.Fatalf("CalculateDomain: %v", err)
	}
	if !got.Equal(NewDomain(5, 9)) {
		t.Errorf("CalculateDomain(if p then 5 else 9) with p uncertain = %v, want {5,9}", got)
	}
}

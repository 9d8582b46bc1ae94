package expr

import "testing"

func TestPrintLeaves(t *testing.T) {
	cases := map[*Expr]string{
		StateFluentRef(3, "x"):  "$s(3)",
		ActionFluentRef(1, "a"): "$a(1)",
		NonFluentRef(0, "c"):    "$n(0)",
		Constant(7):             "$c(7)",
	}
	for e, want := range cases {
		if got := Print(e); got != want {
			t.Errorf("Print(%v) = %q, want %q", e, got, want)
		}
	}
}

func TestPrintNAry(t *testing.T) {
	e := NAry(KindAddition, Constant(1), Constant(2))
	got := Print(e)
	want := "(+ $c(1) $c(2))"
	if got != want {
		t.Errorf("Print(1+2) = %q, want %q", got, want)
	}
}

func TestPrintIfThenElse(t *testing.T) {
	e := IfThenElse(StateFluentRef(0, "p"), Constant(1), Constant(0))
	got := Print(e)
	want := "(if $s(0) $c(1) $c(0))"
	if got != want {
		t.Errorf("Print(if) = %q, want %q", got, want)
	}
}

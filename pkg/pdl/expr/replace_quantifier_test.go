package expr

import "testing"

type fakeUniverse map[string][]string

func (f fakeUniverse) ObjectNamesOf(typeName string) ([]string, error) {
	names, ok := f[typeName]
	if !ok {
		return nil, errNotFound(typeName)
	}
	return names, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "unknown type: " + string(e) }

func TestReplaceQuantifierExpandsForall(t *testing.T) {
	inst := fakeUniverse{"robot": {"r1", "r2", "r3"}}
	body := UninstantiatedVariable("at-goal", []*Expr{ParameterRef("?r")})
	e := Quantifier(KindForall, []Binder{{Param: "?r", Type: "robot"}}, body)
	got, err := ReplaceQuantifier(e, map[string]Binding{}, inst)
	if err != nil {
		t.Fatalf("ReplaceQuantifier: %v", err)
	}
	if got.Kind != KindConjunction {
		t.Fatalf("forall expands to %v, want Conjunction", got.Kind)
	}
	if len(got.Args) != 3 {
		t.Fatalf("got %d conjuncts, want 3 (one per robot)", len(got.Args))
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		arg := got.Args[i].SchemaArgs[0]
		if arg.Kind != KindObjectRef || arg.ObjectName != want {
			t.Errorf("conjunct %d bound to %v, want object %q", i, arg, want)
		}
	}
}

func TestReplaceQuantifierInnerBinderShadowsOuterOfSameName(t *testing.T) {
	// Both binders are named ?x over the same type: the inner quantifier
	// must shadow the outer's binding rather than being corrupted by it, so
	// every outer branch expands the inner exists over the full {c1,c2}
	// universe independent of which outer value is current.
	inst := fakeUniverse{"cell": {"c1", "c2"}}
	inner := Quantifier(KindExists, []Binder{{Param: "?x", Type: "cell"}},
		UninstantiatedVariable("adjacent", []*Expr{ParameterRef("?x")}))
	outer := Quantifier(KindForall, []Binder{{Param: "?x", Type: "cell"}}, inner)
	got, err := ReplaceQuantifier(outer, map[string]Binding{}, inst)
	if err != nil {
		t.Fatalf("ReplaceQuantifier: %v", err)
	}
	if len(got.Args) != 2 {
		t.Fatalf("got %d outer conjuncts, want 2", len(got.Args))
	}
	for i, branch := range got.Args {
		if branch.Kind != KindDisjunction || len(branch.Args) != 2 {
			t.Fatalf("outer branch %d did not expand the shadowed inner exists over both cells: %v", i, branch)
		}
		seen := map[string]bool{}
		for _, d := range branch.Args {
			seen[d.SchemaArgs[0].ObjectName] = true
		}
		if !seen["c1"] || !seen["c2"] {
			t.Errorf("outer branch %d inner expansion = %v, want both c1 and c2 (shadowing, not corruption)", i, seen)
		}
	}
}

func TestReplaceQuantifierSiblingBranchesDoNotShareBindings(t *testing.T) {
	// A binder over a 2-object type nested under another binder over a
	// different-named parameter of the same type must bind independently
	// per cartesian-product branch, not share one mutated map.
	inst := fakeUniverse{"cell": {"c1", "c2"}}
	body := NAry(KindEquals, ParameterRef("?a"), ParameterRef("?b"))
	e := Quantifier(KindForall, []Binder{{Param: "?a", Type: "cell"}, {Param: "?b", Type: "cell"}}, body)
	got, err := ReplaceQuantifier(e, map[string]Binding{}, inst)
	if err != nil {
		t.Fatalf("ReplaceQuantifier: %v", err)
	}
	if len(got.Args) != 4 {
		t.Fatalf("got %d instances, want 4 (2x2 cartesian product)", len(got.Args))
	}
	var matches int
	for _, pair := range got.Args {
		if pair.Args[0].ObjectName == pair.Args[1].ObjectName {
			matches++
		}
	}
	if matches != 2 {
		t.Errorf("got %d self-equal instances, want 2 (c1==c1 and c2==c2)", matches)
	}
}

type fakeResolver struct {
	stateIndex map[string]int
}

func (r fakeResolver) ResolveVariable(schemaName string, objectNames []string) (VarKind, int, float64, bool, error) {
	key := schemaName
	for _, o := range objectNames {
		key += "," + o
	}
	idx, ok := r.stateIndex[key]
	if !ok {
		return 0, 0, 0, false, errNotFound(key)
	}
	return VarKindState, idx, 0, false, nil
}

func TestInstantiateResolvesGroundedVariable(t *testing.T) {
	resolver := fakeResolver{stateIndex: map[string]int{"at,r1": 4}}
	e := UninstantiatedVariable("at", []*Expr{ParameterRef("?r")})
	bindings := map[string]Binding{"?r": {ObjectName: "r1", TypeName: "robot"}}
	got, err := Instantiate(e, resolver, bindings)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got.Kind != KindStateFluentRef || got.VarIndex != 4 {
		t.Errorf("Instantiate(at(?r)) = %v, want state fluent index 4", got)
	}
}

// Package inputmodel defines the already-parsed representation the
// Instantiator consumes (§6 "Input file format"). The lexical/syntactic
// parser that produces this representation from the two PDL text files is
// out of scope (§1 Non-goals); this package supplies the shape that
// collaborator is expected to hand off, plus a minimal JSON-backed loader
// that stands in for it so the pipeline is exercisable end to end without
// a real parser.
package inputmodel

import (
	"encoding/json"
	"fmt"
	"io"
)

// VariableKind classifies a schematic (unground) variable declaration.
type VariableKind string

const (
	KindStateFluent VariableKind = "state-fluent"
	KindActionFluent VariableKind = "action-fluent"
	KindNonFluent    VariableKind = "non-fluent"
	KindInterm       VariableKind = "interm-fluent"
)

// TypeDecl declares a named type, optionally a subtype of Parent, with its
// object list. The root type has an empty Parent.
type TypeDecl struct {
	Name    string   `json:"name"`
	Parent  string   `json:"parent,omitempty"`
	Objects []string `json:"objects"`
}

// VariableDecl is a schematic variable declaration (§3 "Parametrized
// Variable"): a name, its kind, its parameter types (in order), its value
// type, and a default initial value (only meaningful for state-fluents).
type VariableDecl struct {
	Name         string       `json:"name"`
	Kind         VariableKind `json:"kind"`
	ParamTypes   []string     `json:"paramTypes"`
	ValueType    string       `json:"valueType"`
	InitialValue float64      `json:"initialValue"`
}

// FormulaNode is a schematic (pre-grounding) formula, represented as a
// generic S-expression-shaped tree: Op names either a leaf ("const",
// "var", "param") or an operator matching expr.Kind's String() form ("and",
// "or", "+", ">=", "if", "Bernoulli", "Discrete", "sum", "forall", ...).
// This mirrors the prefix grammar §6 documents for the *output* format,
// reused here for the (out-of-scope) parser's handoff shape since the spec
// does not mandate a different one for input.
type FormulaNode struct {
	Op    string         `json:"op"`
	Const float64        `json:"const,omitempty"`
	Name  string         `json:"name,omitempty"` // "var": schema name; "param": parameter name
	Args  []*FormulaNode `json:"args,omitempty"`

	// "sum"/"product"/"forall"/"exists": binder list and body.
	Binders []BinderDecl `json:"binders,omitempty"`
	Body    *FormulaNode `json:"body,omitempty"`

	// "Discrete": parallel value/probability branch list.
	Branches []DiscreteBranchDecl `json:"branches,omitempty"`

	// "if": handled via Args = [cond, then, else]. "switch" (pre-grounding
	// is never produced by a real parser, but supported for round-tripping
	// serialized output back in as a test fixture): GuardedBranches as guard/effect.
	GuardedBranches []GuardedBranchDecl `json:"guardedBranches,omitempty"`
}

// BinderDecl is one quantifier binder (parameter name, ranging type name).
type BinderDecl struct {
	Param string `json:"param"`
	Type  string `json:"type"`
}

// DiscreteBranchDecl is one (value, probability) pair of a schematic
// Discrete node.
type DiscreteBranchDecl struct {
	Value *FormulaNode `json:"value"`
	Prob  *FormulaNode `json:"prob"`
}

// GuardedBranchDecl is one (guard, effect) pair of a schematic
// MultiConditionChecker node.
type GuardedBranchDecl struct {
	Guard  *FormulaNode `json:"guard"`
	Effect *FormulaNode `json:"effect"`
}

// CPFDecl pairs a schematic head reference (the state-fluent name plus its
// own parameter names, e.g. at'(?r) for variable "at") with its schematic
// body.
type CPFDecl struct {
	Head       string       `json:"head"`
	HeadParams []string     `json:"headParams"`
	Formula    *FormulaNode `json:"formula"`
}

// NonFluentBinding binds a non-fluent schema, grounded over a concrete
// object tuple, to a numeric value (§6: the problem instance supplies
// these).
type NonFluentBinding struct {
	Name    string   `json:"name"`
	Objects []string `json:"objects"`
	Value   float64  `json:"value"`
}

// Domain is the full parsed representation of a (domain file, problem
// file) pair, exactly the shape §6 requires the out-of-scope parser to
// expose.
type Domain struct {
	Name          string             `json:"name"`
	Types         []TypeDecl         `json:"types"`
	Variables     []VariableDecl     `json:"variables"`
	CPFs          []CPFDecl          `json:"cpfs"`
	Reward        *FormulaNode       `json:"reward"`
	Preconditions []*FormulaNode     `json:"preconditions"`
	NonFluents    []NonFluentBinding `json:"nonFluents"`

	Horizon       int     `json:"horizon"`
	Discount      float64 `json:"discount"`
	MaxConcurrent int     `json:"maxConcurrent"`
}

// Load decodes a Domain from JSON, the stand-in wire format for the
// out-of-scope lexer/parser's handoff (§1 Non-goals: "the lexical/syntactic
// parser ... is out of scope and treated only as an external
// collaborator").
func Load(r io.Reader) (*Domain, error) {
	var d Domain
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("inputmodel: decode: %w", err)
	}
	return &d, nil
}

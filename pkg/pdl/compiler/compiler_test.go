package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prost-planner/rddlc/internal/inputmodel"
)

func varNode(name string, args ...*inputmodel.FormulaNode) *inputmodel.FormulaNode {
	return &inputmodel.FormulaNode{Op: "var", Name: name, Args: args}
}

func constNode(v float64) *inputmodel.FormulaNode {
	return &inputmodel.FormulaNode{Op: "const", Const: v}
}

// singleBooleanCPFDomain builds the §8 scenario 1 fixture directly as an
// inputmodel.Domain: one Boolean state fluent p with CPF p' = ~p, reward =
// p, no action fluents.
func singleBooleanCPFDomain() *inputmodel.Domain {
	return &inputmodel.Domain{
		Name: "single-bool",
		Variables: []inputmodel.VariableDecl{
			{Name: "p", Kind: inputmodel.KindStateFluent, ValueType: "bool", InitialValue: 0},
		},
		CPFs: []inputmodel.CPFDecl{
			{Head: "p", Formula: &inputmodel.FormulaNode{Op: "~", Args: []*inputmodel.FormulaNode{varNode("p")}}},
		},
		Reward:   varNode("p"),
		Horizon:  3,
		Discount: 1.0,
	}
}

func TestCompileSingleBooleanCPFEndToEnd(t *testing.T) {
	domain := singleBooleanCPFDomain()
	var out strings.Builder

	result, err := Compile(domain, DefaultOptions(), &out, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Task)
	require.Len(t, result.Task.StateFluents, 1)
	require.Len(t, result.Task.CPFs, 1)
	require.True(t, result.Task.DeterministicTask)

	output := out.String()
	require.Contains(t, output, "task single-bool")
	require.Contains(t, output, "(~ $s(0))")
	require.Contains(t, output, "trainingSet")
}

func TestCompileRejectsUndeclaredType(t *testing.T) {
	domain := &inputmodel.Domain{
		Name: "bad",
		Variables: []inputmodel.VariableDecl{
			{Name: "at", Kind: inputmodel.KindStateFluent, ParamTypes: []string{"robot"}, ValueType: "bool"},
		},
	}
	var out strings.Builder
	_, err := Compile(domain, DefaultOptions(), &out, nil)
	require.Error(t, err)
	var schemaErr *schemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestCompileUsesProvidedSeedDeterministically(t *testing.T) {
	domain := singleBooleanCPFDomain()
	opts := DefaultOptions()
	opts.Seed = 42

	var out1, out2 strings.Builder
	_, err := Compile(domain, opts, &out1, nil)
	require.NoError(t, err)
	_, err = Compile(domain, opts, &out2, nil)
	require.NoError(t, err)
	require.Equal(t, out1.String(), out2.String())
}

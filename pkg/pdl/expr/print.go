package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders e in the prefix-notation grammar documented in §6 External
// Interfaces: n-ary connectives and comparisons as `(op arg1 arg2 ...)`,
// unary operators as `(op arg)`, state and action fluent references as
// `$s(i)` and `$a(i)`, numeric constants as `$c(v)`, conditionals as
// `(if cond then else)`, and probabilistic constructors by name. It is
// the inverse of no parser in this module (parsing is out of scope, §1
// Non-goals) but is exercised by every serialize.WriteTask call and by
// tests asserting CPF shapes.
func Print(e *Expr) string {
	var b strings.Builder
	printInto(&b, e)
	return b.String()
}

func printInto(b *strings.Builder, e *Expr) {
	if e == nil {
		b.WriteString("<nil>")
		return
	}
	switch e.Kind {
	case KindConstant:
		b.WriteString(formatConst(e.Const))
	case KindStateFluentRef:
		fmt.Fprintf(b, "$s(%d)", e.VarIndex)
	case KindActionFluentRef:
		fmt.Fprintf(b, "$a(%d)", e.VarIndex)
	case KindNonFluentRef:
		// Instantiate folds every non-fluent reference into a KindConstant
		// (its bound value is already known at grounding time), so this
		// case is unreachable for any formula that has passed through the
		// Instantiator; kept only as a defensive fallback.
		fmt.Fprintf(b, "$n(%d)", e.VarIndex)
	case KindParameterRef:
		b.WriteString(e.ParamName)
	case KindObjectRef:
		b.WriteString(e.ObjectName)
	case KindNegation, KindExponential:
		fmt.Fprintf(b, "(%s ", e.Kind.String())
		printInto(b, e.Args[0])
		b.WriteString(")")
	case KindBernoulli:
		b.WriteString("(Bernoulli ")
		printInto(b, e.Args[0])
		b.WriteString(")")
	case KindDiscrete:
		b.WriteString("(Discrete")
		for _, br := range e.DiscreteBranches {
			b.WriteString(" (")
			printInto(b, br.Value)
			b.WriteString(" ")
			printInto(b, br.Prob)
			b.WriteString(")")
		}
		b.WriteString(")")
	case KindIfThenElse:
		b.WriteString("(if ")
		printInto(b, e.Args[0])
		b.WriteString(" ")
		printInto(b, e.Args[1])
		b.WriteString(" ")
		printInto(b, e.Args[2])
		b.WriteString(")")
	case KindMultiConditionChecker:
		b.WriteString("(switch")
		for _, br := range e.Branches {
			b.WriteString(" (")
			printInto(b, br.Guard)
			b.WriteString(" ")
			printInto(b, br.Effect)
			b.WriteString(")")
		}
		b.WriteString(")")
	case KindUninstantiatedVariable:
		fmt.Fprintf(b, "%s(", e.SchemaName)
		for i, a := range e.SchemaArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			printInto(b, a)
		}
		b.WriteString(")")
	case KindSum, KindProduct, KindForall, KindExists:
		b.WriteString(e.Kind.String())
		b.WriteString("_{")
		for i, bd := range e.Binders {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s : %s", bd.Param, bd.Type)
		}
		b.WriteString("} ")
		printInto(b, e.Body)
	default:
		fmt.Fprintf(b, "(%s", e.Kind.String())
		for _, a := range e.Args {
			b.WriteString(" ")
			printInto(b, a)
		}
		b.WriteString(")")
	}
}

func formatConst(v float64) string {
	return fmt.Sprintf("$c(%s)", formatNumber(v))
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

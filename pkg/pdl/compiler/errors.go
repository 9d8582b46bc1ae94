package compiler

import "fmt"

// schemaError wraps a failure the Instantiator detects while resolving the
// parsed instance against its declared types and variables — an unknown
// type, ambiguous or unknown object, wrong parameter arity, an undefined
// variable reference, or a duplicate CPF/domain/non-fluent/instance name
// (§7 "Schema errors").
type schemaError struct {
	cause error
}

func (e *schemaError) Error() string { return fmt.Sprintf("schema error: %s", e.cause) }
func (e *schemaError) Unwrap() error { return e.cause }

// semanticError wraps a failure from an unsupported construct reaching a
// stage that cannot handle it (e.g. a Discrete whose branch probability
// itself contains a Bernoulli or Discrete reaching the Determinizer) or a
// precondition that statically evaluates to
// falsity, making the task infeasible (§7 "Semantic errors").
type semanticError struct {
	cause error
}

func (e *semanticError) Error() string { return fmt.Sprintf("semantic error: %s", e.cause) }
func (e *semanticError) Unwrap() error { return e.cause }

// resourceError marks an overflow while computing a hash-key base. It is
// never returned from Compile — §7 says resource errors are non-fatal, the
// affected hash is disabled and its evaluatables fall back to map-based
// caching — but is logged at Warn and kept as a type so a caller inspecting
// the log programmatically has something concrete to match on.
type resourceError struct {
	cause error
}

func (e *resourceError) Error() string { return fmt.Sprintf("resource error: %s", e.cause) }
func (e *resourceError) Unwrap() error { return e.cause }

package collect

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Expectation is a compiled CEL condition over a decoded payload, bound to
// the variable `payload`. For example: `has(payload.hash) && payload.height > 0`.
type Expectation struct {
	Expression string
	program    cel.Program
}

var expectEnv = mustExpectEnv()

func mustExpectEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("payload", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}
	return env
}

// CompileExpectation parses and type-checks expr.
func CompileExpectation(expr string) (*Expectation, error) {
	ast, issues := expectEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); out.String() != "bool" && out.String() != "dyn" {
		return nil, fmt.Errorf("CEL expression %q must evaluate to bool, got %s", expr, out)
	}
	prg, err := expectEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation failed for %q: %w", expr, err)
	}
	return &Expectation{Expression: expr, program: prg}, nil
}

// Check decodes payload and evaluates the expectation against it.
func (e *Expectation) Check(payload []byte) (bool, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out, _, err := e.program.Eval(map[string]any{"payload": doc})
	if err != nil {
		return false, fmt.Errorf("%w: CEL evaluation error for %q: %v", ErrInvalidPayload, e.Expression, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression %q returned non-bool: %T", e.Expression, out.Value())
	}
	return result, nil
}

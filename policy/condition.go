package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func celEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return env, envErr
}

// CompileCondition compiles a CEL boolean expression over the action data,
// exposed as the `data` map, e.g. `has(data.confidence) && data.confidence < 0.7`.
// Accessing a missing key fails evaluation, which triggers the policy.
func CompileCondition(expr string) (Condition, error) {
	e, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := e.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return func(data map[string]interface{}) (bool, error) {
		if data == nil {
			data = map[string]interface{}{}
		}
		out, _, err := prg.Eval(map[string]interface{}{"data": data})
		if err != nil {
			return false, fmt.Errorf("eval: %w", err)
		}
		value, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("eval: result %v is not bool", out.Value())
		}
		return value, nil
	}, nil
}

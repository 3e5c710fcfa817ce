package callback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Expressions see three variables:
//
//	key    string - the record key
//	value  string - the raw record value
//	record map    - the value decoded as a JSON object, empty when the
//	                value is not one
//
// Predicates must evaluate to bool, transforms to the new value string.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("value", cel.StringType),
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
		ext.Strings(),
		jsonLib(),
	)
}

func compile(src string, want *cel.Type, kind string) (cel.Program, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %s: %w", kind, issues.Err())
	}
	if out := ast.OutputType(); out != want && out != cel.DynType {
		return nil, fmt.Errorf("%s expression must return %s, got %s", kind, want, out)
	}
	prog, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", kind, err)
	}
	return prog, nil
}

func activation(key, value string) map[string]any {
	rec := map[string]any{}
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		rec = map[string]any{}
	}
	return map[string]any{"key": key, "value": value, "record": rec}
}

// ExprPredicate is a compiled CEL predicate.
type ExprPredicate struct {
	prog cel.Program
}

var _ Predicate = (*ExprPredicate)(nil)

func NewExprPredicate(src string) (*ExprPredicate, error) {
	prog, err := compile(src, cel.BoolType, "predicate")
	if err != nil {
		return nil, err
	}
	return &ExprPredicate{prog: prog}, nil
}

func (p *ExprPredicate) Accepts(ctx context.Context, key, value string) (bool, error) {
	out, _, err := p.prog.ContextEval(ctx, activation(key, value))
	if err != nil {
		return false, fmt.Errorf("predicate: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate: expected bool result, got %T", out.Value())
	}
	return b, nil
}

// ExprTransform is a compiled CEL transform.
type ExprTransform struct {
	prog cel.Program
}

var _ Transform = (*ExprTransform)(nil)

func NewExprTransform(src string) (*ExprTransform, error) {
	prog, err := compile(src, cel.StringType, "transform")
	if err != nil {
		return nil, err
	}
	return &ExprTransform{prog: prog}, nil
}

func (t *ExprTransform) Apply(ctx context.Context, key, value string) (string, error) {
	out, _, err := t.prog.ContextEval(ctx, activation(key, value))
	if err != nil {
		return "", fmt.Errorf("transform: %w", err)
	}
	s, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("transform: expected string result, got %T", out.Value())
	}
	return s, nil
}

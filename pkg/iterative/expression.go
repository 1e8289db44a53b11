package iterative

import (
	"fmt"
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// mathBuiltins is the fixed allow-list of unary math functions exposed to
// output expressions: abs, sqrt, exp, log, log10, and the trig family.
var mathBuiltins = map[string]func(float64) float64{
	"abs": math.Abs, "sqrt": math.Sqrt, "exp": math.Exp,
	"log": math.Log, "log10": math.Log10,
	"sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
	"asin": math.Asin, "acos": math.Acos, "atan": math.Atan,
}

func unaryFloat(name string, fn func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				f, ok := v.Value().(float64)
				if !ok {
					return types.NewErr("%s: argument must be a number", name)
				}
				return types.Double(fn(f))
			})))
}

// OutputExpression evaluates a restricted arithmetic expression over a
// case's extracted output names, with a fixed allow-listed math builtin
// set (abs, min, max, pow, sqrt, exp, log, log10, trig functions, pi, e).
// This is a separate, narrower evaluator than the template package's
// formula Evaluator: the algorithm only ever sees one scalar per case,
// never an environment of static objects.
type OutputExpression struct {
	expr string
	env  *cel.Env
}

// NewOutputExpression compiles expr once; outputNames declares every
// identifier the expression is allowed to reference, in addition to the
// fixed math builtins and the pi/e constants.
func NewOutputExpression(expr string, outputNames []string) (*OutputExpression, error) {
	opts := []cel.EnvOption{
		cel.Variable("pi", cel.DoubleType),
		cel.Variable("e", cel.DoubleType),
		cel.Function("min",
			cel.Overload("min_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Double(math.Min(float64(a.(types.Double)), float64(b.(types.Double))))
				}))),
		cel.Function("max",
			cel.Overload("max_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Double(math.Max(float64(a.(types.Double)), float64(b.(types.Double))))
				}))),
		cel.Function("pow",
			cel.Overload("pow_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Double(math.Pow(float64(a.(types.Double)), float64(b.(types.Double))))
				}))),
	}
	for name, fn := range mathBuiltins {
		opts = append(opts, unaryFloat(name, fn))
	}
	for _, name := range outputNames {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("build output expression environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile output expression %q: %w", expr, issues.Err())
	}
	if _, err := env.Program(ast); err != nil {
		return nil, fmt.Errorf("plan output expression %q: %w", expr, err)
	}
	return &OutputExpression{expr: expr, env: env}, nil
}

// Eval evaluates the expression against one case's extracted outputs
// (plus the pi/e constants), returning the scalar the algorithm sees.
func (e *OutputExpression) Eval(outputs map[string]any) (float64, error) {
	ast, issues := e.env.Compile(e.expr)
	if issues != nil && issues.Err() != nil {
		return 0, issues.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return 0, err
	}

	vars := map[string]any{"pi": math.Pi, "e": math.E}
	for k, v := range outputs {
		vars[k] = toFloatIfNumeric(v)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return 0, fmt.Errorf("eval output expression %q: %w", e.expr, err)
	}
	switch v := out.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("output expression %q did not evaluate to a number", e.expr)
	}
}

func toFloatIfNumeric(v any) any {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return v
	}
}

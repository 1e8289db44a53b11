package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
)

// Evaluator resolves a formula expression string against an environment of
// variable and static-object bindings: given an expression string and an
// environment map, it returns a scalar or an error.
//
// This implementation evaluates formulas with CEL (a side-effect-free,
// sandboxed expression language) rather than shelling out to an external
// interpreter process: CEL's declared-variable environment and small
// arithmetic/math stdlib is a closer match to a restricted arithmetic
// expression grammar with allow-listed math builtins than a general
// Python/R subprocess would be, and it never needs an external interpreter
// binary on the host. Static-object directives that merely bind a name to
// a constant expression (`NAME = EXPR`) are supported; directives defining
// multi-statement functions are outside what a sandboxed expression
// language can express and are skipped with a warning — compilation always
// continues rather than aborting.
type Evaluator struct{}

func NewEvaluator() *Evaluator { return &Evaluator{} }

// Eval evaluates expr against env, which maps names to int64/float64/string
// values (variables and previously-resolved static objects).
func (e *Evaluator) Eval(expr string, env map[string]any) (any, error) {
	var opts []cel.EnvOption
	for name, v := range env {
		opts = append(opts, cel.Variable(name, celTypeOf(v)))
	}
	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("build evaluation environment: %w", err)
	}

	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", expr, err)
	}

	out, _, err := prg.Eval(env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", expr, err)
	}
	return out.Value(), nil
}

func celTypeOf(v any) *cel.Type {
	switch v.(type) {
	case int64, int:
		return cel.IntType
	case float64, float32:
		return cel.DoubleType
	default:
		return cel.StringType
	}
}

var (
	decimalFormatRe = regexp.MustCompile(`^0\.(0+)$`)
	scientificFormatRe = regexp.MustCompile(`^0\.(0+)E00$`)
)

// numericFormat turns a FORMAT string ("0.00", "0.0000E00") into a decimal
// count plus a scientific-notation flag. ok is false when FORMAT doesn't
// match either shape, meaning the caller should emit the interpreter's
// default string form instead.
func numericFormat(format string) (decimals int, scientific bool, ok bool) {
	if m := decimalFormatRe.FindStringSubmatch(format); m != nil {
		return len(m[1]), false, true
	}
	if m := scientificFormatRe.FindStringSubmatch(format); m != nil {
		return len(m[1]), true, true
	}
	return 0, false, false
}

func formatNumeric(v float64, format string) string {
	decimals, scientific, ok := numericFormat(format)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	if scientific {
		return strings.ToUpper(fmt.Sprintf("%.*e", decimals, v))
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

package template

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jihwankim/fzgo/pkg/model"
)

// directiveKind is what classifyLine makes of one line, checked against
// "<comment_line> <formula_prefix> : <code>" (static object),
// "<comment_line> <formula_prefix> ?" (ignored unit test), or a plain
// comment (neither).
type directiveKind int

const (
	directiveNone directiveKind = iota
	directiveStatic
	directiveIgnoredTest
)

func classifyLine(m model.Model, line string) (directiveKind, string) {
	prefix := m.CommentLine + m.FormulaPrefix
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, prefix) {
		return directiveNone, ""
	}
	rest := trimmed[len(prefix):]
	switch {
	case strings.HasPrefix(rest, "?"):
		return directiveIgnoredTest, ""
	case strings.HasPrefix(rest, ":"):
		return directiveStatic, strings.TrimSpace(rest[1:])
	default:
		return directiveNone, ""
	}
}

var staticAssignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)

// evalStaticObjects scans text for static-object directives and evaluates
// each simple "NAME = EXPR" assignment once, building an environment shared
// by all formulas in this case. Directives that aren't a simple assignment
// (e.g. a multi-line function definition) are left unevaluated — see the
// Evaluator doc comment for why — and warn is called with a message.
func evalStaticObjects(m model.Model, ev *Evaluator, text string, caseEnv map[string]any, warn func(string)) map[string]any {
	static := map[string]any{}
	for k, v := range caseEnv {
		static[k] = v
	}

	for _, line := range strings.Split(text, "\n") {
		kind, code := classifyLine(m, line)
		if kind != directiveStatic {
			continue
		}
		sub := staticAssignRe.FindStringSubmatch(code)
		if sub == nil {
			warn("static directive is not a simple assignment, skipped: " + code)
			continue
		}
		name, expr := sub[1], dePrefixVars(m, sub[2])
		val, err := ev.Eval(expr, static)
		if err != nil {
			warn("static directive failed, skipped: " + code + ": " + err.Error())
			continue
		}
		static[name] = val
	}
	return static
}

// dePrefixVars rewrites variable tokens inside an expression to their bare
// identifiers, so the evaluator sees `x`, not `$x`.
func dePrefixVars(m model.Model, expr string) string {
	for _, tok := range findVariables(m, expr) {
		expr = strings.ReplaceAll(expr, tok.Full, tok.Name)
	}
	if !m.VarDelim.Empty() {
		// Bare references inside formulas (no delimiter) still use the
		// prefix alone, e.g. "@{$x + $y}": strip any remaining bare prefix
		// immediately followed by an identifier.
		bare := regexp.MustCompile(regexp.QuoteMeta(m.VarPrefix) + `([A-Za-z_][A-Za-z0-9_]*)`)
		expr = bare.ReplaceAllString(expr, "$1")
	}
	return expr
}

// substituteVariables replaces every variable token in text with the
// string form of its assigned value from vals, or its declared default if
// unassigned. Tokens with neither an assignment nor a default are left
// unchanged rather than failing the compilation.
func substituteVariables(m model.Model, text string, vals map[string]model.Value) string {
	re := variablePattern(m)
	return re.ReplaceAllStringFunc(text, func(full string) string {
		g := re.FindStringSubmatch(full)
		name := g[1]
		if v, ok := vals[name]; ok {
			return v.String()
		}
		if len(g) > 2 && g[2] != "" {
			def := g[2]
			if idx := indexOf(def, ';'); idx >= 0 {
				def = def[:idx]
			}
			return def
		}
		return full
	})
}

// substituteFormulas replaces every formula token in text by evaluating its
// expression against env (variables + static objects). Evaluation failures
// emit the FORMAT literally if present, else the token unchanged — they
// never fail compilation.
func substituteFormulas(m model.Model, ev *Evaluator, text string, env map[string]any, warn func(string)) string {
	re := formulaPattern(m)
	if re == nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(full string) string {
		g := re.FindStringSubmatch(full)
		expr, format := g[1], g[2]

		resolvedExpr := dePrefixVars(m, expr)
		val, err := ev.Eval(resolvedExpr, env)
		if err != nil {
			warn("formula evaluation failed: " + expr + ": " + err.Error())
			if format != "" {
				return format
			}
			return full
		}

		switch n := val.(type) {
		case int64:
			if format != "" {
				return formatNumeric(float64(n), format)
			}
			return strconv.FormatInt(n, 10)
		case float64:
			if format != "" {
				return formatNumeric(n, format)
			}
			return strFloat(n)
		default:
			return toStringAny(val)
		}
	})
}

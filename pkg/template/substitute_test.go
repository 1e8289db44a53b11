package template

import (
	"testing"

	"github.com/jihwankim/fzgo/pkg/model"
)

func TestClassifyLine(t *testing.T) {
	m := model.Default()
	kind, code := classifyLine(m, "#@: k = 2 * x")
	if kind != directiveStatic || code != "k = 2 * x" {
		t.Fatalf("classifyLine static = (%v, %q)", kind, code)
	}
	if kind, _ := classifyLine(m, "#@?"); kind != directiveIgnoredTest {
		t.Fatalf("classifyLine ignored-test = %v", kind)
	}
	if kind, _ := classifyLine(m, "# just a comment"); kind != directiveNone {
		t.Fatalf("classifyLine plain comment = %v", kind)
	}
}

func TestEvalStaticObjectsSkipsNonAssignment(t *testing.T) {
	m := model.Default()
	ev := NewEvaluator()
	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	text := "#@: k = 2 * 3\n#@: def f(): return 1\n"
	static := evalStaticObjects(m, ev, text, map[string]any{}, warn)

	if static["k"] != int64(6) {
		t.Fatalf("expected k=6, got %v", static["k"])
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning for the non-assignment directive, got %v", warnings)
	}
}

func TestDePrefixVars(t *testing.T) {
	m := model.Default()
	got := dePrefixVars(m, "$(x) + $(y~1)")
	if got != "x + y" {
		t.Fatalf("dePrefixVars = %q, want \"x + y\"", got)
	}
}

func TestSubstituteVariablesUsesAssignmentThenDefault(t *testing.T) {
	m := model.Default()
	text := "a=$(a~9) b=$(b~9)"
	out := substituteVariables(m, text, map[string]model.Value{"a": model.IntValue(1)})
	if out != "a=1 b=9" {
		t.Fatalf("substituteVariables = %q, want \"a=1 b=9\"", out)
	}
}

func TestSubstituteVariablesLeavesUnresolvedTokenUnchanged(t *testing.T) {
	m := model.Default()
	out := substituteVariables(m, "v=$(missing)", map[string]model.Value{})
	if out != "v=$(missing)" {
		t.Fatalf("substituteVariables = %q, want token left unchanged", out)
	}
}

func TestSubstituteFormulasEvaluatesAndFormats(t *testing.T) {
	m := model.Default()
	ev := NewEvaluator()
	out := substituteFormulas(m, ev, "v=@{1.0/3.0|0.00}", map[string]any{}, func(string) {})
	if out != "v=0.33" {
		t.Fatalf("substituteFormulas = %q, want \"v=0.33\"", out)
	}
}

func TestSubstituteFormulasFailureFallsBackToFormatOrToken(t *testing.T) {
	m := model.Default()
	ev := NewEvaluator()
	var warned bool
	warn := func(string) { warned = true }

	withFormat := substituteFormulas(m, ev, "@{undefined_var|N/A}", map[string]any{}, warn)
	if withFormat != "N/A" || !warned {
		t.Fatalf("expected fallback to format literal, got %q (warned=%v)", withFormat, warned)
	}

	warned = false
	noFormat := substituteFormulas(m, ev, "@{undefined_var}", map[string]any{}, warn)
	if noFormat != "@{undefined_var}" || !warned {
		t.Fatalf("expected token left unchanged, got %q (warned=%v)", noFormat, warned)
	}
}

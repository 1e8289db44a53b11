package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jihwankim/fzgo/pkg/model"
)

func TestDiscoverVariablesWithAndWithoutDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "x=$(a~1)\ny=$(b)\nz=$(a~2)\n"
	if err := os.WriteFile(filepath.Join(dir, "input.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	vars, err := DiscoverVariables(dir, model.Default())
	if err != nil {
		t.Fatalf("DiscoverVariables: %v", err)
	}
	if len(vars) != 2 {
		t.Fatalf("expected 2 variables, got %d: %v", len(vars), vars)
	}
	if vars["a"] == nil || vars["a"].String() != "1" {
		t.Fatalf("expected a's first-seen default to win, got %v", vars["a"])
	}
	if vars["b"] != nil {
		t.Fatalf("expected b to have no default, got %v", vars["b"])
	}
}

func TestDiscoverVariablesSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	binary := append([]byte("$(x)"), 0x00, 0x01, 0x02)
	if err := os.WriteFile(filepath.Join(dir, "blob.bin"), binary, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	vars, err := DiscoverVariables(dir, model.Default())
	if err != nil {
		t.Fatalf("DiscoverVariables: %v", err)
	}
	if len(vars) != 0 {
		t.Fatalf("expected binary file to be skipped, got %v", vars)
	}
}

func TestDiscoverVariablesWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("$(deep)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	vars, err := DiscoverVariables(dir, model.Default())
	if err != nil {
		t.Fatalf("DiscoverVariables: %v", err)
	}
	if _, ok := vars["deep"]; !ok {
		t.Fatalf("expected to discover variable in nested directory, got %v", vars)
	}
}

func TestFindVariablesBareVsDelimited(t *testing.T) {
	m := model.Default()
	m.VarDelim = model.Delim{}
	tokens := findVariables(m, "value is $x and $y")
	if len(tokens) != 2 || tokens[0].Name != "x" || tokens[1].Name != "y" {
		t.Fatalf("bare token matching failed: %+v", tokens)
	}

	delimited := findVariables(model.Default(), "value is $(x~5)")
	if len(delimited) != 1 || delimited[0].Name != "x" || delimited[0].Default != "5" {
		t.Fatalf("delimited token matching failed: %+v", delimited)
	}
}

func TestFindFormulas(t *testing.T) {
	m := model.Default()
	tokens := findFormulas(m, "result: @{a + b}")
	if len(tokens) != 1 || tokens[0].Expr != "a + b" {
		t.Fatalf("formula matching failed: %+v", tokens)
	}

	withFormat := findFormulas(m, "@{a * 2|%.2f}")
	if len(withFormat) != 1 || withFormat[0].Format != "%.2f" {
		t.Fatalf("formula format matching failed: %+v", withFormat)
	}
}

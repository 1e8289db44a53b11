package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything fn wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("copy captured output: %v", err)
	}
	return buf.String()
}

func TestRunDiscoverPrintsSortedVariables(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "input.dat"), []byte("$(b) $(a~1)\n"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("template", "", "")
	cmd.Flags().String("model", "", "")
	if err := cmd.Flags().Set("template", dir); err != nil {
		t.Fatalf("set template flag: %v", err)
	}

	out := captureStdout(t, func() {
		if err := runDiscover(cmd, nil); err != nil {
			t.Fatalf("runDiscover: %v", err)
		}
	})
	if !strings.Contains(out, "a = 1") {
		t.Fatalf("output = %q, expected to contain \"a = 1\"", out)
	}
	if !strings.Contains(out, "b\n") {
		t.Fatalf("output = %q, expected to contain a bare \"b\"", out)
	}
}

func TestRunCompileWritesCasesAndDryRunList(t *testing.T) {
	templateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(templateDir, "input.dat"), []byte("x = $(x)\n"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	valuesPath := filepath.Join(t.TempDir(), "values.yaml")
	if err := os.WriteFile(valuesPath, []byte("variables:\n  x: [1, 2]\n"), 0o644); err != nil {
		t.Fatalf("write values: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "out")

	cmd := &cobra.Command{}
	cmd.Flags().String("template", "", "")
	cmd.Flags().String("model", "", "")
	cmd.Flags().String("values", "", "")
	cmd.Flags().StringArray("set", []string{}, "")
	cmd.Flags().String("out", "", "")
	cmd.Flags().Bool("dry-run", false, "")
	cmd.Flags().Set("template", templateDir)
	cmd.Flags().Set("values", valuesPath)
	cmd.Flags().Set("out", outDir)
	cmd.Flags().Set("dry-run", "true")

	out := captureStdout(t, func() {
		if err := runCompile(cmd, nil); err != nil {
			t.Fatalf("runCompile: %v", err)
		}
	})
	if !strings.Contains(out, "compiled 2 case(s)") {
		t.Fatalf("output = %q, expected a 2-case summary", out)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 compiled case directories, got %d", len(entries))
	}
}

func TestRunExtractPrintsOutputValues(t *testing.T) {
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "out.txt"), []byte("42\n"), 0o644); err != nil {
		t.Fatalf("write out.txt: %v", err)
	}
	modelPath := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(modelPath, []byte("output:\n  result: cat out.txt\n"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("case", "", "")
	cmd.Flags().String("model", "", "")
	cmd.Flags().Set("case", caseDir)
	cmd.Flags().Set("model", modelPath)

	out := captureStdout(t, func() {
		if err := runExtract(cmd, nil); err != nil {
			t.Fatalf("runExtract: %v", err)
		}
	})
	if !strings.Contains(out, "result = 42") {
		t.Fatalf("output = %q, expected \"result = 42\"", out)
	}
}

func TestRunConfigPrintsSummaryKeys(t *testing.T) {
	cmd := &cobra.Command{}
	out := captureStdout(t, func() {
		if err := runConfig(cmd, nil); err != nil {
			t.Fatalf("runConfig: %v", err)
		}
	})
	if !strings.Contains(out, "max_workers") {
		t.Fatalf("output = %q, expected a max_workers line", out)
	}
}

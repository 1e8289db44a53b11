package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jihwankim/fzgo/pkg/model"
)

func TestCastPriority(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want any
	}{
		{"empty", "", nil},
		{"int", "42", int64(42)},
		{"negative int", "-7", int64(-7)},
		{"float", "3.14", 3.14},
		{"json object", `{"a":1}`, map[string]any{"a": float64(1)}},
		{"json array", `[1,2,3]`, []any{float64(1), float64(2), float64(3)}},
		{"plain string", "hello world", "hello world"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Cast(c.in)
			switch want := c.want.(type) {
			case map[string]any:
				gm, ok := got.(map[string]any)
				if !ok || gm["a"] != want["a"] {
					t.Fatalf("Cast(%q) = %#v, want %#v", c.in, got, want)
				}
			case []any:
				ga, ok := got.([]any)
				if !ok || len(ga) != len(want) {
					t.Fatalf("Cast(%q) = %#v, want %#v", c.in, got, want)
				}
			default:
				if got != c.want {
					t.Fatalf("Cast(%q) = %#v (%T), want %#v (%T)", c.in, got, got, c.want, c.want)
				}
			}
		})
	}
}

func TestExtractRunsEveryOutputIndependently(t *testing.T) {
	dir := t.TempDir()
	m := model.Model{
		Outputs: []model.Output{
			{Name: "ok", Pipeline: "echo 5"},
			{Name: "fails", Pipeline: "exit 1"},
		},
	}
	out := Extract(dir, m, nil)
	if len(out) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(out))
	}
	if out["ok"].Err != "" || out["ok"].Value != int64(5) {
		t.Fatalf("ok outcome = %+v", out["ok"])
	}
	if out["fails"].Err == "" {
		t.Fatalf("expected an error for the failing pipeline")
	}
}

func TestShellResolverFallsBackToPATHWhenUnset(t *testing.T) {
	r := NewShellResolver("")
	got := r.ReplaceCommandsInString("grep foo bar.txt")
	if got != "grep foo bar.txt" {
		t.Fatalf("expected unchanged string with no custom shell path, got %q", got)
	}
}

func TestShellResolverRewritesWithCustomPath(t *testing.T) {
	dir := t.TempDir()
	fakeGrep := filepath.Join(dir, "grep")
	if err := os.WriteFile(fakeGrep, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake grep: %v", err)
	}

	r := NewShellResolver(dir)
	resolved := r.Resolve("grep")
	if resolved != fakeGrep {
		t.Fatalf("Resolve(grep) = %q, want %q", resolved, fakeGrep)
	}

	rewritten := r.ReplaceCommandsInString("grep pattern file.txt | grep other")
	want := fakeGrep + " pattern file.txt | " + fakeGrep + " other"
	if rewritten != want {
		t.Fatalf("ReplaceCommandsInString = %q, want %q", rewritten, want)
	}
}

func TestShellResolverUnknownCommandReturnsEmpty(t *testing.T) {
	r := NewShellResolver(t.TempDir())
	if got := r.Resolve("definitely-not-a-real-command"); got != "" {
		t.Fatalf("Resolve() = %q, want empty", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() is not valid: %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load(missing) = %+v, want Default()", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_retries: 9\nshell_path: /opt/bin\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 9 || cfg.ShellPath != "/opt/bin" {
		t.Fatalf("Load = %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_retries: 9\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FZ_MAX_RETRIES", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 42 {
		t.Fatalf("MaxRetries = %d, want env override 42", cfg.MaxRetries)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []Config{
		{MaxRetries: 0},
		{MaxRetries: 1, MaxWorkers: -1},
		{MaxRetries: 1, SSHKeepaliveSeconds: -1},
		{MaxRetries: 1, Interpreter: "cobol"},
	}
	for _, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected Validate() to reject %+v", c)
		}
	}
}

func TestSummaryAutoAndUnsetRendering(t *testing.T) {
	cfg := Default()
	summary := cfg.Summary()
	if summary["max_workers"] != "auto" {
		t.Fatalf("max_workers = %v, want \"auto\"", summary["max_workers"])
	}
	if summary["shell_path"] == "" {
		t.Fatalf("shell_path summary should not be empty")
	}
}

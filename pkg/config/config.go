// Package config loads run-wide defaults: logging level, retry budget,
// formula interpreter, worker pool size, and SSH/shell-path tuning. Values
// come from compiled defaults, an optional YAML file, and finally
// environment variables, in that order of increasing precedence — the same
// layering the rest of this lineage's tools use for their own config files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Interpreter names the formula evaluator used to resolve @{...} tokens.
type Interpreter string

const (
	InterpreterPython     Interpreter = "python"
	InterpreterR          Interpreter = "R"
	InterpreterJavaScript Interpreter = "javascript"
	InterpreterAuto       Interpreter = "auto"
)

func parseInterpreter(s string) (Interpreter, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python":
		return InterpreterPython, true
	case "r":
		return InterpreterR, true
	case "javascript", "js":
		return InterpreterJavaScript, true
	case "auto":
		return InterpreterAuto, true
	default:
		return "", false
	}
}

// Config is the immutable set of run-wide defaults threaded into the
// engine's constructor. It is never mutated after Load returns.
type Config struct {
	LogLevel string `yaml:"log_level"`

	MaxRetries  int         `yaml:"max_retries"`
	Interpreter Interpreter `yaml:"interpreter"`
	MaxWorkers  int         `yaml:"max_workers"` // 0 means "auto": len(calculators)

	SSHAutoAcceptHostKeys bool   `yaml:"ssh_auto_accept_hostkeys"`
	SSHKeepaliveSeconds   int    `yaml:"ssh_keepalive"`
	ShellPath             string `yaml:"shell_path"`
}

// Default returns the compiled-in defaults; it reads no environment
// variables (Load applies the FZ_* overrides on top of these).
func Default() Config {
	return Config{
		LogLevel:              "ERROR",
		MaxRetries:            5,
		Interpreter:           InterpreterPython,
		MaxWorkers:            0,
		SSHAutoAcceptHostKeys: false,
		SSHKeepaliveSeconds:   300,
		ShellPath:             "",
	}
}

// Load builds a Config starting from Default(), optionally overlaying a YAML
// file (env vars inside the file are expanded via os.ExpandEnv before
// parsing), then applying FZ_* environment variable overrides, which always
// win. A missing path is not an error: Load just returns the layered
// defaults plus env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("FZ_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToUpper(v)
	}
	if v, ok := os.LookupEnv("FZ_MAX_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v, ok := os.LookupEnv("FZ_INTERPRETER"); ok {
		if interp, ok := parseInterpreter(v); ok {
			c.Interpreter = interp
		} else {
			c.Interpreter = InterpreterPython
		}
	}
	if v, ok := os.LookupEnv("FZ_MAX_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxWorkers = n
		}
	}
	if v, ok := os.LookupEnv("FZ_SSH_AUTO_ACCEPT_HOSTKEYS"); ok {
		c.SSHAutoAcceptHostKeys = parseBool(v, c.SSHAutoAcceptHostKeys)
	}
	if v, ok := os.LookupEnv("FZ_SSH_KEEPALIVE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.SSHKeepaliveSeconds = n
		}
	}
	if v, ok := os.LookupEnv("FZ_SHELL_PATH"); ok {
		c.ShellPath = v
	}
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1, got %d", c.MaxRetries)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be >= 0 (0 means auto), got %d", c.MaxWorkers)
	}
	if c.SSHKeepaliveSeconds < 0 {
		return fmt.Errorf("ssh_keepalive must be >= 0, got %d", c.SSHKeepaliveSeconds)
	}
	switch c.Interpreter {
	case InterpreterPython, InterpreterR, InterpreterJavaScript, InterpreterAuto:
	default:
		return fmt.Errorf("unknown interpreter %q", c.Interpreter)
	}
	return nil
}

// Summary renders the configuration as a flat map, used by the `fz config`
// diagnostic command.
func (c Config) Summary() map[string]any {
	return map[string]any{
		"log_level":                c.LogLevel,
		"max_retries":              c.MaxRetries,
		"interpreter":              string(c.Interpreter),
		"max_workers":              autoOrInt(c.MaxWorkers),
		"ssh_auto_accept_hostkeys": c.SSHAutoAcceptHostKeys,
		"ssh_keepalive":            c.SSHKeepaliveSeconds,
		"shell_path":               emptyOrString(c.ShellPath),
	}
}

func autoOrInt(n int) any {
	if n == 0 {
		return "auto"
	}
	return n
}

func emptyOrString(s string) any {
	if s == "" {
		return "(not set, use system PATH)"
	}
	return s
}

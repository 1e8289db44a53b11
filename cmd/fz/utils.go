package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/fzgo/pkg/config"
	"github.com/jihwankim/fzgo/pkg/logging"
	"github.com/jihwankim/fzgo/pkg/model"
)

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

func newLogger(cfg config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logging.LogLevelDebug
	}
	return logging.NewLogger(logging.LoggerConfig{Level: level, Format: logging.LogFormatText, Output: os.Stderr})
}

// loadModel reads a model YAML file, falling back to model.Default() when
// path is empty.
func loadModel(path string) (model.Model, error) {
	if path == "" {
		return model.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Model{}, fmt.Errorf("read model %s: %w", path, err)
	}
	var m model.Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return model.Model{}, fmt.Errorf("parse model %s: %w", path, err)
	}
	return m, nil
}

// valuesFile is the wire shape of a variables/design YAML file.
type valuesFile struct {
	Variables      map[string][]any  `yaml:"variables"`
	GroupVariables []string          `yaml:"group_variables"`
	Rows           []map[string]any  `yaml:"rows"`
	RowOrder       []string          `yaml:"row_order"`
}

func toValue(v any) model.Value {
	switch n := v.(type) {
	case int:
		return model.IntValue(int64(n))
	case int64:
		return model.IntValue(n)
	case float64:
		return model.FloatValue(n)
	case string:
		return model.ParseValue(n)
	default:
		return model.ParseValue(fmt.Sprintf("%v", n))
	}
}

// loadValues reads a values file into the shape fz.CompileCases/fz.Run
// expect: a variable-to-value-list map plus grouping/row overrides.
func loadValues(path string) (map[string][]model.Value, []string, []map[string]model.Value, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read values %s: %w", path, err)
	}
	var vf valuesFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("parse values %s: %w", path, err)
	}

	values := make(map[string][]model.Value, len(vf.Variables))
	for name, raw := range vf.Variables {
		vals := make([]model.Value, len(raw))
		for i, v := range raw {
			vals[i] = toValue(v)
		}
		values[name] = vals
	}

	var rows []map[string]model.Value
	for _, row := range vf.Rows {
		converted := make(map[string]model.Value, len(row))
		for k, v := range row {
			converted[k] = toValue(v)
		}
		rows = append(rows, converted)
	}

	return values, vf.GroupVariables, rows, vf.RowOrder, nil
}

// parseSetFlags parses --set flags into a map.
func parseSetFlags(setFlags []string) map[string]string {
	overrides := make(map[string]string)
	for _, flag := range setFlags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) == 2 {
			overrides[parts[0]] = parts[1]
		}
	}
	return overrides
}

// applyValueOverrides folds --set var=v1,v2,v3 entries into a values map,
// replacing any value list already loaded from the values file for that
// variable name.
func applyValueOverrides(values map[string][]model.Value, overrides map[string]string) {
	for name, raw := range overrides {
		var list []model.Value
		for _, part := range strings.Split(raw, ",") {
			list = append(list, model.ParseValue(part))
		}
		values[name] = list
	}
}

func splitCalculators(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

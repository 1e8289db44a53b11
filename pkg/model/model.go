// Package model defines the Model configuration (token delimiters, comment
// marker, formula interpreter, output pipelines) and the Case/Value types
// that flow through the compiler, extractor, and dispatcher.
package model

import (
	"fmt"
	"strconv"

	"github.com/jihwankim/fzgo/pkg/config"
)

// Delim is an open/close delimiter pair. A zero value means "no delimiter":
// the token is a bare prefixed identifier.
type Delim struct {
	Open  string
	Close string
}

func (d Delim) Empty() bool { return d.Open == "" && d.Close == "" }

// Output is one named shell pipeline used by the extractor. Outputs are
// kept as an ordered slice (not a map) in declaration order; the result
// table orders its output columns by name, not by this order.
type Output struct {
	Name     string
	Pipeline string
}

// Model describes how to parse a template tree and how to extract outputs
// from a finished case directory. A Model is immutable for the duration of
// one engine invocation.
type Model struct {
	VarPrefix     string
	VarDelim      Delim
	FormulaPrefix string
	FormulaDelim  Delim
	CommentLine   string
	Interpreter   config.Interpreter
	Outputs       []Output
}

// Default returns the Java-Funz-compatible Model: $(var) variables, @{expr}
// formulas, #@: static directives, #@? ignored unit-test directives.
func Default() Model {
	return Model{
		VarPrefix:     "$",
		VarDelim:      Delim{Open: "(", Close: ")"},
		FormulaPrefix: "@",
		FormulaDelim:  Delim{Open: "{", Close: "}"},
		CommentLine:   "#",
		Interpreter:   config.InterpreterPython,
		Outputs:       nil,
	}
}

// rawModel is the YAML wire shape, accepting every documented synonym for
// each field. UnmarshalYAML maps it onto Model.
type rawModel struct {
	VarPrefix     *string           `yaml:"var_prefix"`
	VarPrefixAlt1 *string           `yaml:"varprefix"`
	VarPrefixAlt2 *string           `yaml:"var_char"`
	VarDelim      *string           `yaml:"var_delim"`
	VarDelimAlt   *string           `yaml:"vardelim"`
	FormulaPrefix *string           `yaml:"formula_prefix"`
	FormulaPrefixAlt *string        `yaml:"formulaprefix"`
	FormulaDelim  *string           `yaml:"formula_delim"`
	FormulaDelimAlt *string         `yaml:"formuladelim"`
	CommentLine   *string           `yaml:"comment_line"`
	CommentLineAlt *string          `yaml:"commentline"`
	Interpreter   *string           `yaml:"interpreter"`
	Output        map[string]string `yaml:"output"`
	OutputOrder   []string          `yaml:"output_order"`
}

func firstNonNil(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// splitDelim turns a 0- or 2-rune string like "()" into a Delim; an empty
// string means "no delimiter".
func splitDelim(s string) (Delim, error) {
	r := []rune(s)
	switch len(r) {
	case 0:
		return Delim{}, nil
	case 2:
		return Delim{Open: string(r[0]), Close: string(r[1])}, nil
	default:
		return Delim{}, fmt.Errorf("delimiter must be empty or exactly two characters, got %q", s)
	}
}

// UnmarshalYAML implements synonym resolution for the Model's configurable
// fields, then falls back to Default() for anything unset. A YAML map
// output (unordered) is re-ordered via an explicit output_order if given;
// otherwise the order of Outputs is Go map iteration order, which is not
// defined.
func (m *Model) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawModel
	if err := unmarshal(&raw); err != nil {
		return err
	}

	*m = Default()

	if v := firstNonNil(raw.VarPrefix, raw.VarPrefixAlt1, raw.VarPrefixAlt2); v != nil {
		m.VarPrefix = *v
	}
	if v := firstNonNil(raw.VarDelim, raw.VarDelimAlt); v != nil {
		d, err := splitDelim(*v)
		if err != nil {
			return fmt.Errorf("var_delim: %w", err)
		}
		m.VarDelim = d
	}
	if v := firstNonNil(raw.FormulaPrefix, raw.FormulaPrefixAlt); v != nil {
		m.FormulaPrefix = *v
	}
	if v := firstNonNil(raw.FormulaDelim, raw.FormulaDelimAlt); v != nil {
		d, err := splitDelim(*v)
		if err != nil {
			return fmt.Errorf("formula_delim: %w", err)
		}
		m.FormulaDelim = d
	}
	if v := firstNonNil(raw.CommentLine, raw.CommentLineAlt); v != nil {
		m.CommentLine = *v
	}
	if raw.Interpreter != nil {
		interp, ok := parseInterpreterName(*raw.Interpreter)
		if !ok {
			return fmt.Errorf("unknown interpreter %q", *raw.Interpreter)
		}
		m.Interpreter = interp
	}

	if len(raw.Output) > 0 {
		order := raw.OutputOrder
		if len(order) == 0 {
			for name := range raw.Output {
				order = append(order, name)
			}
		}
		for _, name := range order {
			pipeline, ok := raw.Output[name]
			if !ok {
				return fmt.Errorf("output_order references undeclared output %q", name)
			}
			m.Outputs = append(m.Outputs, Output{Name: name, Pipeline: pipeline})
		}
	}

	return nil
}

func parseInterpreterName(s string) (config.Interpreter, bool) {
	switch s {
	case "python", "Python":
		return config.InterpreterPython, true
	case "R", "r":
		return config.InterpreterR, true
	case "javascript", "js", "JavaScript":
		return config.InterpreterJavaScript, true
	case "auto", "Auto":
		return config.InterpreterAuto, true
	default:
		return "", false
	}
}

// Value is a dynamically-typed scalar: int, float64, or string.
type Value struct {
	kind  valueKind
	i     int64
	f     float64
	s     string
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
)

func StringValue(s string) Value  { return Value{kind: kindString, s: s} }
func IntValue(i int64) Value      { return Value{kind: kindInt, i: i} }
func FloatValue(f float64) Value  { return Value{kind: kindFloat, f: f} }

// ParseValue casts a raw string the way the compiler casts default values
// and discovered tokens: int if it parses as int, float if it parses as
// float, else string.
func ParseValue(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(s)
}

// String renders the value's canonical string form, used for case suffixes
// and for substitution into template text.
func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// Float64 returns the value as a float64, converting ints and parsing
// strings that look numeric. ok is false for non-numeric strings.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case kindInt:
		return float64(v.i), true
	case kindFloat:
		return v.f, true
	default:
		f, err := strconv.ParseFloat(v.s, 64)
		return f, err == nil
	}
}

// Any returns the value boxed as an int64, float64, or string — the shape
// callers outside this package (YAML/JSON encoding) expect.
func (v Value) Any() any {
	switch v.kind {
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	default:
		return v.s
	}
}

// Case is one point in the parameter space: an ordered map of variable name
// to value. Order is the declared variable order, required because Go maps
// have no iteration order and both the case suffix and the hash manifest
// need a stable one.
type Case struct {
	Values map[string]Value
	Order  []string
}

// NewCase builds a Case from an ordered list of (name, value) pairs.
func NewCase(order []string, values map[string]Value) Case {
	return Case{Values: values, Order: order}
}

// Suffix renders the case-suffix convention:
// "var1=value1,var2=value2,..." in declared order. A case with no varying
// variables (Order empty) has an empty suffix.
func (c Case) Suffix() string {
	if len(c.Order) == 0 {
		return ""
	}
	s := ""
	for i, name := range c.Order {
		if i > 0 {
			s += ","
		}
		s += name + "=" + c.Values[name].String()
	}
	return s
}

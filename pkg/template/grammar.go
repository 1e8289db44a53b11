package template

import (
	"regexp"

	"github.com/jihwankim/fzgo/pkg/model"
)

// varToken is one occurrence of a variable token found in template text.
type varToken struct {
	Full    string // the whole matched token, including prefix/delimiters
	Name    string
	Default string // raw default string, "" if none given
	HasDefault bool
}

// formulaToken is one occurrence of a formula token.
type formulaToken struct {
	Full   string
	Expr   string
	Format string // "" if none given
}

// variablePattern compiles the regex matching variable tokens for m. When
// m.VarDelim is empty, tokens are bare "$NAME" identifiers. Otherwise tokens
// are "$(NAME[~DEFAULT[;COMMENT[;BOUNDS]]])" with m's configured delimiters.
func variablePattern(m model.Model) *regexp.Regexp {
	prefix := regexp.QuoteMeta(m.VarPrefix)
	if m.VarDelim.Empty() {
		return regexp.MustCompile(prefix + `([A-Za-z_][A-Za-z0-9_]*)`)
	}
	open := regexp.QuoteMeta(m.VarDelim.Open)
	close_ := regexp.QuoteMeta(m.VarDelim.Close)
	return regexp.MustCompile(prefix + open + `\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:~([^` + close_ + `]*))?` + close_)
}

// formulaPattern compiles the regex matching formula tokens for m.
// FormulaDelim is required to be non-empty for formulas to be recognized at
// all (a formula without a delimiter has no way to bound its expression).
func formulaPattern(m model.Model) *regexp.Regexp {
	prefix := regexp.QuoteMeta(m.FormulaPrefix)
	if m.FormulaDelim.Empty() {
		return nil
	}
	open := regexp.QuoteMeta(m.FormulaDelim.Open)
	close_ := regexp.QuoteMeta(m.FormulaDelim.Close)
	return regexp.MustCompile(prefix + open + `([^` + close_ + `|]*)(?:\|([^` + close_ + `]*))?` + close_)
}

// findVariables returns every variable token occurrence in text.
func findVariables(m model.Model, text string) []varToken {
	re := variablePattern(m)
	matches := re.FindAllStringSubmatch(text, -1)
	tokens := make([]varToken, 0, len(matches))
	for _, g := range matches {
		tok := varToken{Full: g[0], Name: g[1]}
		if len(g) > 2 && g[2] != "" {
			// Split off ;COMMENT;BOUNDS, keep only the default value itself.
			rest := g[2]
			if idx := indexOf(rest, ';'); idx >= 0 {
				rest = rest[:idx]
			}
			tok.Default = rest
			tok.HasDefault = true
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// findFormulas returns every formula token occurrence in text.
func findFormulas(m model.Model, text string) []formulaToken {
	re := formulaPattern(m)
	if re == nil {
		return nil
	}
	matches := re.FindAllStringSubmatch(text, -1)
	tokens := make([]formulaToken, 0, len(matches))
	for _, g := range matches {
		tokens = append(tokens, formulaToken{Full: g[0], Expr: g[1], Format: g[2]})
	}
	return tokens
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

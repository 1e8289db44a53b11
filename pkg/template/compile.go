package template

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jihwankim/fzgo/pkg/model"
)

// CompiledCase is one materialized case directory: the Case that produced
// it, the directory path, and the relative paths of the files written into
// it in walk order (the order the Case Hasher uses as "input files first").
type CompiledCase struct {
	Case  model.Case
	Dir   string
	Files []string
}

// CompileOptions configures CompileCases beyond the raw variable/value set.
type CompileOptions struct {
	// GroupVariables names variables that vary together as one ordered
	// tuple instead of being crossed independently (EnumerateCases).
	GroupVariables []string
	// Rows, when non-nil, bypasses Cartesian enumeration entirely and
	// compiles exactly these rows in order (the non-factorial table path).
	// RowOrder gives the declared variable order used for case suffixes.
	Rows     []map[string]model.Value
	RowOrder []string
}

// Warnf receives non-fatal compiler warnings (skipped directives, failed
// formula evaluations). Compilation never aborts because of one.
type Warnf func(format string, args ...any)

// CompileCases expands srcPath against values into one directory per Case
// under outDir, substituting variable and formula tokens in every text
// file and copying binary files verbatim. It returns the compiled cases in
// enumeration order.
//
// outDir is never deleted: if it already exists it is renamed aside with a
// timestamp suffix before a fresh one is created, mirroring the same rule
// CompiledCase directories are owned under.
func CompileCases(srcPath string, values map[string][]model.Value, m model.Model, outDir string, opts CompileOptions, warn Warnf) ([]CompiledCase, error) {
	if warn == nil {
		warn = func(string, ...any) {}
	}

	var cases []model.Case
	if opts.Rows != nil {
		cases = EnumerateTableCases(opts.RowOrder, opts.Rows)
	} else {
		var err error
		cases, err = EnumerateCases(values, opts.GroupVariables)
		if err != nil {
			return nil, err
		}
	}

	if err := ensureUniqueDir(outDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	ev := NewEvaluator()
	results := make([]CompiledCase, 0, len(cases))
	for _, c := range cases {
		caseDir := outDir
		if suffix := c.Suffix(); suffix != "" {
			caseDir = filepath.Join(outDir, suffix)
		}
		files, err := compileOneCase(srcPath, caseDir, m, ev, c, warn)
		if err != nil {
			return nil, err
		}
		results = append(results, CompiledCase{Case: c, Dir: caseDir, Files: files})
	}
	return results, nil
}

// compileOneCase materializes a single case directory in two passes: the
// first collects every static-object binding across the whole source tree
// into one environment shared by every formula in the case, the second
// substitutes variables and formulas file by file using that environment.
func compileOneCase(srcPath, caseDir string, m model.Model, ev *Evaluator, c model.Case, warn Warnf) ([]string, error) {
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return nil, err
	}

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return nil, err
	}

	caseEnv := map[string]any{}
	for name, v := range c.Values {
		caseEnv[name] = v.Any()
	}

	var relFiles []string
	collect := func(rel string, data []byte) {
		if !isBinary(data) {
			relFiles = append(relFiles, rel)
		}
	}

	if !srcInfo.IsDir() {
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, err
		}
		collect(filepath.Base(srcPath), data)
	} else {
		err = filepath.WalkDir(srcPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(srcPath, p)
			if err != nil {
				return err
			}
			collect(rel, data)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	static := map[string]any{}
	for k, v := range caseEnv {
		static[k] = v
	}
	for _, rel := range relFiles {
		data, err := os.ReadFile(relSourcePath(srcPath, srcInfo, rel))
		if err != nil {
			return nil, err
		}
		caseWarn := func(msg string) { warn("%s: %s", rel, msg) }
		fileStatic := evalStaticObjects(m, ev, string(data), static, caseWarn)
		for k, v := range fileStatic {
			static[k] = v
		}
	}

	written := make([]string, 0, len(relFiles))
	if !srcInfo.IsDir() {
		dest := filepath.Join(caseDir, filepath.Base(srcPath))
		if err := writeCompiledFile(srcPath, dest, m, ev, c, static, func(msg string) { warn("%s", msg) }); err != nil {
			return nil, err
		}
		return []string{filepath.Base(srcPath)}, nil
	}

	err = filepath.WalkDir(srcPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcPath, p)
		if err != nil {
			return err
		}
		dest := filepath.Join(caseDir, rel)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		caseWarn := func(msg string) { warn("%s: %s", rel, msg) }
		if err := writeCompiledFile(p, dest, m, ev, c, static, caseWarn); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func relSourcePath(srcPath string, srcInfo os.FileInfo, rel string) string {
	if !srcInfo.IsDir() {
		return srcPath
	}
	return filepath.Join(srcPath, rel)
}

// writeCompiledFile copies a binary file verbatim or substitutes a text
// file's variable and formula tokens, writing the result to dest.
func writeCompiledFile(src, dest string, m model.Model, ev *Evaluator, c model.Case, static map[string]any, warn func(string)) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if isBinary(data) {
		return os.WriteFile(dest, data, 0o644)
	}

	text := substituteVariables(m, string(data), c.Values)
	text = substituteFormulas(m, ev, text, static, warn)
	return os.WriteFile(dest, []byte(text), 0o644)
}

// ensureUniqueDir renames an existing path aside with a
// "_YYYY-MM-DD_HH-MM-SS" timestamp suffix so callers never delete a
// preexisting directory.
func ensureUniqueDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	renamed := path + "_" + time.Now().Format("2006-01-02_15-04-05")
	return os.Rename(path, renamed)
}

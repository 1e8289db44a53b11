// Package fz ties the compiler, hasher, extractor, dispatcher, and result
// assembler together into the five top-level operations: fzi, fzc, fzo,
// fzr, fzd.
package fz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/fzgo/pkg/calculator"
	"github.com/jihwankim/fzgo/pkg/cancel"
	"github.com/jihwankim/fzgo/pkg/dispatcher"
	"github.com/jihwankim/fzgo/pkg/extract"
	"github.com/jihwankim/fzgo/pkg/hash"
	"github.com/jihwankim/fzgo/pkg/iterative"
	"github.com/jihwankim/fzgo/pkg/logging"
	"github.com/jihwankim/fzgo/pkg/model"
	"github.com/jihwankim/fzgo/pkg/result"
	"github.com/jihwankim/fzgo/pkg/template"
)

// DiscoverVariables implements fzi: scan a template tree and return every
// variable token's name and declared default (nil if none).
func DiscoverVariables(templatePath string, m model.Model) (map[string]*model.Value, error) {
	return template.DiscoverVariables(templatePath, m)
}

// CompileOptions re-exports template.CompileOptions at the package
// boundary so callers never need to import pkg/template directly.
type CompileOptions = template.CompileOptions

// CompileCases implements fzc: expand a template tree into one directory
// per case, then write each case's .fz_hash manifest.
func CompileCases(templatePath string, values map[string][]model.Value, m model.Model, outDir string, opts CompileOptions) ([]template.CompiledCase, error) {
	compiled, err := template.CompileCases(templatePath, values, m, outDir, opts, func(format string, args ...any) {
		logging.Warn(fmt.Sprintf(format, args...))
	})
	if err != nil {
		return nil, err
	}
	for _, c := range compiled {
		if err := hash.WriteManifest(c.Dir, c.Files); err != nil {
			return nil, fmt.Errorf("hash %s: %w", c.Dir, err)
		}
	}
	return compiled, nil
}

// ExtractOutputs implements fzo: run every output pipeline in m against
// caseDir and return the casted results.
func ExtractOutputs(caseDir string, m model.Model, shellPath string) (map[string]any, error) {
	resolver := extract.NewShellResolver(shellPath)
	outcomes := extract.Extract(caseDir, m, resolver)
	out := make(map[string]any, len(outcomes))
	var firstErr error
	for name, o := range outcomes {
		out[name] = o.Value
		if o.Err != "" && firstErr == nil {
			firstErr = fmt.Errorf("output %q: %s", name, o.Err)
		}
	}
	return out, firstErr
}

// Backends groups the calculator backend implementations a Run needs, one
// per scheme that appears in the calculators list.
type Backends struct {
	Local *calculator.LocalBackend
	SSH   *calculator.SSHBackend
	Cache *calculator.CacheBackend
	Funz  *calculator.FunzBackend
}

func (b Backends) asMap() map[string]calculator.Backend {
	out := map[string]calculator.Backend{}
	if b.Local != nil {
		out["sh"] = b.Local
	}
	if b.SSH != nil {
		out["ssh"] = b.SSH
	}
	if b.Cache != nil {
		out["cache"] = b.Cache
	}
	if b.Funz != nil {
		out["funz"] = b.Funz
	}
	return out
}

// RunOptions configures fzr beyond the calculator list.
type RunOptions struct {
	MaxRetries int
	MaxWorkers int
	ShellPath  string
	Backends   Backends
	Cancel     *cancel.Controller
	Logger     *logging.Logger
	Callbacks  dispatcher.Callbacks
	CompileOpts CompileOptions
	Metrics    *dispatcher.Metrics
}

// Run implements fzr: compile every case, dispatch it through the
// calculator chain, extract outputs, and assemble the result table.
func Run(ctx context.Context, templatePath string, values map[string][]model.Value, m model.Model, calculators []string, resultsDir string, opts RunOptions) (result.Table, error) {
	compiled, err := CompileCases(templatePath, values, m, resultsDir, opts.CompileOpts)
	if err != nil {
		return result.Table{}, fmt.Errorf("compile cases: %w", err)
	}

	resolver := extract.NewShellResolver(opts.ShellPath)
	cfg := dispatcher.Config{
		Calculators: calculators,
		MaxRetries:  opts.MaxRetries,
		MaxWorkers:  opts.MaxWorkers,
		Model:       m,
		Resolver:    resolver,
		Cancel:      opts.Cancel,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	}
	disp, err := dispatcher.New(cfg, opts.Backends.asMap())
	if err != nil {
		return result.Table{}, fmt.Errorf("build dispatcher: %w", err)
	}

	caseResults := disp.Run(ctx, compiled, opts.Callbacks)

	cases := make([]model.Case, len(caseResults))
	outputs := make([]map[string]any, len(caseResults))
	metas := make([]result.Meta, len(caseResults))
	for i, r := range caseResults {
		cases[i] = r.Case
		outputs[i] = r.Outputs
		metas[i] = result.Meta{
			Status: string(r.Status), Calculator: r.Calculator, Command: r.Command,
			Error: r.Error, Path: r.Dir, DurationS: r.DurationS,
		}
	}
	return result.Build(cases, outputs, metas), nil
}

// RunIterative implements fzd: drive algo through the propose/evaluate
// loop, persisting each round through the same Run path as a one-shot fzr
// invocation, until algo proposes an empty batch.
func RunIterative(ctx context.Context, templatePath string, ranges map[string][2]float64, m model.Model, outputExpr string, algo iterative.Algorithm, calculators []string, resultsDir string, opts RunOptions) (iterative.Report, error) {
	var outputNames []string
	for _, o := range m.Outputs {
		outputNames = append(outputNames, o.Name)
	}
	expr, err := iterative.NewOutputExpression(outputExpr, outputNames)
	if err != nil {
		return iterative.Report{}, err
	}

	varNames := make([]string, 0, len(ranges))
	for name := range ranges {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)

	round := 0
	evalBatch := func(ctx context.Context, batch iterative.Design) ([]float64, []map[string]any, error) {
		round++
		roundOpts := opts
		roundOpts.CompileOpts.Rows = batch
		roundOpts.CompileOpts.RowOrder = varNames

		roundDir := filepath.Join(resultsDir, fmt.Sprintf("round_%04d", round))
		table, err := Run(ctx, templatePath, nil, m, calculators, roundDir, roundOpts)
		if err != nil {
			return nil, nil, err
		}

		scalars := make([]float64, len(table.Rows))
		raw := make([]map[string]any, len(table.Rows))
		g, gctx := errgroup.WithContext(ctx)
		for i, row := range table.Rows {
			i, row := i, row
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				outputVals := map[string]any{}
				for _, name := range outputNames {
					outputVals[name] = row[name]
				}
				raw[i] = outputVals
				scalar, err := expr.Eval(outputVals)
				if err != nil {
					return fmt.Errorf("round %d case %d: %w", round, i, err)
				}
				scalars[i] = scalar
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		return scalars, raw, nil
	}

	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return iterative.Report{}, err
	}

	return iterative.Run(ctx, algo, evalBatch, iterative.Options{
		InputRanges: ranges,
		OutputNames: outputNames,
		RunDir:      resultsDir,
		PersistTmp:  true,
	})
}

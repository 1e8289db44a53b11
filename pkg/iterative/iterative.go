// Package iterative implements the iterative driver (C7, fzd): repeatedly
// asking an opaque Algorithm for a batch of input points, running that
// batch through the engine, reducing each case's outputs to a scalar via a
// user-supplied expression, and feeding the (input, scalar) pairs back to
// the algorithm until it proposes an empty batch or the iteration budget
// is exhausted.
package iterative

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/fzgo/pkg/model"
)

// Design is one proposed batch of input points, each a variable-name to
// value assignment.
type Design []map[string]model.Value

// Analysis is the artifact an Algorithm produces, partial during the loop
// (analysis_tmp) or final (analysis): any subset of Text/HTML/Data may be
// set.
type Analysis struct {
	Text string
	HTML string
	Data map[string]any
}

// Algorithm is the opaque three-operation contract the distilled design
// note calls out: the engine never inspects what is inside it, only calls
// these three (four, with the optional AnalysisTmp) methods.
type Algorithm interface {
	InitialDesign(inputRanges map[string][2]float64, outputNames []string) (Design, error)
	NextDesign(priorInputs []map[string]model.Value, priorOutputs []float64) (Design, error)
	Analysis(allInputs []map[string]model.Value, allOutputs []float64) (Analysis, error)
}

// TmpAnalyzer is an optional extension: an Algorithm that can also report
// intermediate progress after each iteration.
type TmpAnalyzer interface {
	AnalysisTmp(allInputs []map[string]model.Value, allOutputs []float64) (Analysis, error)
}

// EvaluateBatch runs one Algorithm's outputs through an output expression,
// reducing each case's extracted outputs to the scalar the algorithm sees.
type EvaluateBatch func(ctx context.Context, design Design) ([]float64, []map[string]any, error)

// Report is the final artifact returned once the loop ends: the complete
// (X, Y) table plus the algorithm's terminal analysis.
type Report struct {
	Inputs   []map[string]model.Value
	Outputs  []float64
	RawOuts  []map[string]any
	Final    Analysis
	Rounds   int
}

// Options configures one Run.
type Options struct {
	InputRanges  map[string][2]float64
	OutputNames  []string
	MaxRounds    int // 0 means unbounded (algorithm's empty batch ends the loop)
	RunDir       string
	PersistTmp   bool
}

// Run drives the loop described in the package doc comment, persisting
// each round's analysis_tmp artifact (when the algorithm implements
// TmpAnalyzer and opts.PersistTmp is set) under opts.RunDir.
func Run(ctx context.Context, algo Algorithm, eval EvaluateBatch, opts Options) (Report, error) {
	var inputs []map[string]model.Value
	var outputs []float64
	var raw []map[string]any

	round := 0
	for {
		if ctx.Err() != nil {
			return Report{}, ctx.Err()
		}
		if opts.MaxRounds > 0 && round >= opts.MaxRounds {
			break
		}

		var batch Design
		var err error
		if round == 0 {
			batch, err = algo.InitialDesign(opts.InputRanges, opts.OutputNames)
		} else {
			batch, err = algo.NextDesign(inputs, outputs)
		}
		if err != nil {
			return Report{}, fmt.Errorf("round %d: propose design: %w", round, err)
		}
		if len(batch) == 0 {
			break
		}

		scalars, rawOuts, err := eval(ctx, batch)
		if err != nil {
			return Report{}, fmt.Errorf("round %d: evaluate batch: %w", round, err)
		}

		inputs = append(inputs, batch...)
		outputs = append(outputs, scalars...)
		raw = append(raw, rawOuts...)
		round++

		if tmp, ok := algo.(TmpAnalyzer); ok && opts.PersistTmp {
			analysis, err := tmp.AnalysisTmp(inputs, outputs)
			if err == nil {
				_ = persistAnalysis(opts.RunDir, round, analysis)
			}
		}
	}

	final, err := algo.Analysis(inputs, outputs)
	if err != nil {
		return Report{}, fmt.Errorf("final analysis: %w", err)
	}

	return Report{Inputs: inputs, Outputs: outputs, RawOuts: raw, Final: final, Rounds: round}, nil
}

// persistAnalysis writes one round's intermediate analysis artifact under
// opts.RunDir as "analysis_tmp_<round>.{txt,html,json}", whichever of
// Text/HTML/Data is non-empty. The (up to three) files are independent, so
// they're written concurrently.
func persistAnalysis(runDir string, round int, a Analysis) error {
	if runDir == "" {
		return nil
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(runDir, fmt.Sprintf("analysis_tmp_%04d", round))

	var g errgroup.Group
	if a.Text != "" {
		g.Go(func() error {
			return os.WriteFile(base+".txt", []byte(a.Text), 0o644)
		})
	}
	if a.HTML != "" {
		g.Go(func() error {
			return os.WriteFile(base+".html", []byte(a.HTML), 0o644)
		})
	}
	if a.Data != nil {
		g.Go(func() error {
			data, err := json.MarshalIndent(a.Data, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(base+".json", data, 0o644)
		})
	}
	return g.Wait()
}

// RowToAssignment converts a result row's case-Value map into the
// map[string]model.Value shape Design batches use.
func RowToAssignment(c model.Case) map[string]model.Value {
	out := make(map[string]model.Value, len(c.Values))
	for k, v := range c.Values {
		out[k] = v
	}
	return out
}

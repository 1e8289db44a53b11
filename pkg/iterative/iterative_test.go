package iterative

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jihwankim/fzgo/pkg/model"
)

// fixedRoundAlgorithm proposes one fixed-size batch per round up to
// maxBatches rounds, then an empty batch to end the loop.
type fixedRoundAlgorithm struct {
	maxBatches int
	batches    int
}

func (a *fixedRoundAlgorithm) InitialDesign(ranges map[string][2]float64, names []string) (Design, error) {
	return a.next()
}

func (a *fixedRoundAlgorithm) NextDesign(priorInputs []map[string]model.Value, priorOutputs []float64) (Design, error) {
	return a.next()
}

func (a *fixedRoundAlgorithm) next() (Design, error) {
	if a.batches >= a.maxBatches {
		return nil, nil
	}
	a.batches++
	return Design{{"x": model.FloatValue(float64(a.batches))}}, nil
}

func (a *fixedRoundAlgorithm) Analysis(allInputs []map[string]model.Value, allOutputs []float64) (Analysis, error) {
	return Analysis{Text: "done", Data: map[string]any{"n": len(allOutputs)}}, nil
}

func echoEval(ctx context.Context, design Design) ([]float64, []map[string]any, error) {
	scalars := make([]float64, len(design))
	raws := make([]map[string]any, len(design))
	for i, assignment := range design {
		x, _ := assignment["x"].Float64()
		scalars[i] = x
		raws[i] = map[string]any{"x": x}
	}
	return scalars, raws, nil
}

func TestRunStopsOnEmptyBatch(t *testing.T) {
	algo := &fixedRoundAlgorithm{maxBatches: 3}
	report, err := Run(context.Background(), algo, echoEval, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rounds != 3 {
		t.Fatalf("Rounds = %d, want 3", report.Rounds)
	}
	if len(report.Outputs) != 3 {
		t.Fatalf("Outputs = %v, want 3 entries", report.Outputs)
	}
	if report.Final.Text != "done" {
		t.Fatalf("Final.Text = %q", report.Final.Text)
	}
}

func TestRunStopsAtMaxRounds(t *testing.T) {
	algo := &fixedRoundAlgorithm{maxBatches: 100}
	report, err := Run(context.Background(), algo, echoEval, Options{MaxRounds: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rounds != 2 {
		t.Fatalf("Rounds = %d, want 2 (capped by MaxRounds)", report.Rounds)
	}
}

// tmpAnalyzerAlgorithm additionally implements TmpAnalyzer.
type tmpAnalyzerAlgorithm struct {
	fixedRoundAlgorithm
}

func (a *tmpAnalyzerAlgorithm) AnalysisTmp(allInputs []map[string]model.Value, allOutputs []float64) (Analysis, error) {
	return Analysis{Data: map[string]any{"partial_n": len(allOutputs)}}, nil
}

func TestRunPersistsIntermediateAnalysisWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	algo := &tmpAnalyzerAlgorithm{fixedRoundAlgorithm{maxBatches: 2}}
	_, err := Run(context.Background(), algo, echoEval, Options{RunDir: dir, PersistTmp: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	first := filepath.Join(dir, "analysis_tmp_0001.json")
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("expected analysis_tmp_0001.json to be written: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["partial_n"] != float64(1) {
		t.Fatalf("partial_n = %v, want 1", decoded["partial_n"])
	}
}

func TestRunContextCancellationStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	algo := &fixedRoundAlgorithm{maxBatches: 5}
	_, err := Run(ctx, algo, echoEval, Options{})
	if err == nil {
		t.Fatalf("expected error for a pre-cancelled context")
	}
}

package iterative

import (
	"fmt"
	"math"
	"sort"

	"github.com/jihwankim/fzgo/pkg/model"
)

// GridAlgorithm is the built-in non-adaptive Algorithm the CLI wires up by
// default: InitialDesign lays out an evenly-spaced grid over every input
// range and NextDesign always returns an empty batch, so the loop runs
// exactly one round. Algorithm plugins with an adaptive NextDesign (surface
// response, Bayesian optimization, ...) are out of scope for the CLI and
// are expected to be wired in by embedding code that implements Algorithm
// directly.
type GridAlgorithm struct {
	// PointsPerDimension is the number of evenly-spaced samples taken along
	// each input range. Must be >= 1.
	PointsPerDimension int
}

func NewGridAlgorithm(pointsPerDimension int) *GridAlgorithm {
	if pointsPerDimension < 1 {
		pointsPerDimension = 1
	}
	return &GridAlgorithm{PointsPerDimension: pointsPerDimension}
}

func (g *GridAlgorithm) InitialDesign(inputRanges map[string][2]float64, outputNames []string) (Design, error) {
	names := make([]string, 0, len(inputRanges))
	for name := range inputRanges {
		names = append(names, name)
	}
	sort.Strings(names)

	points := [][]float64{{}}
	for _, name := range names {
		lo, hi := inputRanges[name][0], inputRanges[name][1]
		samples := linspace(lo, hi, g.PointsPerDimension)
		var next [][]float64
		for _, prefix := range points {
			for _, s := range samples {
				point := append(append([]float64{}, prefix...), s)
				next = append(next, point)
			}
		}
		points = next
	}

	design := make(Design, len(points))
	for i, p := range points {
		assignment := make(map[string]model.Value, len(names))
		for j, name := range names {
			assignment[name] = model.FloatValue(p[j])
		}
		design[i] = assignment
	}
	return design, nil
}

func (g *GridAlgorithm) NextDesign(priorInputs []map[string]model.Value, priorOutputs []float64) (Design, error) {
	return nil, nil
}

func (g *GridAlgorithm) Analysis(allInputs []map[string]model.Value, allOutputs []float64) (Analysis, error) {
	if len(allOutputs) == 0 {
		return Analysis{Text: "no cases evaluated"}, nil
	}
	min, max, sum := allOutputs[0], allOutputs[0], 0.0
	for _, v := range allOutputs {
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += v
	}
	mean := sum / float64(len(allOutputs))
	return Analysis{
		Text: fmt.Sprintf("n=%d min=%g max=%g mean=%g", len(allOutputs), min, max, mean),
		Data: map[string]any{"n": len(allOutputs), "min": min, "max": max, "mean": mean},
	}, nil
}

func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{(lo + hi) / 2}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = lo + step*float64(i)
	}
	return out
}

package result

import (
	"testing"

	"github.com/jihwankim/fzgo/pkg/model"
)

func TestBuildAssemblesVariablesOutputsAndMeta(t *testing.T) {
	cases := []model.Case{
		model.NewCase([]string{"x"}, map[string]model.Value{"x": model.IntValue(1)}),
		model.NewCase([]string{"x"}, map[string]model.Value{"x": model.IntValue(2)}),
	}
	outputs := []map[string]any{
		{"y": int64(10)},
		{"y": int64(20)},
	}
	metas := []Meta{
		{Status: "done", Calculator: "sh://local", DurationS: 1.5},
		{Status: "failed", Error: "boom"},
	}

	table := Build(cases, outputs, metas)
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["x"] != int64(1) || table.Rows[0]["y"] != int64(10) {
		t.Fatalf("row 0 = %+v", table.Rows[0])
	}
	if table.Rows[1]["status"] != "failed" || table.Rows[1]["error"] != "boom" {
		t.Fatalf("row 1 meta = %+v", table.Rows[1])
	}
	for _, want := range []string{"x", "y", "status", "calculator", "error"} {
		found := false
		for _, c := range table.Columns {
			if c == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected column %q in %v", want, table.Columns)
		}
	}
}

func TestFlattenRowsNestedMaps(t *testing.T) {
	rows := []Row{
		{"stats": map[string]any{"min": 1, "max": 2}},
	}
	flat := FlattenRows(rows)
	if flat[0]["stats_min"] != 1 || flat[0]["stats_max"] != 2 {
		t.Fatalf("flattened row = %+v", flat[0])
	}
	if _, ok := flat[0]["stats"]; ok {
		t.Fatalf("expected original map column removed, got %+v", flat[0])
	}
}

func TestFlattenRowsCyclicMapTerminates(t *testing.T) {
	// A map that keeps producing nested maps forever must be capped at 10
	// passes rather than looping forever.
	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	rows := []Row{{"a": cyclic}}
	flat := FlattenRows(rows)
	if len(flat) != 1 {
		t.Fatalf("expected exactly one row back, got %d", len(flat))
	}
}

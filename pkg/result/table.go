// Package result assembles per-case variable assignments, extraction
// outcomes, and dispatcher metadata into one flat tabular result.
package result

import (
	"fmt"
	"sort"

	"github.com/jihwankim/fzgo/pkg/model"
)

// Row is one case's worth of columns: variable assignments, output values,
// and the dispatcher's bookkeeping fields, all flattened to scalars.
type Row map[string]any

// metaColumns is the fixed set of bookkeeping columns every row carries,
// in the declared display order.
var metaColumns = []string{"status", "calculator", "command", "error", "path", "duration_s"}

// Meta holds the dispatcher-produced bookkeeping for one case.
type Meta struct {
	Status     string
	Calculator string
	Command    string
	Error      string
	Path       string
	DurationS  float64
}

// Table is the assembled result: one Row per case, plus the column order
// used when rendering (variable names, then output names, then Meta).
type Table struct {
	Columns []string
	Rows    []Row
}

// Build assembles a Table from parallel slices of cases, their extracted
// outputs, and their dispatcher Meta — all three indexed the same way, one
// entry per case, in enumeration order.
func Build(cases []model.Case, outputs []map[string]any, metas []Meta) Table {
	varCols := map[string]bool{}
	for _, c := range cases {
		for _, name := range c.Order {
			varCols[name] = true
		}
	}
	var varOrder []string
	if len(cases) > 0 {
		varOrder = append(varOrder, cases[0].Order...)
	}
	for name := range varCols {
		if !contains(varOrder, name) {
			varOrder = append(varOrder, name)
		}
	}

	rows := make([]Row, 0, len(cases))
	outCols := map[string]bool{}
	for i, c := range cases {
		row := Row{}
		for _, name := range varOrder {
			if v, ok := c.Values[name]; ok {
				row[name] = v.Any()
			}
		}
		if i < len(outputs) {
			for name, v := range outputs[i] {
				row[name] = v
				outCols[name] = true
			}
		}
		if i < len(metas) {
			m := metas[i]
			row["status"] = m.Status
			row["calculator"] = m.Calculator
			row["command"] = m.Command
			row["error"] = m.Error
			row["path"] = m.Path
			row["duration_s"] = m.DurationS
		}
		rows = append(rows, row)
	}

	rows = FlattenRows(rows)

	var outOrder []string
	for name := range outCols {
		for _, row := range rows {
			if _, ok := row[name]; ok {
				outOrder = append(outOrder, name)
				break
			}
		}
	}
	sort.Strings(outOrder)

	cols := append(append([]string{}, varOrder...), outOrder...)
	cols = append(cols, metaColumns...)
	cols = dedupePreserveOrder(mergeFlattenedColumns(cols, rows))

	return Table{Columns: cols, Rows: rows}
}

// FlattenRows recursively flattens every map-valued entry in each row into
// dotted-then-underscored column names (stats.min -> stats_min), removing
// the original map column, iterating to a fixed point capped at 10 passes
// so a pathological cycle of self-referential maps can't loop forever.
func FlattenRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = flattenRow(row)
	}
	return out
}

func flattenRow(row Row) Row {
	cur := Row{}
	for k, v := range row {
		cur[k] = v
	}
	for pass := 0; pass < 10; pass++ {
		changed := false
		next := Row{}
		for k, v := range cur {
			if m, ok := asStringMap(v); ok {
				for subKey, subVal := range m {
					next[fmt.Sprintf("%s_%s", k, subKey)] = subVal
				}
				changed = true
				continue
			}
			next[k] = v
		}
		cur = next
		if !changed {
			break
		}
	}
	return cur
}

func asStringMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func mergeFlattenedColumns(known []string, rows []Row) []string {
	seen := map[string]bool{}
	for _, c := range known {
		seen[c] = true
	}
	cols := append([]string{}, known...)
	var extra []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

func dedupePreserveOrder(list []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

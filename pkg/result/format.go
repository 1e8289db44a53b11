package result

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jihwankim/fzgo/pkg/logging"
)

// Format selects a Table's serialized representation.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formatter renders a Table in one of the supported formats.
type Formatter struct {
	logger *logging.Logger
}

func NewFormatter(logger *logging.Logger) *Formatter {
	return &Formatter{logger: logger}
}

// Render returns t in the given format, or an error for an unknown one.
func (f *Formatter) Render(t Table, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return f.renderText(t), nil
	case FormatJSON:
		return f.renderJSON(t)
	case FormatCSV:
		return f.renderCSV(t)
	default:
		return nil, fmt.Errorf("unsupported result format: %s", format)
	}
}

func (f *Formatter) renderText(t Table) []byte {
	var buf bytes.Buffer
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len(c)
	}
	cellStrings := make([][]string, len(t.Rows))
	for ri, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for ci, col := range t.Columns {
			s := cellString(row[col])
			cells[ci] = s
			if len(s) > widths[ci] {
				widths[ci] = len(s)
			}
		}
		cellStrings[ri] = cells
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], c)
		}
		buf.WriteString(strings.Join(parts, "  "))
		buf.WriteString("\n")
	}

	writeRow(t.Columns)
	sep := make([]string, len(t.Columns))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, cells := range cellStrings {
		writeRow(cells)
	}

	if f.logger != nil {
		f.logger.Debug("rendered result table", "rows", len(t.Rows), "format", "text")
	}
	return buf.Bytes()
}

func (f *Formatter) renderJSON(t Table) ([]byte, error) {
	rows := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = map[string]any(row)
	}
	out := map[string]any{"columns": t.Columns, "rows": rows}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result table: %w", err)
	}
	return data, nil
}

func (f *Formatter) renderCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = cellString(row[col])
		}
		if err := w.Write(cells); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

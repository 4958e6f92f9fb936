package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Table is a header plus rows of display values.
type Table struct {
	Header []string
	Rows   [][]any
}

// WriteTable renders t in a tabular mode. Structured modes encode the rows as a list of
// objects keyed by header.
func WriteTable(w io.Writer, mode Mode, t Table) error {
	if mode.Structured() {
		records := make([]map[string]any, len(t.Rows))
		for i, row := range t.Rows {
			rec := make(map[string]any, len(t.Header))
			for j, col := range t.Header {
				if j < len(row) {
					rec[col] = row[j]
				}
			}
			records[i] = rec
		}
		return WriteValue(w, mode, records)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	header := make(table.Row, len(t.Header))
	for i, col := range t.Header {
		header[i] = col
	}
	tw.AppendHeader(header)
	for _, row := range t.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = FormatValue(v)
		}
		tw.AppendRow(r)
	}

	switch mode {
	case ModeCSV:
		tw.RenderCSV()
	case ModeMarkdown:
		tw.RenderMarkdown()
	default:
		if len(t.Rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		tw.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(t.Rows))
	}
	return nil
}

// WriteResult renders a gateway result.
func WriteResult(w io.Writer, mode Mode, res *core.Result) error {
	if res.Failed() {
		return fmt.Errorf("query failed: %s", res.Error)
	}
	if mode.Structured() {
		return WriteValue(w, mode, res)
	}

	if n, ok := res.AffectedRows(); ok {
		_, _ = fmt.Fprintf(w, "%d rows affected (%s)\n", n, res.ExecutionTime.Round(time.Millisecond))
		return nil
	}

	names := res.ColumnNames()
	t := Table{Header: names, Rows: make([][]any, len(res.Rows))}
	for i, row := range res.Rows {
		values := make([]any, len(names))
		for j, name := range names {
			values[j] = row[name]
		}
		t.Rows[i] = values
	}
	return WriteTable(w, mode, t)
}

// FormatValue renders a cell value for humans.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// Table writes grid rows under the headers of the visible columns. Rows hold
// one value per column in cols; hidden columns are left out.
type Table struct {
	Columns model.Columns
	Rows    [][]any

	// MaxCell truncates cell text to this many runes. Zero disables it.
	MaxCell int
}

// Write renders the table to w.
func (t *Table) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	var idx []int
	var headers []string
	for i, c := range t.Columns {
		if c.Hidden {
			continue
		}
		idx = append(idx, i)
		headers = append(headers, RenderAccent(strings.ToUpper(c.Label())))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range t.Rows {
		cells := make([]string, len(idx))
		for j, i := range idx {
			if i < len(row) {
				cells[j] = t.cell(row[i])
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (t *Table) cell(v any) string {
	var s string
	switch v := v.(type) {
	case nil:
		return RenderMuted("-")
	case float64:
		s = FormatNumber(v)
	default:
		s = fmt.Sprint(v)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if t.MaxCell > 0 && utf8.RuneCountInString(s) > t.MaxCell {
		r := []rune(s)
		s = string(r[:t.MaxCell-1]) + "…"
	}
	return s
}

// FormatNumber prints JSON numbers without a trailing ".0" for integers.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// WriteFeedback prints the entries of f one per line, errors first.
func WriteFeedback(w io.Writer, f model.Feedback) {
	for _, msg := range f.Messages(model.SeverityError) {
		fmt.Fprintln(w, RenderError("error: ")+msg)
	}
	for _, msg := range f.Messages(model.SeverityNotice) {
		fmt.Fprintln(w, RenderNotice("notice: ")+msg)
	}
}

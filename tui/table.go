package tui

import (
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// Field is one label/value line of a Result.
type Field struct {
	Label string
	Value string
}

// Result is what a command prints on stdout once it finishes.
type Result struct {
	// Raw is printed verbatim, for values meant to be piped.
	Raw     string
	Title   string
	Fields  []Field
	Headers []string
	Rows    [][]string
	// Empty is printed instead of the table when Headers is set and Rows is empty.
	Empty string
}

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
	styleBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Render writes r to w. styled selects rounded borders and colors; otherwise
// the table uses ASCII borders so output stays grep-friendly.
func (r Result) Render(w io.Writer, styled bool) error {
	_, err := io.WriteString(w, r.String(styled))
	return err
}

// String returns the rendered result.
func (r Result) String(styled bool) string {
	var b strings.Builder

	if r.Raw != "" {
		b.WriteString(r.Raw)
		b.WriteString("\n")
	}
	if r.Title != "" {
		if styled {
			b.WriteString(styleBold.Render(r.Title))
		} else {
			b.WriteString(r.Title)
		}
		b.WriteString("\n")
	}

	width := 0
	for _, f := range r.Fields {
		width = max(width, len(f.Label))
	}
	for _, f := range r.Fields {
		label := f.Label + ":" + strings.Repeat(" ", width-len(f.Label)+1)
		if styled {
			label = styleBold.Render(label)
		}
		b.WriteString(label)
		b.WriteString(f.Value)
		b.WriteString("\n")
	}

	if len(r.Headers) == 0 {
		return b.String()
	}
	if len(r.Rows) == 0 {
		if r.Empty != "" {
			b.WriteString(r.Empty)
			b.WriteString("\n")
		}
		return b.String()
	}

	t := table.New().Headers(r.Headers...).Rows(r.Rows...)
	if styled {
		t = t.Border(lipgloss.RoundedBorder()).
			BorderStyle(styleBorder).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return styleHeader
				}
				return styleCell
			})
	} else {
		t = t.Border(lipgloss.ASCIIBorder()).
			StyleFunc(func(int, int) lipgloss.Style { return styleCell })
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

package display

import (
	"io"

	"github.com/pterm/pterm"
)

// Table prints rows under header as an aligned table
func Table(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	return pterm.DefaultTable.
		WithHasHeader().
		WithWriter(w).
		WithData(data).
		Render()
}

// Section prints a heading above a block of output
func Section(w io.Writer, title string) {
	pterm.Fprintln(w, pterm.LightCyan(title))
}

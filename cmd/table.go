package cmd

import (
	"strings"

	"github.com/pterm/pterm"
)

// PrintTableNoPad renders data as a table without the trailing padding pterm
// leaves on the last column.
func PrintTableNoPad(data pterm.TableData, hasHeader bool) {
	out, err := pterm.DefaultTable.WithHasHeader(hasHeader).WithData(data).Srender()
	if err != nil {
		pterm.Error.Println(err)
		return
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	pterm.Println(strings.Join(lines, "\n"))
}

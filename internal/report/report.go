// Package report renders portfolio reports for terminals, files and
// downstream tooling.
package report

import (
	"fmt"
	"io"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// Supported output format names.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Formats lists the supported output format names.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatCSV}
}

// Write renders the report in the named format.
func Write(w io.Writer, format string, r domain.PortfolioReport) error {
	switch format {
	case FormatText:
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatCSV:
		return WriteCSV(w, r, true)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

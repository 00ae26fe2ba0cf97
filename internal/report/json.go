package report

import (
	"encoding/json"
	"io"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// WriteJSON writes the whole report as indented JSON.
func WriteJSON(w io.Writer, r domain.PortfolioReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

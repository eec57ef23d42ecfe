package output

import (
	"encoding/json"
	"io"

	"github.com/c360studio/testtag/processor/rewriter"
)

// JSONRenderer writes the report and its summary as indented JSON.
type JSONRenderer struct{}

type jsonReport struct {
	*rewriter.Report
	Summary Summary `json:"summary"`
}

// Render implements Renderer.
func (r *JSONRenderer) Render(w io.Writer, report *rewriter.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Report: report, Summary: Summarize(report)})
}

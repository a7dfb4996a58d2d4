package output

import (
	"encoding/json"
	"io"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// JSONFormatter writes an audit report as a single JSON object.
type JSONFormatter struct{}

// Write renders the full report, result trees included, as indented JSON.
func (f *JSONFormatter) Write(w io.Writer, report *types.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// Package output renders audit reports: the console text view, machine
// formats (JSON, JSONL, CSV) and the per-run report files.
package output

import (
	"fmt"
	"io"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// Report formats accepted by --format.
const (
	FormatText  = "txt"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Formatter writes an audit report to the given writer.
type Formatter interface {
	Write(w io.Writer, report *types.AuditReport) error
}

// ForFormat returns the machine formatter for a --format value.
// FormatText has no machine formatter and returns nil.
func ForFormat(format string) (Formatter, error) {
	switch format {
	case FormatText:
		return nil, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatJSONL:
		return &JSONLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (must be txt, csv, json, or jsonl)", format)
	}
}

// statusLabel returns the task status, or NOT RUN for tasks an interrupted
// run never reached.
func statusLabel(t *types.AuditTask) string {
	if s := t.Status(); s != "" {
		return string(s)
	}
	return "NOT RUN"
}

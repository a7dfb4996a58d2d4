package output

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// CSVHeader is the column layout of the CSV report.
var CSVHeader = []string{"ID", "Title", "Result", "Details"}

// CSVFormatter writes one row per task. Details holds the result tree as
// compact JSON, or the raw evidence when the task has no result.
type CSVFormatter struct{}

// Write renders the header row and one row per task.
func (f *CSVFormatter) Write(w io.Writer, report *types.AuditReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range report.Tasks {
		details, err := csvDetails(t)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{t.ID, t.Title, statusLabel(t), details}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvDetails(t *types.AuditTask) (string, error) {
	var v any
	switch {
	case t.FinalResult != nil:
		v = t.FinalResult
	case t.ActualOutput != nil:
		v = t.ActualOutput
	default:
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

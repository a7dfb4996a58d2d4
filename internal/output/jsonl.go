package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// JSONLFormatter writes an audit as newline-delimited JSON. The first line
// is a header carrying the session, system and summary; each following line
// is one task.
type JSONLFormatter struct{}

// Write renders the header line followed by one line per task.
func (f *JSONLFormatter) Write(w io.Writer, report *types.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := struct {
		Type      string              `json:"type"`
		Version   string              `json:"version"`
		SessionID string              `json:"session_id"`
		Timestamp string              `json:"timestamp"`
		System    types.ReportSystem  `json:"system"`
		Summary   types.ReportSummary `json:"summary"`
	}{
		Type:      "header",
		Version:   report.Version,
		SessionID: report.SessionID,
		Timestamp: report.Timestamp.Format(time.RFC3339),
		System:    report.System,
		Summary:   report.Summary,
	}
	if err := enc.Encode(header); err != nil {
		return err
	}

	for _, t := range report.Tasks {
		line := struct {
			Type string           `json:"type"`
			Task *types.AuditTask `json:"task"`
		}{
			Type: "task",
			Task: t,
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// DefaultReportsDir is where report files are written unless --reports says otherwise.
const DefaultReportsDir = "reports"

// reportStatuses is the order detail reports are produced in.
var reportStatuses = []types.Status{types.StatusPass, types.StatusFail, types.StatusError}

// ReportFiles writes the per-run report files for one session under Dir:
//
//	summary/audit_summary_<session>.txt
//	details/audit_details_index_<session>.txt
//	details/<STATUS>/audit_<status>_<session>_<n>_checks.txt
//	audit_report_<session>.<format>
type ReportFiles struct {
	Dir string
}

// SummaryPath returns the summary file path for a session.
func (r ReportFiles) SummaryPath(session string) string {
	return filepath.Join(r.Dir, "summary", fmt.Sprintf("audit_summary_%s.txt", session))
}

// IndexPath returns the details index path for a session.
func (r ReportFiles) IndexPath(session string) string {
	return filepath.Join(r.Dir, "details", fmt.Sprintf("audit_details_index_%s.txt", session))
}

// DetailPath returns the evidence file path for the n tasks of one status.
func (r ReportFiles) DetailPath(session string, status types.Status, n int) string {
	return filepath.Join(r.Dir, "details", string(status), detailFileName(session, status, n))
}

// ReportPath returns the machine report path for a session and format.
func (r ReportFiles) ReportPath(session, format string) string {
	return filepath.Join(r.Dir, fmt.Sprintf("audit_report_%s.%s", session, format))
}

func detailFileName(session string, status types.Status, n int) string {
	return fmt.Sprintf("audit_%s_%s_%d_checks.txt", strings.ToLower(string(status)), session, n)
}

// WriteSummary writes the summary file: overall counts, counts by domain,
// and the failed and errored task lists.
func (r ReportFiles) WriteSummary(report *types.AuditReport) (string, error) {
	path := r.SummaryPath(report.SessionID)
	err := writeFile(path, func(w io.Writer) {
		s := report.Summary
		writeFileBanner(w, "AUDIT SUMMARY", report)
		fmt.Fprintf(w, "Total Checks Run: %d\n", s.TotalTasks)
		fmt.Fprintf(w, "RESULTS: %d Passed, %d Failed, %d Errored.\n", s.Passed, s.Failed, s.Errors)
		if s.NotRun > 0 {
			fmt.Fprintf(w, "NOT RUN: %d (audit interrupted)\n", s.NotRun)
		}
		fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", ruleWidth))

		fmt.Fprintf(w, "RESULTS BY DOMAIN:\n")
		writeDomains(w, s.Domains, "  ")

		fmt.Fprintf(w, "\nFAILED CHECKS SUMMARY:\n")
		writeTaskList(w, report.Tasks, types.StatusFail)

		if s.Errors > 0 {
			fmt.Fprintf(w, "\nERRORED CHECKS SUMMARY:\n")
			writeTaskList(w, report.Tasks, types.StatusError)
		}
	})
	return path, err
}

// WriteDetails writes the details index and one evidence file per status
// that has at least one task. It returns every path written, index first.
func (r ReportFiles) WriteDetails(report *types.AuditReport) ([]string, error) {
	byStatus := make(map[types.Status][]*types.AuditTask)
	for _, t := range report.Tasks {
		if s := t.Status(); s != "" {
			byStatus[s] = append(byStatus[s], t)
		}
	}

	index := r.IndexPath(report.SessionID)
	err := writeFile(index, func(w io.Writer) {
		writeFileBanner(w, "DETAILED AUDIT EVIDENCE INDEX", report)
		fmt.Fprintf(w, "Total Checks Run: %d\n", report.Summary.TotalTasks)
		fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", ruleWidth))
		fmt.Fprintf(w, "EVIDENCE REPORTS BY STATUS:\n%s\n\n", strings.Repeat("-", 40))
		for _, s := range reportStatuses {
			tasks := byStatus[s]
			if len(tasks) == 0 {
				continue
			}
			fmt.Fprintf(w, "  %-5s Folder: %d checks\n", s, len(tasks))
			fmt.Fprintf(w, "        File: %s\n", detailFileName(report.SessionID, s, len(tasks)))
			fmt.Fprintf(w, "        Status: %s\n\n", statusDescription(s))
		}
		fmt.Fprintf(w, "SUMMARY BY DOMAIN:\n%s\n", strings.Repeat("-", 30))
		writeDomains(w, report.Summary.Domains, "")
	})
	if err != nil {
		return nil, err
	}

	paths := []string{index}
	text := &TextFormatter{ShowAll: true, Dumb: true, Plain: true}
	for _, s := range reportStatuses {
		tasks := byStatus[s]
		if len(tasks) == 0 {
			continue
		}
		path := r.DetailPath(report.SessionID, s, len(tasks))
		err := writeFile(path, func(w io.Writer) {
			writeFileBanner(w, string(s)+" AUDIT EVIDENCE", report)
			fmt.Fprintf(w, "Status: %s\n", s)
			fmt.Fprintf(w, "Total %s Checks: %d\n", s, len(tasks))
			fmt.Fprintf(w, "%s\n", strings.Repeat("=", ruleWidth))
			for i, t := range tasks {
				fmt.Fprintf(w, "\n%s\nCHECK #%d of %d\n%s\n\n", strings.Repeat("=", 80), i+1, len(tasks), strings.Repeat("=", 80))
				writeTaskEvidence(w, text, t)
			}
		})
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteReport writes the report through a machine formatter.
func (r ReportFiles) WriteReport(report *types.AuditReport, format string, f Formatter) (string, error) {
	path := r.ReportPath(report.SessionID, format)
	var ferr error
	err := writeFile(path, func(w io.Writer) {
		ferr = f.Write(w, report)
	})
	if err == nil {
		err = ferr
	}
	return path, err
}

func writeTaskEvidence(w io.Writer, text *TextFormatter, t *types.AuditTask) {
	fmt.Fprintf(w, "[%s] - ID: %s\n", statusLabel(t), t.ID)
	fmt.Fprintf(w, "Title: %s\n", t.Title)
	fmt.Fprintf(w, "Level: %s | Profile: %s | Domain: %s\n", t.Level, strings.Join(t.Profiles, ", "), t.Domain)
	fmt.Fprintf(w, "Check Type: %s\n", t.CheckType)
	if t.Target != "" {
		fmt.Fprintf(w, "Target: %s\n", t.Target)
	}
	if t.ExpectedValue != "" {
		fmt.Fprintf(w, "Expected: %s\n", t.ExpectedValue)
	}
	fmt.Fprintf(w, "\nEVIDENCE:\n")
	if t.FinalResult != nil {
		text.WriteTree(w, t.FinalResult, "", true)
	}
	if t.ActualOutput != nil {
		fmt.Fprintf(w, "  Raw Output: %s\n", EvidenceString(t.ActualOutput))
	}
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("-", 80))
}

func writeFileBanner(w io.Writer, title string, report *types.AuditReport) {
	bar := strings.Repeat("=", 25)
	fmt.Fprintf(w, "%s %s %s\n", bar, title, bar)
	fmt.Fprintf(w, "Audit Session ID: %s\n", report.SessionID)
	fmt.Fprintf(w, "Report Time: %s\n", report.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Target: %s\n", report.System.Target)
}

func writeDomains(w io.Writer, domains []types.DomainSummary, indent string) {
	for _, d := range domains {
		total := d.Passed + d.Failed + d.Errors
		fmt.Fprintf(w, "%s%s: %d Pass, %d Fail, %d Error (Total: %d)\n", indent, d.Domain, d.Passed, d.Failed, d.Errors, total)
	}
}

func writeTaskList(w io.Writer, tasks []*types.AuditTask, status types.Status) {
	for _, t := range tasks {
		if t.Status() == status {
			fmt.Fprintf(w, "  - %s: %s\n", t.ID, t.Title)
		}
	}
}

func statusDescription(s types.Status) string {
	switch s {
	case types.StatusPass:
		return "All checks passed successfully"
	case types.StatusFail:
		return "Checks that failed validation"
	default:
		return "Checks that encountered errors"
	}
}

// writeFile creates path (and its parent directories) and hands a buffered
// writer to fill.
func writeFile(path string, fill func(w io.Writer)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	bw := bufio.NewWriter(f)
	fill(bw)
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return f.Close()
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ancients-collective/benchaudit/internal/types"
	"github.com/fatih/color"
)

// ─── Layout constants ────────────────────────────────────────────────
//
// Result trees hang off the task line, each level indented by one
// treeIndent-wide connector column.
const (
	treeIndent = 4   // width of one tree level ("├── " / "|-- ")
	maxLine    = 120 // hard wrap cap, even on ultra-wide terminals
	ruleWidth  = 67  // width of horizontal divider rules
)

// TextFormatter writes a human-readable audit report with result trees.
type TextFormatter struct {
	ShowAll bool // include PASS tasks and raw evidence
	Debug   bool // DEBUG log level: same visibility as ShowAll
	Width   int  // terminal width for wrapping; 0 = unknown
	Dumb    bool // TERM=dumb: ASCII connectors and icons
	Plain   bool // never colorize (report files)
}

var (
	cBold   = color.New(color.Bold).SprintFunc()
	cGreen  = color.New(color.FgGreen).SprintFunc()
	cRed    = color.New(color.FgRed).SprintFunc()
	cYellow = color.New(color.FgYellow).SprintFunc()
	cDim    = color.New(color.Faint).SprintFunc()

	cRedBold    = color.New(color.FgRed, color.Bold).SprintFunc()
	cYellowBold = color.New(color.FgYellow, color.Bold).SprintFunc()
	cGreenBold  = color.New(color.FgGreen, color.Bold).SprintFunc()
)

// IsDumbTerm returns true when the terminal doesn't support Unicode.
func IsDumbTerm() bool {
	t := os.Getenv("TERM")
	return t == "dumb" || t == ""
}

func (f *TextFormatter) wrapWidth() int {
	if f.Width > 0 && f.Width < maxLine {
		return f.Width
	}
	return maxLine
}

// verbose reports whether PASS tasks and raw evidence are rendered.
func (f *TextFormatter) verbose() bool {
	return f.ShowAll || f.Debug
}

// Visible reports whether a task with the given status is rendered in the
// details section. FAIL and ERROR are always shown.
func (f *TextFormatter) Visible(s types.Status) bool {
	return f.verbose() || s == types.StatusFail || s == types.StatusError
}

// ─── Public entry point ──────────────────────────────────────────────

// Write renders the full text report.
func (f *TextFormatter) Write(w io.Writer, report *types.AuditReport) error {
	f.writeHeader(w, report)
	f.writeSystem(w, report)
	f.writeFilters(w, report)
	f.writeSummary(w, report)
	f.writeDetails(w, report)
	fmt.Fprintln(w)
	return nil
}

// ─── Header ──────────────────────────────────────────────────────────

func (f *TextFormatter) writeHeader(w io.Writer, r *types.AuditReport) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", f.paint(cBold, "benchaudit"), f.paint(cDim, "v"+r.Version))
	fmt.Fprintf(w, "  %s %s\n", f.paint(cDim, "Session:"), r.SessionID)
	fmt.Fprintf(w, "  %s %s\n", f.paint(cDim, "Started:"), r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w)
}

// ─── System ──────────────────────────────────────────────────────────

func (f *TextFormatter) writeSystem(w io.Writer, r *types.AuditReport) {
	sys := r.System
	fmt.Fprintf(w, "  %s\n", f.paint(cBold, f.icon("section")+" Target"))
	fmt.Fprintf(w, "    Target:  %s\n", sys.Target)
	if sys.Remote {
		fmt.Fprintf(w, "    Runner:  %s (%s/%s)\n", sys.Hostname, sys.OS, sys.Arch)
	} else {
		fmt.Fprintf(w, "    Host:    %s (%s/%s)\n", sys.Hostname, sys.OS, sys.Arch)
		if sys.DistroID != "" {
			fmt.Fprintf(w, "    Distro:  %s %s (%s)\n", sys.DistroID, sys.DistroVersion, sys.DistroFamily)
		}
		if sys.Kernel != "" {
			fmt.Fprintf(w, "    Kernel:  %s\n", sys.Kernel)
		}
		if sys.EnvType != "" {
			env := sys.EnvType
			if sys.EnvRuntime != "" {
				env += fmt.Sprintf(" (%s)", sys.EnvRuntime)
			}
			fmt.Fprintf(w, "    Env:     %s\n", env)
		}
	}
	fmt.Fprintln(w)
	if !sys.Remote && !sys.IsRoot {
		fmt.Fprintf(w, "  %s %s\n", f.paint(cYellow, f.icon("warn")),
			f.wrap("Running as non-root, some checks may produce incomplete results", 4, 4))
		fmt.Fprintln(w)
	}
}

func (f *TextFormatter) writeFilters(w io.Writer, r *types.AuditReport) {
	var parts []string
	add := func(name string, vals []string) {
		if len(vals) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(vals, ",")))
		}
	}
	add("level", r.Filters.Levels)
	add("profile", r.Filters.Profiles)
	add("domain", r.Filters.Domains)
	add("id", r.Filters.IDs)
	if len(parts) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s %s\n\n", f.paint(cDim, "Filters:"), strings.Join(parts, " "))
}

// ─── Summary ─────────────────────────────────────────────────────────

func (f *TextFormatter) writeSummary(w io.Writer, r *types.AuditReport) {
	s := r.Summary
	f.writeBanner(w, "AUDIT SUMMARY")
	fmt.Fprintf(w, "Total Checks Run: %d\n", s.TotalTasks)
	line := fmt.Sprintf("RESULTS: %s, %s, %s.",
		f.paint(cGreenBold, fmt.Sprintf("%d Passed", s.Passed)),
		f.paint(cRedBold, fmt.Sprintf("%d Failed", s.Failed)),
		f.paint(cYellowBold, fmt.Sprintf("%d Errored", s.Errors)))
	fmt.Fprintln(w, line)
	if s.NotRun > 0 {
		fmt.Fprintf(w, "%s\n", f.paint(cYellow, fmt.Sprintf("%d check(s) not run (audit interrupted)", s.NotRun)))
	}
	fmt.Fprintf(w, "%s\n", f.paint(cDim, fmt.Sprintf("Duration: %dms", s.DurationMS)))
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
}

func (f *TextFormatter) writeBanner(w io.Writer, title string) {
	side := (ruleWidth - len(title) - 2) / 2
	if side < 3 {
		side = 3
	}
	bar := strings.Repeat("=", side)
	fmt.Fprintln(w, f.paint(cBold, bar+" "+title+" "+bar))
}

// ─── Details ─────────────────────────────────────────────────────────

func (f *TextFormatter) writeDetails(w io.Writer, r *types.AuditReport) {
	switch {
	case f.Debug:
		fmt.Fprintf(w, "\nDETAILS FOR ALL CHECKS (DEBUG MODE):\n\n")
	case f.ShowAll:
		fmt.Fprintf(w, "\nDETAILS FOR ALL CHECKS:\n\n")
	default:
		fmt.Fprintf(w, "\nDETAILS FOR FAILED AND ERRORED CHECKS:\n\n")
	}

	shown := 0
	for _, t := range r.Tasks {
		if !f.Visible(t.Status()) {
			continue
		}
		f.WriteTask(w, t)
		shown++
	}
	if shown == 0 {
		fmt.Fprintf(w, "  %s %s\n", f.paint(cGreen, f.icon("pass")), "No failed or errored checks")
	}
}

// WriteTask renders one task line followed by its result tree.
func (f *TextFormatter) WriteTask(w io.Writer, t *types.AuditTask) {
	status := statusLabel(t)
	fmt.Fprintf(w, "[%s] - ID: %s - %s\n", f.statusColor(t.Status(), status), t.ID, t.Title)
	if t.FinalResult == nil {
		fmt.Fprintf(w, "  %s Details: %s\n", f.connector(true), "task was not run")
		return
	}
	f.WriteTree(w, t.FinalResult, "", true)
}

// WriteTree renders a result node and its children. prefix is the indent
// inherited from the parent; last selects the closing connector.
func (f *TextFormatter) WriteTree(w io.Writer, node types.ResultNode, prefix string, last bool) {
	head := prefix + "  " + f.connector(last)
	childPrefix := prefix + "  " + f.continuation(last)

	switch n := node.(type) {
	case *types.LogicNode:
		fmt.Fprintf(w, "%s[%s] LOGIC GROUP (%s)\n", head, f.statusColor(n.Status, string(n.Status)), n.Logic)
		for i, step := range n.Steps {
			f.WriteTree(w, step, childPrefix, i == len(n.Steps)-1)
		}
	case *types.ActionNode:
		title := n.Title
		if title == "" {
			title = "Untitled Step"
		}
		fmt.Fprintf(w, "%s[%s] STEP: %s\n", head, f.statusColor(n.Status, string(n.Status)), title)
		f.writeAction(w, n, childPrefix)
	default:
		fmt.Fprintf(w, "%s[%s] %v\n", head, types.StatusError, node)
	}
}

func (f *TextFormatter) writeAction(w io.Writer, n *types.ActionNode, prefix string) {
	label := prefix + "  " + f.connector(true)
	col := utf8.RuneCountInString(label)

	reason := n.Details.Reason
	if n.Details.Error != "" {
		reason = n.Details.Error
	}
	if reason != "" {
		fmt.Fprintf(w, "%sReason: %s\n", label, f.wrap(reason, col+8, col+8))
	}
	if f.verbose() && n.Details.Evidence != nil {
		fmt.Fprintf(w, "%s     %sOutput: %s\n", prefix, f.connector(true), EvidenceString(n.Details.Evidence))
	}
}

// EvidenceString renders raw evidence as compact JSON.
func EvidenceString(ev types.RawEvidence) string {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Sprintf("%+v", ev)
	}
	return string(b)
}

// ─── Text wrapping ───────────────────────────────────────────────────

func (f *TextFormatter) wrap(text string, startCol, wrapCol int) string {
	w := f.wrapWidth()
	if startCol+len(text) <= w {
		return text
	}

	avail := w - startCol
	if avail < 20 {
		return text
	}

	wrapPad := strings.Repeat(" ", wrapCol)
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var b strings.Builder
	lineLen := 0
	for i, word := range words {
		if i == 0 {
			b.WriteString(word)
			lineLen = len(word)
			continue
		}
		if lineLen+1+len(word) > avail {
			b.WriteByte('\n')
			b.WriteString(wrapPad)
			b.WriteString(word)
			lineLen = len(word)
			avail = w - wrapCol
		} else {
			b.WriteByte(' ')
			b.WriteString(word)
			lineLen += 1 + len(word)
		}
	}
	return b.String()
}

// ─── Icons and connectors ────────────────────────────────────────────

func (f *TextFormatter) icon(name string) string {
	if f.Dumb {
		switch name {
		case "pass":
			return "+"
		case "warn":
			return "!"
		case "section":
			return ">"
		default:
			return "?"
		}
	}
	switch name {
	case "pass":
		return "✓"
	case "warn":
		return "⚠"
	case "section":
		return "▸"
	default:
		return "?"
	}
}

func (f *TextFormatter) connector(last bool) string {
	switch {
	case f.Dumb && last:
		return "'-- "
	case f.Dumb:
		return "|-- "
	case last:
		return "└── "
	default:
		return "├── "
	}
}

func (f *TextFormatter) continuation(last bool) string {
	switch {
	case last:
		return strings.Repeat(" ", treeIndent)
	case f.Dumb:
		return "|   "
	default:
		return "│   "
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────

func (f *TextFormatter) paint(fn func(a ...interface{}) string, s string) string {
	if f.Plain {
		return s
	}
	return fn(s)
}

func (f *TextFormatter) statusColor(s types.Status, label string) string {
	switch s {
	case types.StatusPass:
		return f.paint(cGreen, label)
	case types.StatusFail:
		return f.paint(cRed, label)
	case types.StatusError:
		return f.paint(cYellow, label)
	default:
		return f.paint(cDim, label)
	}
}

package types

import (
	"sort"
	"time"
)

// AuditReport is the top-level structure for a complete audit run.
// It is serialized directly to JSON for the --format=json output.
type AuditReport struct {
	// Version is the benchaudit version that produced this report.
	Version string `json:"version"`

	// SessionID identifies the run in report file names.
	SessionID string `json:"session_id"`

	// Timestamp is when the run started.
	Timestamp time.Time `json:"timestamp"`

	// System describes the audited host.
	System ReportSystem `json:"system"`

	// Filters describes which task filters were applied.
	Filters ReportFilters `json:"filters"`

	// Summary provides aggregate statistics.
	Summary ReportSummary `json:"summary"`

	// Tasks is the evaluated task list in execution order.
	Tasks []*AuditTask `json:"tasks"`
}

// ReportSystem describes the audited host.
type ReportSystem struct {
	// Target is "local" or the remote user@host:port.
	Target string `json:"target"`

	// Remote is true when checks ran over SSH.
	Remote bool `json:"remote"`

	// The following describe the machine running benchaudit.
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Kernel        string `json:"kernel,omitempty"`
	Arch          string `json:"arch"`
	DistroID      string `json:"distro_id,omitempty"`
	DistroVersion string `json:"distro_version,omitempty"`
	DistroFamily  string `json:"distro_family,omitempty"`
	EnvType       string `json:"env_type,omitempty"`
	EnvRuntime    string `json:"env_runtime,omitempty"`
	IsRoot        bool   `json:"is_root"`
}

// ReportFilters records the task filters that were active during a run.
type ReportFilters struct {
	Levels   []string `json:"levels,omitempty"`
	Profiles []string `json:"profiles,omitempty"`
	Domains  []string `json:"domains,omitempty"`
	IDs      []string `json:"ids,omitempty"`
	ShowAll  bool     `json:"show_all"`
}

// ReportSummary provides aggregate statistics for a run.
type ReportSummary struct {
	TotalTasks int   `json:"total_tasks"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Errors     int   `json:"errors"`
	NotRun     int   `json:"not_run"`
	DurationMS int64 `json:"duration_ms"`

	// Domains holds per-domain counts sorted by domain name.
	Domains []DomainSummary `json:"domains,omitempty"`
}

// DomainSummary is the per-domain breakdown of a ReportSummary.
type DomainSummary struct {
	Domain string `json:"domain"`
	Passed int    `json:"passed"`
	Failed int    `json:"failed"`
	Errors int    `json:"errors"`
}

// Summarize counts task outcomes. Tasks without a final result (an
// interrupted run) are counted as NotRun.
func Summarize(tasks []*AuditTask) ReportSummary {
	s := ReportSummary{TotalTasks: len(tasks)}
	byDomain := make(map[string]*DomainSummary)

	for _, t := range tasks {
		d, ok := byDomain[t.Domain]
		if !ok {
			d = &DomainSummary{Domain: t.Domain}
			byDomain[t.Domain] = d
		}
		switch t.Status() {
		case StatusPass:
			s.Passed++
			d.Passed++
		case StatusFail:
			s.Failed++
			d.Failed++
		case StatusError:
			s.Errors++
			d.Errors++
		default:
			s.NotRun++
		}
	}

	for _, d := range byDomain {
		s.Domains = append(s.Domains, *d)
	}
	sort.Slice(s.Domains, func(i, j int) bool {
		return s.Domains[i].Domain < s.Domains[j].Domain
	})
	return s
}

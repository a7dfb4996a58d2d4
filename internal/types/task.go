// Package types defines shared type definitions used across all benchaudit packages.
package types

import "time"

// TaskState is the lifecycle position of an AuditTask within one run.
type TaskState string

const (
	// TaskPending means the task has not been dispatched yet.
	TaskPending TaskState = "PENDING"
	// TaskRunning means the task's executor is producing evidence.
	TaskRunning TaskState = "RUNNING"
	// TaskCompleted means FinalResult is populated. It is terminal whatever the outcome.
	TaskCompleted TaskState = "COMPLETED"
)

// AuditTask is a single benchmark control: what to run, how to judge it,
// and the evidence and verdict recorded during the run.
type AuditTask struct {
	// ID is the benchmark control identifier (e.g., "1.1.1.1").
	ID string `yaml:"id" json:"id" validate:"max=256"`

	// Level is the benchmark level (e.g., "1", "2").
	Level string `yaml:"level" json:"level"`

	// Profiles lists the benchmark profiles this control belongs to.
	Profiles []string `yaml:"profile" json:"profile"`

	// Domain groups related controls (e.g., "Filesystem", "Network").
	Domain string `yaml:"domain" json:"domain"`

	// Title is the human-readable control title.
	Title string `yaml:"title" json:"title" validate:"max=512"`

	// CheckType selects the evidence-producing executor (e.g., "command_output").
	CheckType string `yaml:"check_type" json:"check_type"`

	// Target is the executor's primary input: a command, script name, or mount point.
	Target string `yaml:"target" json:"target"`

	// Parameters are executor arguments: a mapping, a list, or an upstream parse error.
	Parameters Parameters `yaml:"parameters" json:"parameters"`

	// Algorithm names the comparison used to classify evidence (e.g., "Contain").
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// ExpectedValue encodes the expectation using ";;" (AND) or "||" (OR) separators.
	ExpectedValue string `yaml:"expected_value" json:"expected_value"`

	// State is the run lifecycle state.
	State TaskState `yaml:"-" json:"state"`

	// ActualOutput is the raw evidence returned by the executor.
	ActualOutput RawEvidence `yaml:"-" json:"actual_output,omitempty"`

	// FinalResult is the classified outcome, set when State is TaskCompleted.
	FinalResult ResultNode `yaml:"-" json:"final_result,omitempty"`

	// Duration is how long dispatch and evaluation took (not serialized to JSON).
	Duration time.Duration `yaml:"-" json:"-"`

	// DurationMS is the duration in milliseconds for JSON serialization.
	DurationMS int64 `yaml:"-" json:"duration_ms"`
}

// NewTask returns a pending task with the identity and check definition filled in.
func NewTask(id, title, checkType, target, algorithm, expected string) *AuditTask {
	return &AuditTask{
		ID:            id,
		Title:         title,
		CheckType:     checkType,
		Target:        target,
		Algorithm:     algorithm,
		ExpectedValue: expected,
		State:         TaskPending,
	}
}

// Status returns the classified outcome, or "" if the task never completed.
func (t *AuditTask) Status() Status {
	if t.FinalResult == nil {
		return ""
	}
	return t.FinalResult.OverallStatus()
}

// HasProfile reports whether the task belongs to the named profile.
func (t *AuditTask) HasProfile(profile string) bool {
	for _, p := range t.Profiles {
		if p == profile {
			return true
		}
	}
	return false
}

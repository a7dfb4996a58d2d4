package types

import (
	"encoding/json"
	"strings"
)

// ExitCommandNotFound is the exit code executors report when a command could
// not be run at all (missing binary, empty target, broken session).
const ExitCommandNotFound = 127

// RawEvidence is the output of an executor. It is either a flat command
// result (*CommandEvidence) or a nested evidence tree (*LogicPayload).
type RawEvidence interface {
	// EvidenceError returns an executor-reported error. A non-empty value
	// forces the task straight to ERROR.
	EvidenceError() string

	isEvidence()
}

// CommandEvidence is the normalized {stdout, stderr, exit_code} record
// produced by both the local and remote execution paths.
type CommandEvidence struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// ExitCode is nil when the executor could not determine one.
	ExitCode *int `json:"exit_code,omitempty"`

	// Error is set by executors to force ERROR classification.
	Error string `json:"error,omitempty"`
}

// NewCommandEvidence builds evidence from captured output.
// Stdout and stderr are trimmed of surrounding whitespace.
func NewCommandEvidence(stdout, stderr string, exitCode int) *CommandEvidence {
	code := exitCode
	return &CommandEvidence{
		Stdout:   strings.TrimSpace(stdout),
		Stderr:   strings.TrimSpace(stderr),
		ExitCode: &code,
	}
}

// NotRunEvidence builds the exit-127 evidence used for every expected
// "could not execute" failure mode.
func NotRunEvidence(reason string) *CommandEvidence {
	return NewCommandEvidence("", reason, ExitCommandNotFound)
}

// HasExitCode reports whether an exit code was captured.
func (e *CommandEvidence) HasExitCode() bool {
	return e != nil && e.ExitCode != nil
}

// Code returns the exit code, or -1 when none was captured.
func (e *CommandEvidence) Code() int {
	if !e.HasExitCode() {
		return -1
	}
	return *e.ExitCode
}

// EvidenceError implements RawEvidence.
func (e *CommandEvidence) EvidenceError() string {
	if e == nil {
		return ""
	}
	return e.Error
}

func (*CommandEvidence) isEvidence() {}

// Logic is a boolean combinator for evidence groups.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ParseLogic normalizes a logic operator name. Unknown names are returned
// upper-cased so the evaluator can reject them.
func ParseLogic(s string) Logic {
	return Logic(strings.ToUpper(strings.TrimSpace(s)))
}

// LogicPayload is the unified logic payload: one check producing a tree of
// sub-results combined under a top-level operator.
type LogicPayload struct {
	// Logic is the operator for the implicit root group. Empty means AND.
	Logic Logic `json:"logic"`

	// Tree holds the root group's children in declared order.
	Tree []EvidenceNode `json:"evidence_tree"`

	// Error is set by executors to force ERROR classification.
	Error string `json:"error,omitempty"`
}

// NewLogicPayload builds a unified logic payload.
func NewLogicPayload(logic Logic, tree ...EvidenceNode) *LogicPayload {
	return &LogicPayload{Logic: logic, Tree: tree}
}

// EvidenceError implements RawEvidence.
func (p *LogicPayload) EvidenceError() string {
	if p == nil {
		return ""
	}
	return p.Error
}

func (*LogicPayload) isEvidence() {}

// MarshalJSON adds the is_unified_logic_payload marker consumed by report readers.
func (p *LogicPayload) MarshalJSON() ([]byte, error) {
	type payload LogicPayload
	return json.Marshal(struct {
		Unified bool `json:"is_unified_logic_payload"`
		payload
	}{Unified: true, payload: payload(*p)})
}

// EvidenceNode is one element of an evidence tree: an *EvidenceLeaf or an
// *EvidenceGroup.
type EvidenceNode interface {
	// StopsOnPass reports whether a PASS for this node ends its containing group.
	StopsOnPass() bool

	isEvidenceNode()
}

// EvidenceLeaf is a single check inside an evidence tree.
type EvidenceLeaf struct {
	Title         string      `json:"title"`
	Algorithm     string      `json:"algorithm"`
	ExpectedValue string      `json:"expected_value"`
	Evidence      RawEvidence `json:"raw_evidence"`
	Params        Parameters  `json:"params"`
	PassStopCheck bool        `json:"pass_stop_check,omitempty"`
}

// StopsOnPass implements EvidenceNode.
func (l *EvidenceLeaf) StopsOnPass() bool { return l.PassStopCheck }

func (*EvidenceLeaf) isEvidenceNode() {}

// EvidenceGroup combines child nodes under AND or OR.
type EvidenceGroup struct {
	Logic         Logic          `json:"logic"`
	Steps         []EvidenceNode `json:"steps"`
	PassStopCheck bool           `json:"pass_stop_check,omitempty"`
}

// StopsOnPass implements EvidenceNode.
func (g *EvidenceGroup) StopsOnPass() bool { return g.PassStopCheck }

func (*EvidenceGroup) isEvidenceNode() {}

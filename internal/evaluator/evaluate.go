package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// Evaluation messages used in action node reasons.
const (
	ReasonEvidenceNotFound = "Evidence not found. Expected command evidence with an exit code."
	ReasonTreeEmpty        = "Logic tree empty."
	ReasonExecutorError    = "Executor reported an error."
	untitledStep           = "Untitled Step"
)

// Check is one simple check: evidence plus the expectation it is judged against.
type Check struct {
	Title         string
	Algorithm     string
	ExpectedValue string
	Evidence      types.RawEvidence
	Params        types.Parameters
}

// Evaluator turns raw evidence into result nodes.
type Evaluator struct {
	algorithms *Algorithms
}

// New creates an Evaluator. A nil set uses the built-in algorithms.
func New(algorithms *Algorithms) *Evaluator {
	if algorithms == nil {
		algorithms = NewAlgorithms()
	}
	return &Evaluator{algorithms: algorithms}
}

// Algorithms returns the evaluator's algorithm set, for registering extras.
func (e *Evaluator) Algorithms() *Algorithms {
	return e.algorithms
}

// Evaluate classifies a task's ActualOutput. An executor-reported error wins
// over everything else; a unified logic payload is evaluated as a tree; any
// other evidence goes through simple classification.
func (e *Evaluator) Evaluate(task *types.AuditTask) types.ResultNode {
	ev := task.ActualOutput
	if ev != nil {
		if msg := ev.EvidenceError(); msg != "" {
			return types.NewActionNode(task.Title, types.StatusError, types.ActionDetails{
				Reason:   ReasonExecutorError,
				Error:    msg,
				Evidence: ev,
			})
		}
	}

	if payload, ok := ev.(*types.LogicPayload); ok {
		return e.EvaluatePayload(task.Title, payload)
	}

	return e.Simple(Check{
		Title:         task.Title,
		Algorithm:     task.Algorithm,
		ExpectedValue: task.ExpectedValue,
		Evidence:      ev,
		Params:        task.Parameters,
	})
}

// EvaluatePayload wraps the payload's tree in an implicit root group using
// the payload's logic (AND when unset).
func (e *Evaluator) EvaluatePayload(title string, payload *types.LogicPayload) types.ResultNode {
	if payload == nil || len(payload.Tree) == 0 {
		return types.NewActionNode(title, types.StatusError, types.ActionDetails{
			Reason:   ReasonTreeEmpty,
			Evidence: payload,
		})
	}
	logic := payload.Logic
	if logic == "" {
		logic = types.LogicAnd
	}
	return e.evalGroup(title, &types.EvidenceGroup{Logic: logic, Steps: payload.Tree})
}

// Simple classifies one check. Missing evidence or exit code and exit code
// 127 are ERROR regardless of the algorithm, as is an unknown algorithm.
func (e *Evaluator) Simple(c Check) *types.ActionNode {
	ev, ok := c.Evidence.(*types.CommandEvidence)
	if !ok || ev == nil || !ev.HasExitCode() {
		details := types.ActionDetails{Reason: ReasonEvidenceNotFound, Evidence: c.Evidence}
		if ok && ev != nil {
			details.Error = ev.Stderr
		}
		return types.NewActionNode(c.Title, types.StatusError, details)
	}

	details := types.ActionDetails{Error: ev.Stderr, Evidence: ev}

	if ev.Error != "" {
		details.Reason = ReasonExecutorError
		details.Error = ev.Error
		return types.NewActionNode(c.Title, types.StatusError, details)
	}

	if ev.Code() == types.ExitCommandNotFound {
		details.Reason = fmt.Sprintf("Command not found. Stderr: %s", ev.Stderr)
		return types.NewActionNode(c.Title, types.StatusError, details)
	}

	algo, ok := e.algorithms.Lookup(c.Algorithm)
	if !ok {
		details.Reason = fmt.Sprintf("Unknown algorithm specified: '%s'", c.Algorithm)
		return types.NewActionNode(c.Title, types.StatusError, details)
	}

	in := Input{
		Stdout:           strings.TrimSpace(ev.Stdout),
		ExitCode:         ev.Code(),
		ExpectedExitCode: SuccessCode(c.Params),
		Expected:         ParseExpected(c.ExpectedValue),
	}
	if algo(in) {
		details.Reason = fmt.Sprintf("Check passed successfully for algorithm '%s' with expected value '%s'.", c.Algorithm, c.ExpectedValue)
		return types.NewActionNode(c.Title, types.StatusPass, details)
	}
	details.Reason = fmt.Sprintf("Check failed for algorithm '%s' with expected value '%s'.", c.Algorithm, c.ExpectedValue)
	return types.NewActionNode(c.Title, types.StatusFail, details)
}

func (e *Evaluator) evalNode(node types.EvidenceNode) types.ResultNode {
	switch n := node.(type) {
	case *types.EvidenceGroup:
		return e.evalGroup(untitledStep, n)
	case *types.EvidenceLeaf:
		title := n.Title
		if title == "" {
			title = untitledStep
		}
		return e.Simple(Check{
			Title:         title,
			Algorithm:     n.Algorithm,
			ExpectedValue: n.ExpectedValue,
			Evidence:      n.Evidence,
			Params:        n.Params,
		})
	default:
		return types.NewActionNode(untitledStep, types.StatusError, types.ActionDetails{
			Reason: fmt.Sprintf("unsupported evidence node %T", node),
		})
	}
}

// evalGroup evaluates children in order. A PASS child with pass_stop_check
// ends the group as PASS. OR ends on the first PASS. Any ERROR child makes
// the group ERROR. title names the ERROR node for an unknown operator.
func (e *Evaluator) evalGroup(title string, g *types.EvidenceGroup) types.ResultNode {
	logic := g.Logic
	if logic == "" {
		logic = types.LogicAnd
	}
	if logic != types.LogicAnd && logic != types.LogicOr {
		return types.NewActionNode(title, types.StatusError, types.ActionDetails{
			Reason: fmt.Sprintf("Unknown logic operator: '%s'", logic),
		})
	}

	passed := logic == types.LogicAnd
	hasError := false
	results := make([]types.ResultNode, 0, len(g.Steps))

	for _, child := range g.Steps {
		r := e.evalNode(child)
		results = append(results, r)
		status := r.OverallStatus()

		if status == types.StatusError {
			hasError = true
		}
		if status == types.StatusPass && child.StopsOnPass() {
			passed = true
			break
		}
		if logic == types.LogicAnd && status != types.StatusPass {
			passed = false
		}
		if logic == types.LogicOr && status == types.StatusPass {
			passed = true
			break
		}
	}

	status := types.StatusFail
	switch {
	case hasError:
		status = types.StatusError
	case passed:
		status = types.StatusPass
	}
	return types.NewLogicNode(logic, status, results)
}

// SuccessCode reads the expected exit code from mapping-form parameters.
// A list uses its first element. Absent or unparsable values yield 0.
func SuccessCode(p types.Parameters) int {
	v, ok := p.Get("success_code")
	if !ok {
		return 0
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0
		}
		v = list[0]
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		code, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return code
	default:
		return 0
	}
}

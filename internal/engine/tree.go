package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ancients-collective/benchaudit/internal/execution"
	"github.com/ancients-collective/benchaudit/internal/types"
)

// CommandTreeExecutor gathers evidence for a tree of commands declared in
// mapping-form parameters:
//
//	logic: OR
//	steps:
//	  - title: sshd disabled
//	    command: systemctl is-enabled sshd
//	    algorithm: Exact
//	    expected_value: disabled
//	  - logic: AND
//	    pass_stop_check: true
//	    steps: [...]
//
// Every leaf command is run before evaluation; the result is a unified
// logic payload for compound classification.
type CommandTreeExecutor struct {
	backend *execution.Backend
}

// NewCommandTreeExecutor creates a CommandTreeExecutor.
func NewCommandTreeExecutor(backend *execution.Backend) *CommandTreeExecutor {
	return &CommandTreeExecutor{backend: backend}
}

// Execute implements CheckExecutor.
func (e *CommandTreeExecutor) Execute(ctx context.Context, _ string, params types.Parameters) types.RawEvidence {
	payload := &types.LogicPayload{Logic: types.ParseLogic(params.String("logic"))}
	if payload.Logic == "" {
		payload.Logic = types.LogicAnd
	}

	if !params.IsMap() {
		payload.Error = "command_tree requires mapping parameters with logic and steps"
		return payload
	}

	steps, err := e.buildSteps(ctx, params.Values["steps"], "steps")
	if err != nil {
		payload.Error = err.Error()
		return payload
	}
	payload.Tree = steps
	return payload
}

func (e *CommandTreeExecutor) buildSteps(ctx context.Context, raw any, where string) ([]types.EvidenceNode, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", where, raw)
	}

	nodes := make([]types.EvidenceNode, 0, len(list))
	for i, item := range list {
		at := fmt.Sprintf("%s[%d]", where, i)
		step, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected a mapping, got %T", at, item)
		}
		node, err := e.buildNode(ctx, step, at)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (e *CommandTreeExecutor) buildNode(ctx context.Context, step map[string]any, at string) (types.EvidenceNode, error) {
	stop := truthy(step["pass_stop_check"])

	if logic, ok := step["logic"]; ok {
		children, err := e.buildSteps(ctx, step["steps"], at+".steps")
		if err != nil {
			return nil, err
		}
		return &types.EvidenceGroup{
			Logic:         types.ParseLogic(fmt.Sprint(logic)),
			Steps:         children,
			PassStopCheck: stop,
		}, nil
	}

	command := str(step["command"])
	leaf := &types.EvidenceLeaf{
		Title:         str(step["title"]),
		Algorithm:     str(step["algorithm"]),
		ExpectedValue: str(step["expected_value"]),
		PassStopCheck: stop,
	}
	if p, ok := step["params"].(map[string]any); ok {
		leaf.Params = types.MapParameters(p)
	}

	if strings.TrimSpace(command) == "" {
		leaf.Evidence = types.NotRunEvidence(fmt.Sprintf("ERROR: %s has no command.", at))
		return leaf, nil
	}
	leaf.Evidence = e.backend.Execute(ctx, command)
	return leaf, nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// truthy accepts YAML booleans and the strings "true"/"True".
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return false
	}
}

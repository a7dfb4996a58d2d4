package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancients-collective/benchaudit/internal/engine"
	"github.com/ancients-collective/benchaudit/internal/evaluator"
	"github.com/ancients-collective/benchaudit/internal/execution"
	"github.com/ancients-collective/benchaudit/internal/execution/exectest"
	"github.com/ancients-collective/benchaudit/internal/loader"
	"github.com/ancients-collective/benchaudit/internal/types"
)

// Integration tests wire the real components together:
//   Loader -> Filter -> Auditor -> Registry -> Backend -> Evaluator

type pipeline struct {
	backend *execution.Backend
	auditor *engine.Auditor
	loader  *loader.Loader
}

func newPipeline(t *testing.T, scriptsDir string) *pipeline {
	t.Helper()
	backend := execution.NewBackend(nil)
	registry := engine.DefaultRegistry(backend, scriptsDir, nil)
	algorithms := evaluator.NewAlgorithms()
	return &pipeline{
		backend: backend,
		auditor: engine.NewAuditor(registry, backend, engine.WithEvaluator(evaluator.New(algorithms))),
		loader:  loader.New(registry.CheckTypes(), algorithms.Names()),
	}
}

func writeFile(t *testing.T, dir, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func byID(tasks []*types.AuditTask) map[string]*types.AuditTask {
	m := make(map[string]*types.AuditTask, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}

const integrationCSV = `ID,Level,Profile,Domain,Title,Check_Type,Target,Parameters,Algorithm,Expected_Value
1.1.1,1,Server,Filesystem,tmp is reported,command_output,echo /tmp,,Exact,/TMP
1.1.2,1,Server,Filesystem,either word,command_output,echo beta,,Contain,alpha||beta
1.1.3,2,Workstation,Filesystem,all words,command_output,echo alpha gamma,,Contain,alpha;;beta
2.1.1,1,Server,Services,nothing printed,command_output,true,,Null,
2.1.2,1,Server,Services,custom success code,command_output,echo done; exit 3,"{success_code: 3}",Contain,done
2.1.3,1,Server,Services,missing binary,command_output,definitely-not-a-command-xyz,,Exact,x
3.1.1,1,Server,Scripts,script check,execute_script,check.sh,"[hello]",Exact,hello ok
`

func TestIntegration_CSVPipeline(t *testing.T) {
	dir := t.TempDir()
	scripts := filepath.Join(dir, "functions")
	require.NoError(t, os.Mkdir(scripts, 0o750))
	writeFile(t, scripts, "check.sh", "#!/bin/sh\necho \"$1 ok\"\n", 0o750)
	path := writeFile(t, dir, "bench.csv", integrationCSV, 0o600)

	p := newPipeline(t, scripts)
	tasks, errs := p.loader.Load(path)
	require.Empty(t, errs)
	require.Len(t, tasks, 7)
	assert.Empty(t, p.loader.Lint(tasks))

	require.NoError(t, p.auditor.Run(context.Background(), tasks))

	got := byID(tasks)
	want := map[string]types.Status{
		"1.1.1": types.StatusPass,
		"1.1.2": types.StatusPass,
		"1.1.3": types.StatusFail,
		"2.1.1": types.StatusPass,
		"2.1.2": types.StatusPass,
		"2.1.3": types.StatusError,
		"3.1.1": types.StatusPass,
	}
	for id, status := range want {
		t.Run(id, func(t *testing.T) {
			task := got[id]
			require.NotNil(t, task)
			assert.Equal(t, types.TaskCompleted, task.State)
			assert.Equal(t, status, task.Status())
			assert.NotNil(t, task.ActualOutput)
		})
	}

	summary := types.Summarize(tasks)
	assert.Equal(t, 7, summary.TotalTasks)
	assert.Equal(t, 5, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Errors)
}

func TestIntegration_FilterThenRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.csv", integrationCSV, 0o600)

	p := newPipeline(t, dir)
	tasks, errs := p.loader.Load(path)
	require.Empty(t, errs)

	selected := loader.Filter{Levels: []string{"2"}}.Apply(tasks)
	require.Len(t, selected, 1)
	require.NoError(t, p.auditor.Run(context.Background(), selected))

	assert.Equal(t, types.StatusFail, selected[0].Status())
	for _, task := range tasks {
		if task.ID != "1.1.3" {
			assert.Equal(t, types.TaskPending, task.State, "task %s must not run", task.ID)
		}
	}
}

const integrationYAML = `tasks:
  - id: "5.2.1"
    level: "1"
    profile: [Server]
    domain: SSH
    title: sshd hardened
    check_type: command_tree
    parameters:
      logic: AND
      steps:
        - title: config readable
          command: echo PermitRootLogin no
          algorithm: Contain
          expected_value: permitrootlogin no
        - logic: OR
          steps:
            - title: protocol pinned
              command: echo Protocol 1
              algorithm: Exact
              expected_value: Protocol 2
            - title: modern openssh
              command: echo OpenSSH_9.6
              algorithm: Contain
              expected_value: OpenSSH_9
  - id: "5.2.2"
    level: "1"
    profile: [Server]
    domain: SSH
    title: stop on first pass
    check_type: command_tree
    parameters:
      logic: AND
      steps:
        - title: already compliant
          command: echo compliant
          algorithm: Exact
          expected_value: compliant
          pass_stop_check: true
        - title: never decides
          command: echo other
          algorithm: Exact
          expected_value: nope
`

func TestIntegration_YAMLCommandTree(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.yaml", integrationYAML, 0o600)

	p := newPipeline(t, dir)
	tasks, errs := p.loader.Load(path)
	require.Empty(t, errs)
	require.Len(t, tasks, 2)

	require.NoError(t, p.auditor.Run(context.Background(), tasks))

	root, ok := tasks[0].FinalResult.(*types.LogicNode)
	require.True(t, ok, "compound check must produce a logic node")
	assert.Equal(t, types.StatusPass, root.Status)
	require.Len(t, root.Steps, 2)
	inner, ok := root.Steps[1].(*types.LogicNode)
	require.True(t, ok)
	assert.Equal(t, types.LogicOr, inner.Logic)
	assert.Equal(t, types.StatusPass, inner.Status)

	assert.Equal(t, types.StatusPass, tasks[1].Status())
}

func TestIntegration_RemotePipeline(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bench.csv", integrationCSV, 0o600)

	p := newPipeline(t, dir)
	tasks, errs := p.loader.Load(path)
	require.Empty(t, errs)
	selected := loader.Filter{IDs: []string{"1.1.1", "1.1.3"}}.Apply(tasks)
	require.Len(t, selected, 2)

	s := exectest.NewFakeSession("auditor@web1:22")
	s.Replies["sudo echo /tmp"] = exectest.Reply{Stdout: "/tmp\n"}
	s.Replies["sudo echo alpha"] = exectest.Reply{Stdout: "alpha beta\n"}

	require.NoError(t, p.auditor.RunRemote(context.Background(), s, selected))

	assert.Equal(t, types.StatusPass, selected[0].Status())
	assert.Equal(t, types.StatusPass, selected[1].Status(), "remote output differs from the local command")
	assert.Len(t, s.Commands(), 2)
	assert.False(t, p.backend.Remote())
}

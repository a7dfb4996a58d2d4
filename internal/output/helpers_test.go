package output

import (
	"time"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// testTimestamp is a fixed time for deterministic test output.
var testTimestamp = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

const testSession = "20260115_103000_1a2b3c4d"

func completed(t *types.AuditTask, ev types.RawEvidence, result types.ResultNode) *types.AuditTask {
	t.ActualOutput = ev
	t.FinalResult = result
	t.State = types.TaskCompleted
	return t
}

func task(id, domain, title string) *types.AuditTask {
	t := types.NewTask(id, title, "command_output", "stat /etc/passwd", "Contain", "root")
	t.Level = "1"
	t.Profiles = []string{"Server", "Workstation"}
	t.Domain = domain
	return t
}

// newTestReport builds a report with one task of every outcome: PASS, FAIL,
// ERROR, a compound FAIL and one task an interrupted run never reached.
func newTestReport() *types.AuditReport {
	passEv := types.NewCommandEvidence("root", "", 0)
	failEv := types.NewCommandEvidence("nobody", "", 0)
	errEv := types.NotRunEvidence("sh: 1: missing: not found")

	tree := types.NewLogicNode(types.LogicAnd, types.StatusFail, []types.ResultNode{
		types.NewActionNode("sshd installed", types.StatusPass, types.ActionDetails{
			Reason:   "Check passed successfully for algorithm 'Not Null' with expected value ''.",
			Evidence: types.NewCommandEvidence("openssh-server", "", 0),
		}),
		types.NewActionNode("root login disabled", types.StatusFail, types.ActionDetails{
			Reason:   "Check failed for algorithm 'Contain' with expected value 'permitrootlogin no'.",
			Evidence: types.NewCommandEvidence("permitrootlogin yes", "", 0),
		}),
	})

	tasks := []*types.AuditTask{
		completed(task("1.1.1", "Filesystem", "Ensure passwd owned by root"), passEv,
			types.NewActionNode("Ensure passwd owned by root", types.StatusPass, types.ActionDetails{
				Reason:   "Check passed successfully for algorithm 'Contain' with expected value 'root'.",
				Evidence: passEv,
			})),
		completed(task("1.1.2", "Filesystem", "Ensure shadow owned by root"), failEv,
			types.NewActionNode("Ensure shadow owned by root", types.StatusFail, types.ActionDetails{
				Reason:   "Check failed for algorithm 'Contain' with expected value 'root'.",
				Evidence: failEv,
			})),
		completed(task("2.1.1", "Services", "Ensure auditd running"), errEv,
			types.NewActionNode("Ensure auditd running", types.StatusError, types.ActionDetails{
				Reason:   "Command not found. Stderr: sh: 1: missing: not found",
				Error:    "sh: 1: missing: not found",
				Evidence: errEv,
			})),
		completed(task("5.2.1", "SSH", "Ensure SSH root login is disabled"), nil, tree),
		task("6.1.1", "System", "Ensure permissions on /etc/group"),
	}

	return &types.AuditReport{
		Version:   "0.3.0",
		SessionID: testSession,
		Timestamp: testTimestamp,
		System: types.ReportSystem{
			Target:       "local",
			Hostname:     "test-host",
			OS:           "linux",
			Arch:         "amd64",
			Kernel:       "6.1.0",
			DistroID:     "ubuntu",
			DistroFamily: "debian",
			EnvType:      "bare-metal",
			IsRoot:       true,
		},
		Summary: func() types.ReportSummary {
			s := types.Summarize(tasks)
			s.DurationMS = 42
			return s
		}(),
		Tasks: tasks,
	}
}

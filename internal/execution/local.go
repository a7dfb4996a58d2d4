// Package execution runs check commands on the local host or over one SSH
// session, normalizing every outcome to command evidence.
package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// DefaultShell interprets local commands.
const DefaultShell = "/bin/sh"

// LocalRunner runs commands on the local host through a shell.
type LocalRunner struct {
	// Shell is the interpreter invoked as `<Shell> -c <command>`.
	Shell string
}

// NewLocalRunner returns a runner using DefaultShell.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{Shell: DefaultShell}
}

// Run executes command and captures its output and exit status.
// A command that cannot be started yields exit code 127.
func (r *LocalRunner) Run(ctx context.Context, command string) *types.CommandEvidence {
	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return types.NewCommandEvidence(stdout.String(), stderr.String(), 0)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return types.NewCommandEvidence(stdout.String(), stderr.String(), exitErr.ExitCode())
	}
	return types.NotRunEvidence(fmt.Sprintf("ERROR: Command failed to execute. Reason: %v", err))
}

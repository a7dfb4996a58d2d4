package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/ancients-collective/benchaudit/internal/execution"
	"github.com/ancients-collective/benchaudit/internal/types"
)

// DefaultScriptsDir is where audit scripts are looked up.
const DefaultScriptsDir = "functions"

// RemoteScriptPath returns a fresh temporary path for an uploaded script.
func RemoteScriptPath() string {
	return fmt.Sprintf("/tmp/audit_script_%s.sh", uuid.NewString()[:8])
}

// ScriptExecutor runs a named script from the scripts directory with bash.
// List-form parameters are passed as script arguments. With a remote
// session the script is uploaded to a temporary path, run with sudo, and
// removed afterwards.
type ScriptExecutor struct {
	backend *execution.Backend
	dir     string
	logger  *zap.Logger

	// tempPath generates remote upload paths.
	tempPath func() string
}

// NewScriptExecutor creates a ScriptExecutor reading scripts from dir.
func NewScriptExecutor(backend *execution.Backend, dir string, logger *zap.Logger) *ScriptExecutor {
	if dir == "" {
		dir = DefaultScriptsDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptExecutor{backend: backend, dir: dir, logger: logger, tempPath: RemoteScriptPath}
}

// Execute implements CheckExecutor.
func (e *ScriptExecutor) Execute(ctx context.Context, target string, params types.Parameters) types.RawEvidence {
	if target == "" {
		return types.NotRunEvidence("ERROR: No script name provided.")
	}

	path, err := resolveScript(e.dir, target)
	if err != nil {
		return types.NotRunEvidence(fmt.Sprintf("ERROR: %v", err))
	}

	var args []string
	if params.IsList() {
		args = params.Args
	}

	if e.backend.Remote() {
		return e.runRemote(ctx, path, args)
	}
	return e.runLocal(ctx, path, args)
}

func (e *ScriptExecutor) runLocal(ctx context.Context, path string, args []string) types.RawEvidence {
	if _, err := os.Stat(path); err != nil {
		return types.NotRunEvidence(fmt.Sprintf("ERROR: Script '%s' not found.", path))
	}
	return e.backend.Execute(ctx, shellquote.Join(append([]string{"bash", path}, args...)...))
}

func (e *ScriptExecutor) runRemote(ctx context.Context, path string, args []string) types.RawEvidence {
	content, err := readScript(path)
	if err != nil {
		return types.NotRunEvidence(fmt.Sprintf("ERROR: Local script '%s' not found: %v", path, err))
	}

	remote := e.tempPath()
	if err := e.backend.Upload(ctx, content, remote); err != nil {
		return types.NotRunEvidence(fmt.Sprintf("ERROR: Failed to upload script to remote server: %v", err))
	}
	defer e.cleanup(ctx, remote)

	if ev := e.backend.Execute(ctx, "sudo chmod +x "+shellquote.Join(remote)); ev.Code() != 0 {
		e.logger.Warn("Could not mark remote script executable",
			zap.String("path", remote), zap.String("stderr", ev.Stderr))
	}

	return e.backend.Execute(ctx, shellquote.Join(append([]string{"sudo", "bash", remote}, args...)...))
}

// cleanup removes an uploaded script. Failures are logged and ignored.
func (e *ScriptExecutor) cleanup(ctx context.Context, remote string) {
	if ev := e.backend.Execute(ctx, "sudo rm -f "+shellquote.Join(remote)); ev.Code() != 0 {
		e.logger.Debug("Remote script cleanup failed",
			zap.String("path", remote), zap.String("stderr", ev.Stderr))
	}
}

package engine

import (
	"context"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/ancients-collective/benchaudit/internal/execution"
	"github.com/ancients-collective/benchaudit/internal/types"
)

// Built-in check types.
const (
	CheckCommandOutput = "command_output"
	CheckExecuteScript = "execute_script"
	CheckMountPoint    = "mount_point"
	CheckCommandTree   = "command_tree"
)

// CommandExecutor runs the target verbatim as a shell command.
type CommandExecutor struct {
	backend *execution.Backend
}

// NewCommandExecutor creates a CommandExecutor.
func NewCommandExecutor(backend *execution.Backend) *CommandExecutor {
	return &CommandExecutor{backend: backend}
}

// Execute implements CheckExecutor.
func (e *CommandExecutor) Execute(ctx context.Context, target string, _ types.Parameters) types.RawEvidence {
	if strings.TrimSpace(target) == "" {
		return types.NotRunEvidence("ERROR: No command specified.")
	}
	return e.backend.Execute(ctx, target)
}

// MountPointExecutor reports what is mounted at the target path. An empty
// stdout means the path is not a separate mount.
type MountPointExecutor struct {
	backend *execution.Backend
}

// NewMountPointExecutor creates a MountPointExecutor.
func NewMountPointExecutor(backend *execution.Backend) *MountPointExecutor {
	return &MountPointExecutor{backend: backend}
}

// Execute implements CheckExecutor.
func (e *MountPointExecutor) Execute(ctx context.Context, target string, _ types.Parameters) types.RawEvidence {
	target = strings.TrimSpace(target)
	if target == "" {
		return types.NotRunEvidence("ERROR: Mount point target cannot be empty.")
	}
	return e.backend.Execute(ctx, shellquote.Join("findmnt", "-kn", target))
}

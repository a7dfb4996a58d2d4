package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancients-collective/benchaudit/internal/types"
)

func TestLocalRunner_CapturesOutput(t *testing.T) {
	ev := NewLocalRunner().Run(context.Background(), "echo hello; echo oops >&2")
	require.True(t, ev.HasExitCode())
	assert.Equal(t, 0, ev.Code())
	assert.Equal(t, "hello", ev.Stdout)
	assert.Equal(t, "oops", ev.Stderr)
}

func TestLocalRunner_ExitCode(t *testing.T) {
	ev := NewLocalRunner().Run(context.Background(), "exit 3")
	assert.Equal(t, 3, ev.Code())
}

func TestLocalRunner_MissingCommandIs127(t *testing.T) {
	ev := NewLocalRunner().Run(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.Equal(t, types.ExitCommandNotFound, ev.Code())
	assert.NotEmpty(t, ev.Stderr)
}

func TestLocalRunner_SpawnFailureIs127(t *testing.T) {
	r := &LocalRunner{Shell: "/nonexistent/shell"}
	ev := r.Run(context.Background(), "true")
	assert.Equal(t, types.ExitCommandNotFound, ev.Code())
	assert.Contains(t, ev.Stderr, "Command failed to execute")
}

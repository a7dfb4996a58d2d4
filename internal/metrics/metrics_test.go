package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancients-collective/benchaudit/internal/types"
)

func TestRecorder_ObserveTask(t *testing.T) {
	r := NewRecorder()
	r.ObserveTask("command_output", types.StatusPass, 20*time.Millisecond)
	r.ObserveTask("command_output", types.StatusPass, 30*time.Millisecond)
	r.ObserveTask("mount_point", types.StatusError, time.Millisecond)
	r.ObserveTask("", types.StatusError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.tasks.WithLabelValues("command_output", "PASS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tasks.WithLabelValues("mount_point", "ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tasks.WithLabelValues("none", "ERROR")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.taskDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveTask("x", types.StatusFail, time.Second)
		r.SessionFailure()
		r.RunFinished(time.Now())
	})
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SessionFailure()
	r.RunFinished(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "benchaudit.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "benchaudit_session_setup_failures_total 1")
	assert.Contains(t, string(data), "benchaudit_last_run_timestamp_seconds 1.7e+09")
}

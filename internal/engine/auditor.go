// Package engine dispatches audit tasks to evidence-producing executors
// and runs them, locally or over one remote session, into classified results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ancients-collective/benchaudit/internal/evaluator"
	"github.com/ancients-collective/benchaudit/internal/execution"
	"github.com/ancients-collective/benchaudit/internal/metrics"
	"github.com/ancients-collective/benchaudit/internal/types"
)

var (
	// ErrUnknownCheckType is returned by Dispatch for an unregistered check_type.
	ErrUnknownCheckType = errors.New("unknown check type")

	// ErrNoCheckType is reported for tasks without a check_type.
	ErrNoCheckType = errors.New("task has no check_type defined")

	// ErrSessionSetup is returned by RunRemote when the session cannot be established.
	// No task runs in that case.
	ErrSessionSetup = errors.New("remote session setup failed")
)

// DefaultRegistry returns a registry with the built-in check types wired to backend.
func DefaultRegistry(backend *execution.Backend, scriptsDir string, logger *zap.Logger) *Registry {
	r := NewRegistry()
	r.Register(CheckCommandOutput, NewCommandExecutor(backend))
	r.Register(CheckExecuteScript, NewScriptExecutor(backend, scriptsDir, logger))
	r.Register(CheckMountPoint, NewMountPointExecutor(backend))
	r.Register(CheckCommandTree, NewCommandTreeExecutor(backend))
	return r
}

// Auditor runs tasks strictly in order. A task's failure, including a
// panic in its executor, is recorded as an ERROR result for that task and
// the run continues.
type Auditor struct {
	registry  *Registry
	backend   *execution.Backend
	evaluator *evaluator.Evaluator
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

// WithMetrics records task outcomes into m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithEvaluator replaces the default evaluator.
func WithEvaluator(e *evaluator.Evaluator) Option {
	return func(a *Auditor) { a.evaluator = e }
}

// NewAuditor creates an Auditor dispatching through registry. backend is
// where RunRemote installs its session.
func NewAuditor(registry *Registry, backend *execution.Backend, opts ...Option) *Auditor {
	a := &Auditor{registry: registry, backend: backend}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.evaluator == nil {
		a.evaluator = evaluator.New(nil)
	}
	return a
}

// Run executes tasks in order. Cancelling ctx stops the run between tasks
// and returns ctx.Err(); a task already running is not interrupted.
func (a *Auditor) Run(ctx context.Context, tasks []*types.AuditTask) error {
	a.logger.Info("Starting audit",
		zap.Int("tasks", len(tasks)),
		zap.String("target", a.backend.Target()))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("Audit interrupted",
				zap.Int("completed", i),
				zap.Int("remaining", len(tasks)-i))
			return err
		}
		a.RunTask(ctx, task)
	}

	a.metrics.RunFinished(time.Now())
	a.logger.Info("Audit run completed", zap.Int("tasks", len(tasks)))
	return nil
}

// RunRemote connects session, installs it for the duration of the run and
// always releases and disconnects it afterwards. A connection failure
// returns an error wrapping ErrSessionSetup before any task runs.
func (a *Auditor) RunRemote(ctx context.Context, session execution.Session, tasks []*types.AuditTask) error {
	if err := session.Connect(ctx); err != nil {
		a.metrics.SessionFailure()
		a.logger.Error("Remote session setup failed", zap.String("host", session.Host()), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrSessionSetup, session.Host(), err)
	}
	defer func() {
		if err := session.Disconnect(); err != nil {
			a.logger.Warn("Disconnect failed", zap.String("host", session.Host()), zap.Error(err))
		}
	}()

	release, err := a.backend.Install(session)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionSetup, err)
	}
	defer release()

	return a.Run(ctx, tasks)
}

// RunTask dispatches, evaluates and completes one task.
func (a *Auditor) RunTask(ctx context.Context, task *types.AuditTask) {
	start := time.Now()
	task.State = types.TaskRunning
	a.logger.Info("Executing check", zap.String("id", task.ID), zap.String("title", task.Title))

	task.FinalResult = a.process(ctx, task)
	task.State = types.TaskCompleted
	task.Duration = time.Since(start)
	task.DurationMS = task.Duration.Milliseconds()

	status := task.Status()
	a.metrics.ObserveTask(task.CheckType, status, task.Duration)

	fields := []zap.Field{
		zap.String("id", task.ID),
		zap.String("status", string(status)),
		zap.Duration("duration", task.Duration),
	}
	if status == types.StatusError {
		a.logger.Error("Finished check", fields...)
		return
	}
	a.logger.Info("Finished check", fields...)
}

func (a *Auditor) process(ctx context.Context, task *types.AuditTask) (result types.ResultNode) {
	defer func() {
		if r := recover(); r != nil {
			result = handlerError(task, fmt.Errorf("panic: %v", r))
		}
	}()

	if task.Parameters.Err != "" {
		return types.NewActionNode(task.Title, types.StatusError, types.ActionDetails{
			Reason: "parameters: " + task.Parameters.Err,
			Error:  task.Parameters.Raw,
		})
	}
	if strings.TrimSpace(task.CheckType) == "" {
		return handlerError(task, ErrNoCheckType)
	}

	// Commands run to completion even if the run is cancelled.
	ev, err := a.registry.Dispatch(context.WithoutCancel(ctx), task.CheckType, task.Target, task.Parameters)
	if err != nil {
		return handlerError(task, err)
	}
	task.ActualOutput = ev

	return a.evaluator.Evaluate(task)
}

func handlerError(task *types.AuditTask, err error) *types.ActionNode {
	return types.NewActionNode(task.Title, types.StatusError, types.ActionDetails{
		Reason: "audit handler error: " + err.Error(),
		Error:  err.Error(),
	})
}

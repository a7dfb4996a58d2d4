package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// CheckExecutor produces evidence for one check type. Expected failures
// (missing command, empty target, broken session) are reported as exit
// code 127 evidence or an evidence error, never as a panic.
type CheckExecutor interface {
	Execute(ctx context.Context, target string, params types.Parameters) types.RawEvidence
}

// ExecutorFunc adapts a function to CheckExecutor.
type ExecutorFunc func(ctx context.Context, target string, params types.Parameters) types.RawEvidence

// Execute implements CheckExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, target string, params types.Parameters) types.RawEvidence {
	return f(ctx, target, params)
}

// Registry maps check_type names to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]CheckExecutor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]CheckExecutor)}
}

// Register adds or replaces the executor for checkType.
func (r *Registry) Register(checkType string, e CheckExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[checkType] = e
}

// CheckTypes returns a sorted list of all registered check types.
func (r *Registry) CheckTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the executor registered for checkType.
func (r *Registry) Dispatch(ctx context.Context, checkType, target string, params types.Parameters) (types.RawEvidence, error) {
	r.mu.RLock()
	e, ok := r.executors[checkType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCheckType, checkType)
	}
	return e.Execute(ctx, target, params), nil
}

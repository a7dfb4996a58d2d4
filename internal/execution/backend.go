package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// Backend is the execution context of one audit run. Commands run locally
// unless a remote session is installed, in which case they are elevated
// with sudo and sent over the session.
type Backend struct {
	local  *LocalRunner
	logger *zap.Logger

	mu      sync.RWMutex
	session Session
}

// NewBackend returns a backend in local mode.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{local: NewLocalRunner(), logger: logger}
}

// Install makes s the run's remote session. The returned release function
// removes it again and is safe to call more than once. Only one session
// may be installed at a time.
func (b *Backend) Install(s Session) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return nil, ErrSessionInstalled
	}
	b.session = s
	b.logger.Debug("Remote session installed", zap.String("host", s.Host()))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.session == s {
				b.session = nil
			}
			b.logger.Debug("Remote session released", zap.String("host", s.Host()))
		})
	}, nil
}

// Remote reports whether a remote session is installed.
func (b *Backend) Remote() bool {
	return b.current() != nil
}

// Target describes where commands run: "local" or the session host.
func (b *Backend) Target() string {
	if s := b.current(); s != nil {
		return s.Host()
	}
	return "local"
}

// Execute runs command and returns normalized evidence. It never fails:
// transport errors become exit code 127 evidence.
//
// Remote exit codes are derived from stderr: 0 when stderr is empty and
// 1 otherwise. The channel's own exit status is not used.
func (b *Backend) Execute(ctx context.Context, command string) *types.CommandEvidence {
	s := b.current()
	if s == nil {
		b.logger.Debug("Running local command", zap.String("command", command))
		return b.local.Run(ctx, command)
	}

	stdout, stderr, err := s.Run(ctx, Elevate(command))
	if err != nil {
		b.logger.Warn("Remote execution failed", zap.String("host", s.Host()), zap.Error(err))
		return types.NotRunEvidence(fmt.Sprintf("Remote execution error: %v", err))
	}

	code := 0
	if strings.TrimSpace(stderr) != "" {
		code = 1
	}
	return types.NewCommandEvidence(stdout, stderr, code)
}

// Upload writes content to path on the remote host.
func (b *Backend) Upload(ctx context.Context, content []byte, path string) error {
	s := b.current()
	if s == nil {
		return ErrNoSession
	}
	return s.Upload(ctx, content, path)
}

func (b *Backend) current() Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

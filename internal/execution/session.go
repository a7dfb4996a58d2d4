package execution

import (
	"context"
	"errors"
)

var (
	// ErrNoSession is returned when a remote-only operation runs without an installed session.
	ErrNoSession = errors.New("no remote session installed")

	// ErrSessionInstalled is returned when a second session is installed into a backend.
	ErrSessionInstalled = errors.New("a remote session is already installed")

	// ErrAuthMethod is returned when a session config does not name exactly one of password or identity file.
	ErrAuthMethod = errors.New("exactly one of password or identity file is required")

	// ErrNotConnected is returned by session operations before Connect or after Disconnect.
	ErrNotConnected = errors.New("session is not connected")
)

// Session is one authenticated connection to a remote host.
type Session interface {
	// Connect establishes the connection. It is called once per run.
	Connect(ctx context.Context) error

	// Disconnect closes the connection. It is safe to call more than once.
	Disconnect() error

	// Run executes command and returns its captured output. A command that
	// starts with "sudo " has the session password written to its stdin.
	// The error is non-nil only when the command could not be run at all.
	Run(ctx context.Context, command string) (stdout, stderr string, err error)

	// Upload writes content to remotePath, replacing any existing file.
	Upload(ctx context.Context, content []byte, remotePath string) error

	// Host describes the remote endpoint for logs and reports.
	Host() string
}

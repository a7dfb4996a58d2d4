// Package exectest provides an in-memory remote session for tests.
package exectest

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Reply is a canned response to a command.
type Reply struct {
	Stdout string
	Stderr string
	Err    error
}

// FakeSession records every call and answers commands from Replies,
// matched by the longest command prefix. Unmatched commands succeed with
// empty output.
type FakeSession struct {
	HostName   string
	ConnectErr error
	UploadErr  error
	Replies    map[string]Reply

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	commands    []string
	uploads     map[string][]byte
	uploadOrder []string
}

// NewFakeSession returns a session for host with no canned replies.
func NewFakeSession(host string) *FakeSession {
	return &FakeSession{HostName: host, Replies: map[string]Reply{}}
}

// Connect records the call and returns ConnectErr.
func (f *FakeSession) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

// Disconnect records the call.
func (f *FakeSession) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

// Run records command and returns the best matching reply.
func (f *FakeSession) Run(_ context.Context, command string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return "", "", errors.New("fake session not connected")
	}
	f.commands = append(f.commands, command)

	best := -1
	var reply Reply
	for prefix, r := range f.Replies {
		if strings.HasPrefix(command, prefix) && len(prefix) > best {
			best = len(prefix)
			reply = r
		}
	}
	return reply.Stdout, reply.Stderr, reply.Err
}

// Upload stores content in memory.
func (f *FakeSession) Upload(_ context.Context, content []byte, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return f.UploadErr
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[remotePath] = append([]byte(nil), content...)
	f.uploadOrder = append(f.uploadOrder, remotePath)
	return nil
}

// Host returns HostName.
func (f *FakeSession) Host() string { return f.HostName }

// Commands returns the commands run so far.
func (f *FakeSession) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Uploaded returns the content uploaded to path.
func (f *FakeSession) Uploaded(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.uploads[path]
	return b, ok
}

// UploadPaths returns upload destinations in call order.
func (f *FakeSession) UploadPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploadOrder...)
}

// Counts returns how often Connect and Disconnect were called.
func (f *FakeSession) Counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

package execution

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "auditor"
	testPassword = "s3cret-pw"
)

type execResult struct {
	stdout string
	stderr string
	status uint32
	delay  time.Duration
}

// sshTestServer is a minimal in-process SSH server that answers exec
// requests through a handler and serves SFTP from memory.
type sshTestServer struct {
	addr    string
	handler func(command string) execResult
	files   sftp.Handlers

	mu     sync.Mutex
	execs  []string
	stdins []string
}

func newSSHTestServer(t *testing.T, handler func(string) execResult) *sshTestServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := &sshTestServer{addr: ln.Addr().String(), handler: handler, files: sftp.InMemHandler()}
	go srv.serve(ln, cfg)
	return srv
}

func (s *sshTestServer) serve(ln net.Listener, cfg *ssh.ServerConfig) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn, cfg)
	}
}

func (s *sshTestServer) handleConn(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *sshTestServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				return
			}
			_ = req.Reply(true, nil)
			s.exec(ch, payload.Command)
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			server := sftp.NewRequestServer(ch, s.files)
			_ = server.Serve()
			server.Close()
			return
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *sshTestServer) exec(ch ssh.Channel, command string) {
	stdin := ""
	if strings.HasPrefix(command, `sudo -S -p "" `) {
		line, _ := bufio.NewReader(ch).ReadString('\n')
		stdin = line
	}

	s.mu.Lock()
	s.execs = append(s.execs, command)
	s.stdins = append(s.stdins, stdin)
	s.mu.Unlock()

	res := s.handler(command)
	if res.delay > 0 {
		time.Sleep(res.delay)
	}
	_, _ = io.WriteString(ch, res.stdout)
	_, _ = io.WriteString(ch.Stderr(), res.stderr)
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{res.status}))
}

func (s *sshTestServer) recorded() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.execs...), append([]string(nil), s.stdins...)
}

func (s *sshTestServer) config(t *testing.T) SSHConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return SSHConfig{Host: host, Port: port, Username: testUser, Password: testPassword}
}

func connectTestSession(t *testing.T, srv *sshTestServer, mutate func(*SSHConfig)) *SSHSession {
	t.Helper()
	cfg := srv.config(t)
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSSHSession(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

func TestSSHConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SSHConfig
		wantErr error
	}{
		{"password", SSHConfig{Host: "h", Username: "u", Password: "p"}, nil},
		{"key", SSHConfig{Host: "h", Username: "u", KeyPath: "/k"}, nil},
		{"both", SSHConfig{Host: "h", Username: "u", Password: "p", KeyPath: "/k"}, ErrAuthMethod},
		{"neither", SSHConfig{Host: "h", Username: "u"}, ErrAuthMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultPort, tt.cfg.Port)
			assert.Equal(t, DefaultConnectTimeout, tt.cfg.ConnectTimeout)
			assert.Equal(t, DefaultCommandTimeout, tt.cfg.CommandTimeout)
		})
	}

	bad := SSHConfig{Username: "u", Password: "p"}
	assert.Error(t, bad.Validate())
	bad = SSHConfig{Host: "h", Username: "u", Password: "p", Port: 70000}
	assert.Error(t, bad.Validate())
}

func TestSSHSession_Run(t *testing.T) {
	srv := newSSHTestServer(t, func(cmd string) execResult {
		return execResult{stdout: "out of " + cmd + "\n", stderr: "", status: 0}
	})
	s := connectTestSession(t, srv, nil)

	stdout, stderr, err := s.Run(context.Background(), "uname -r")
	require.NoError(t, err)
	assert.Equal(t, "out of uname -r\n", stdout)
	assert.Empty(t, stderr)

	execs, stdins := srv.recorded()
	assert.Equal(t, []string{"uname -r"}, execs)
	assert.Equal(t, []string{""}, stdins)
}

func TestSSHSession_SudoPipesPassword(t *testing.T) {
	srv := newSSHTestServer(t, func(string) execResult { return execResult{stdout: "root"} })
	s := connectTestSession(t, srv, nil)

	stdout, _, err := s.Run(context.Background(), "sudo id -un")
	require.NoError(t, err)
	assert.Equal(t, "root", stdout)

	execs, stdins := srv.recorded()
	require.Len(t, execs, 1)
	assert.Equal(t, `sudo -S -p "" id -un`, execs[0])
	assert.Equal(t, testPassword+"\n", stdins[0])
}

func TestSSHSession_DebugLogsRedactPassword(t *testing.T) {
	srv := newSSHTestServer(t, func(cmd string) execResult {
		return execResult{stdout: "echoed " + testPassword + "\n", stderr: "warning: " + testPassword, status: 0}
	})
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := srv.config(t)
	s, err := NewSSHSession(cfg, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect() })

	stdout, _, err := s.Run(context.Background(), "sudo echo "+testPassword)
	require.NoError(t, err)
	assert.Contains(t, stdout, testPassword, "command output itself is returned unchanged")

	assert.Equal(t, 1, logs.FilterMessage("Running remote command").Len())
	assert.Equal(t, 1, logs.FilterMessage("Remote command finished").Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, testPassword)
		for key, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), testPassword, "field %q of %q leaks the password", key, entry.Message)
		}
	}
	finished := logs.FilterMessage("Remote command finished").All()[0].ContextMap()
	assert.Equal(t, "echoed ********\n", finished["stdout"])
	assert.Equal(t, "warning: ********", finished["stderr"])
}

func TestSSHSession_NonZeroExitIsNotTransportError(t *testing.T) {
	srv := newSSHTestServer(t, func(string) execResult {
		return execResult{stderr: "grep: no match", status: 1}
	})
	s := connectTestSession(t, srv, nil)

	_, stderr, err := s.Run(context.Background(), "grep x /etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "grep: no match", stderr)
}

func TestSSHSession_CommandTimeout(t *testing.T) {
	srv := newSSHTestServer(t, func(string) execResult {
		return execResult{stdout: "late", delay: 2 * time.Second}
	})
	s := connectTestSession(t, srv, func(c *SSHConfig) { c.CommandTimeout = 100 * time.Millisecond })

	_, _, err := s.Run(context.Background(), "sleep 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSSHSession_Upload(t *testing.T) {
	srv := newSSHTestServer(t, func(string) execResult { return execResult{} })
	s := connectTestSession(t, srv, nil)

	content := []byte("#!/bin/bash\necho audited\n")
	require.NoError(t, s.Upload(context.Background(), content, "/audit_script_test.sh"))

	sc, err := sftp.NewClient(s.current())
	require.NoError(t, err)
	defer sc.Close()
	f, err := sc.Open("/audit_script_test.sh")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSSHSession_WrongPassword(t *testing.T) {
	srv := newSSHTestServer(t, func(string) execResult { return execResult{} })
	cfg := srv.config(t)
	cfg.Password = "wrong"

	s, err := NewSSHSession(cfg, nil)
	require.NoError(t, err)
	err = s.Connect(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "wrong")
}

func TestSSHSession_NotConnected(t *testing.T) {
	s, err := NewSSHSession(SSHConfig{Host: "h", Username: "u", Password: "p"}, nil)
	require.NoError(t, err)

	_, _, err = s.Run(context.Background(), "true")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, s.Upload(context.Background(), nil, "/x"), ErrNotConnected)
	assert.NoError(t, s.Disconnect())
	assert.Equal(t, "u@h:22", s.Host())
}

func TestSSHSession_WithBackend(t *testing.T) {
	srv := newSSHTestServer(t, func(cmd string) execResult {
		if strings.Contains(cmd, "warn") {
			return execResult{stdout: "x", stderr: "deprecated option"}
		}
		return execResult{stdout: "PermitRootLogin no\n"}
	})
	s := connectTestSession(t, srv, nil)

	b := NewBackend(nil)
	release, err := b.Install(s)
	require.NoError(t, err)
	defer release()

	ev := b.Execute(context.Background(), "grep PermitRootLogin /etc/ssh/sshd_config")
	assert.Equal(t, 0, ev.Code())
	assert.Equal(t, "PermitRootLogin no", ev.Stdout)

	ev = b.Execute(context.Background(), "warn")
	assert.Equal(t, 1, ev.Code())

	execs, stdins := srv.recorded()
	assert.Equal(t, `sudo -S -p "" grep PermitRootLogin /etc/ssh/sshd_config`, execs[0])
	assert.Equal(t, testPassword+"\n", stdins[0])
}

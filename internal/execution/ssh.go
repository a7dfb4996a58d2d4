package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Remote session defaults.
const (
	DefaultPort           = 22
	DefaultConnectTimeout = 30 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// SSHConfig holds the parameters of a remote session.
type SSHConfig struct {
	Host     string
	Port     int
	Username string

	// Password authenticates the login and answers sudo prompts.
	Password string

	// KeyPath is a private key file used instead of Password.
	KeyPath string

	// KnownHostsPath enables host key verification against an OpenSSH
	// known_hosts file. When empty, any host key is accepted and its
	// fingerprint logged.
	KnownHostsPath string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// Validate checks the config and fills defaults.
func (c *SSHConfig) Validate() error {
	if c.Host == "" {
		return errors.New("ssh host is required")
	}
	if c.Username == "" {
		return errors.New("ssh username is required")
	}
	if (c.Password == "") == (c.KeyPath == "") {
		return ErrAuthMethod
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid ssh port %d", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	return nil
}

// Address returns host:port.
func (c *SSHConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHSession is a Session over golang.org/x/crypto/ssh. Files are uploaded
// with SFTP on the same connection.
type SSHSession struct {
	cfg    SSHConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHSession validates cfg and returns an unconnected session.
func NewSSHSession(cfg SSHConfig, logger *zap.Logger) (*SSHSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSHSession{cfg: cfg, logger: logger.Named("ssh")}, nil
}

// Host implements Session.
func (s *SSHSession) Host() string {
	return s.cfg.Username + "@" + s.cfg.Address()
}

// Connect implements Session.
func (s *SSHSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	auth, method, err := s.authMethod()
	if err != nil {
		return err
	}
	hostKey, err := s.hostKeyCallback()
	if err != nil {
		return err
	}

	addr := s.cfg.Address()
	s.logger.Info("Connecting to remote host",
		zap.String("host", addr),
		zap.String("user", s.cfg.Username),
		zap.String("auth", method))

	config := &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKey,
		Timeout:         s.cfg.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: s.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(s.cfg.ConnectTimeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	s.client = ssh.NewClient(sshConn, chans, reqs)
	s.logger.Info("Connected to remote host", zap.String("host", addr))
	return nil
}

// Disconnect implements Session.
func (s *SSHSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.logger.Info("Disconnected from remote host", zap.String("host", s.cfg.Address()))
	return err
}

// Run implements Session. The command is bounded by CommandTimeout.
func (s *SSHSession) Run(ctx context.Context, command string) (string, string, error) {
	client := s.current()
	if client == nil {
		return "", "", ErrNotConnected
	}

	sess, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer sess.Close()

	wire, elevated := NonInteractiveSudo(command)

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if elevated && s.cfg.Password != "" {
		sess.Stdin = strings.NewReader(s.cfg.Password + "\n")
	}

	s.logger.Debug("Running remote command", zap.String("command", s.redact(command)))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(wire) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		return "", "", fmt.Errorf("command timed out after %s: %w", s.cfg.CommandTimeout, ctx.Err())
	}

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	status := 0
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		status = exitErr.ExitStatus()
	case errors.As(err, &missingErr):
		status = -1
	default:
		return "", "", err
	}

	s.logger.Debug("Remote command finished",
		zap.Int("exit_status", status),
		zap.String("stdout", s.redact(stdout.String())),
		zap.String("stderr", s.redact(stderr.String())))
	return stdout.String(), stderr.String(), nil
}

// Upload implements Session.
func (s *SSHSession) Upload(ctx context.Context, content []byte, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := s.current()
	if client == nil {
		return ErrNotConnected
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("failed to start sftp: %w", err)
	}
	defer sc.Close()

	f, err := sc.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", remotePath, err)
	}

	s.logger.Debug("Uploaded file", zap.String("path", remotePath), zap.Int("bytes", len(content)))
	return nil
}

func (s *SSHSession) current() *ssh.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *SSHSession) redact(text string) string {
	return Redact(text, s.cfg.Password)
}

func (s *SSHSession) authMethod() (ssh.AuthMethod, string, error) {
	if s.cfg.KeyPath == "" {
		return ssh.Password(s.cfg.Password), "password", nil
	}
	pem, err := os.ReadFile(s.cfg.KeyPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read identity file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse identity file %s: %w", s.cfg.KeyPath, err)
	}
	return ssh.PublicKeys(signer), "key", nil
}

func (s *SSHSession) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(s.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		return cb, nil
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		s.logger.Warn("Accepting unverified host key",
			zap.String("hostname", hostname),
			zap.String("remote", remote.String()),
			zap.String("key_type", key.Type()),
			zap.String("fingerprint", ssh.FingerprintSHA256(key)))
		return nil
	}, nil
}

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// AuthType selects the SSH authentication mechanism.
type AuthType string

const (
	AuthKey      AuthType = "key"
	AuthPassword AuthType = "password"
)

// SSHConfig holds everything needed to reach one host.
type SSHConfig struct {
	Host           string
	Port           int
	Username       string
	AuthType       AuthType
	KeyFile        string
	Password       string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func (c *SSHConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Username == "" {
		c.Username = "root"
	}
	if c.AuthType == "" {
		c.AuthType = AuthKey
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 30 * time.Second
	}
}

// SSHClient runs commands on a remote host over one SSH connection.
// It implements Runner.
type SSHClient struct {
	client         *ssh.Client
	addr           string
	commandTimeout time.Duration
}

// Dial connects to the host described by cfg.
func Dial(ctx context.Context, cfg SSHConfig) (*SSHClient, error) {
	cfg.applyDefaults()

	clientConfig, err := buildClientConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build SSH config for %s: %w", cfg.Host, err)
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s: %w", addr, err)
	}

	return &SSHClient{
		client:         ssh.NewClient(sshConn, chans, reqs),
		addr:           addr,
		commandTimeout: cfg.CommandTimeout,
	}, nil
}

func buildClientConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	switch cfg.AuthType {
	case AuthKey:
		if cfg.KeyFile == "" {
			return nil, fmt.Errorf("key auth requires a key file")
		}
		keyData, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))

	case AuthPassword:
		if cfg.Password == "" {
			return nil, fmt.Errorf("password auth requires a password")
		}
		auth = append(auth, ssh.Password(cfg.Password))

	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.AuthType)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}, nil
}

// Run executes a command and returns its combined output. A non-zero exit
// status is not an error: collector commands routinely probe for tools
// that may be absent, and the partial output is still useful.
func (c *SSHClient) Run(ctx context.Context, cmd string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("create session on %s: %w", c.addr, err)
	}
	defer session.Close()

	done := make(chan error, 1)
	var output []byte

	go func() {
		var runErr error
		output, runErr = session.CombinedOutput(cmd)
		done <- runErr
	}()

	select {
	case err := <-done:
		if err != nil {
			if _, ok := err.(*ssh.ExitError); ok {
				return string(output), nil
			}
			return "", fmt.Errorf("command failed on %s: %w", c.addr, err)
		}
		return string(output), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case <-time.After(c.commandTimeout):
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout on %s", c.addr)
	}
}

// Close tears down the SSH connection.
func (c *SSHClient) Close() error {
	return c.client.Close()
}

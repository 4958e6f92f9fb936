// Package tunnel forwards a local TCP port to a database server through an SSH bastion.
//
// A Tunnel lives for one gateway call or one write session. The connection
// descriptor is rewritten to point at the local end before the adapter connects.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultPort is the SSH port used when the tunnel config omits one.
const DefaultPort = 22

// Options tune how a tunnel is opened.
type Options struct {
	// KnownHostsFile verifies the bastion host key. Empty means ~/.ssh/known_hosts.
	// Open fails when no known_hosts file exists unless the tunnel config sets
	// InsecureHostKey.
	KnownHostsFile string

	Logger *slog.Logger
}

// Tunnel is an open local port forward.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	logger   *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open dials the bastion and starts forwarding a random local port to remote (host:port).
func Open(ctx context.Context, cfg core.TunnelConfig, remote string, opts Options) (*Tunnel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(opts.KnownHostsFile, cfg.InsecureHostKey, logger)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}
	if deadline, ok := ctx.Deadline(); ok {
		clientCfg.Timeout = time.Until(deadline)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ssh host %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open local tunnel port: %w", err)
	}

	t := &Tunnel{client: client, listener: ln, remote: remote, logger: logger}
	t.wg.Add(1)
	go t.serve()

	logger.Debug("ssh tunnel opened",
		slog.String("bastion", addr),
		slog.String("remote", remote),
		slog.String("local", ln.Addr().String()))
	return t, nil
}

// LocalAddr returns the 127.0.0.1:port the database driver should connect to.
func (t *Tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

// LocalPort returns the local forwarded port.
func (t *Tunnel) LocalPort() int {
	return t.listener.Addr().(*net.TCPAddr).Port
}

// Rewrite returns a copy of cfg whose host and port point at the local end of the tunnel.
func (t *Tunnel) Rewrite(cfg core.ConnectionConfig) core.ConnectionConfig {
	cfg.Host = "127.0.0.1"
	cfg.Port = t.LocalPort()
	cfg.Tunnel = nil
	return cfg
}

// Close stops accepting, waits for in-flight copies and closes the SSH client.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		lnErr := t.listener.Close()
		clientErr := t.client.Close()
		t.wg.Wait()
		t.closeErr = errors.Join(lnErr, clientErr)
		t.logger.Debug("ssh tunnel closed", slog.String("remote", t.remote))
	})
	return t.closeErr
}

func (t *Tunnel) serve() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			return
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.forward(local)
		}()
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer func() { _ = local.Close() }()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		t.logger.Warn("ssh tunnel dial failed", slog.String("remote", t.remote), slog.String("error", err.Error()))
		return
	}
	defer func() { _ = remote.Close() }()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

func authMethods(cfg core.TunnelConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		var (
			signer ssh.Signer
			err    error
		)
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(cfg.PrivateKey), []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("invalid ssh private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("ssh tunnel requires a password or private key")
	}
	return methods, nil
}

// ErrNoKnownHosts is returned when the bastion host key cannot be verified.
var ErrNoKnownHosts = errors.New("no known_hosts file found; set insecure_host_key to connect without host key verification")

func hostKeyCallback(path string, insecure bool, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cb, err := knownhosts.New(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read known hosts %s: %w", path, err)
			}
			return cb, nil
		} else if explicit {
			return nil, fmt.Errorf("known hosts file %s: %w", path, err)
		}
	}
	if !insecure {
		return nil, ErrNoKnownHosts
	}
	logger.Warn("ssh host key will not be verified", slog.Bool("insecure_host_key", true))
	return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opted in by insecure_host_key
}

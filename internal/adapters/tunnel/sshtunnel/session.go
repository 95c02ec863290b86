package sshtunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey []byte

	// KnownHostsPath is consulted unless HostKeyCallback is set.
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	HostKeyCallback       ssh.HostKeyCallback

	// RemoteHost and RemotePort are resolved on the SSH host.
	RemoteHost string
	RemotePort int

	// LocalAddr defaults to an ephemeral loopback port.
	LocalAddr string
	Timeout   time.Duration
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) remoteAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

func (c Config) localAddr() string {
	if c.LocalAddr == "" {
		return "127.0.0.1:0"
	}
	return c.LocalAddr
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c Config) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if len(c.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(c.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh credentials configured")
	}

	hostKey := c.HostKeyCallback
	switch {
	case hostKey != nil:
	case c.KnownHostsPath != "":
		cb, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKey = cb
	case c.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, errors.New("no host key verification configured")
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.timeout(),
	}, nil
}

// Session is one SSH connection with one local listener forwarding to the
// remote database address.
type Session struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open dials the SSH host, verifies that the remote address is reachable
// through it and starts forwarding a local port. Every failure is a
// *domain.ConnectError; nothing is held after a failed Open.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	logger = resolveLogger(logger)

	clientConfig, err := cfg.clientConfig()
	if err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageTunnel, Cause: domain.CauseConfig, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, tunnelError(err)
	}

	// The handshake takes no context, so bound it with the context deadline
	// and cut it short if the caller goes away.
	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = netConn.SetDeadline(time.Unix(1, 0))
	})
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, cfg.addr(), clientConfig)
	stop()
	if err != nil {
		netConn.Close()
		if ctx.Err() != nil {
			err = errors.Join(err, ctx.Err())
		}
		return nil, tunnelError(err)
	}
	_ = netConn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	probe, err := client.DialContext(ctx, "tcp", cfg.remoteAddr())
	if err != nil {
		client.Close()
		cause := domain.CauseRefused
		if ctx.Err() != nil {
			cause = domain.CauseTimeout
		}
		return nil, &domain.ConnectError{Stage: domain.StageTunnel, Cause: cause, Err: err}
	}
	probe.Close()

	listener, err := net.Listen("tcp", cfg.localAddr())
	if err != nil {
		client.Close()
		return nil, &domain.ConnectError{Stage: domain.StageTunnel, Cause: domain.CauseNetwork, Err: err}
	}

	s := &Session{
		client:   client,
		listener: listener,
		remote:   cfg.remoteAddr(),
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	go s.watch()

	logger.Info("tunnel opened",
		"event", "tunnel_opened",
		"ssh_host", cfg.addr(),
		"local_addr", s.LocalAddr(),
	)
	return s, nil
}

func (s *Session) LocalAddr() string {
	return s.listener.Addr().String()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the listener, drops every forwarded connection and closes the
// SSH client. It is safe on a nil Session and after a previous Close.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		conns := s.conns
		s.conns = nil
		s.mu.Unlock()

		listenerErr := s.listener.Close()
		for c := range conns {
			c.Close()
		}
		clientErr := s.client.Close()
		s.wg.Wait()

		s.closeErr = errors.Join(ignoreClosed(listenerErr), ignoreClosed(clientErr))
		s.logger.Info("tunnel closed", "event", "tunnel_closed", "local_addr", s.listener.Addr().String())
	})
	return s.closeErr
}

func (s *Session) watch() {
	err := s.client.Wait()
	select {
	case <-s.done:
		return
	default:
	}
	s.logger.Warn("tunnel connection lost", "event", "tunnel_lost", "error", err)
	s.Close()
}

func (s *Session) serve() {
	defer s.wg.Done()
	for {
		local, err := s.listener.Accept()
		if err != nil {
			return
		}
		if !s.track(local) {
			local.Close()
			return
		}
		s.wg.Add(1)
		go s.forward(local)
	}
}

func (s *Session) forward(local net.Conn) {
	defer s.wg.Done()
	defer s.untrack(local)

	remote, err := s.client.Dial("tcp", s.remote)
	if err != nil {
		s.logger.Warn("tunnel forward failed", "event", "tunnel_forward_failed", "remote", s.remote, "error", err)
		return
	}
	if !s.track(remote) {
		remote.Close()
		return
	}
	defer s.untrack(remote)

	finished := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		finished <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		finished <- struct{}{}
	}()
	<-finished
	local.Close()
	remote.Close()
	<-finished
}

func (s *Session) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Session) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
}

// Opener opens one Session per call.
type Opener struct {
	Config Config
	Logger *slog.Logger
}

func (o Opener) Open(ctx context.Context) (ports.Tunnel, error) {
	s, err := Open(ctx, o.Config, o.Logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func tunnelError(err error) *domain.ConnectError {
	return &domain.ConnectError{Stage: domain.StageTunnel, Cause: classify(err), Err: err}
}

// classify maps a dial or handshake failure to its cause. Typed errors
// decide first; x/crypto reports client auth failures only as text.
func classify(err error) domain.ConnectCause {
	var netErr net.Error
	var keyErr *knownhosts.KeyError
	var revokedErr *knownhosts.RevokedError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return domain.CauseTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.CauseRefused
	case errors.As(err, &keyErr), errors.As(err, &revokedErr):
		return domain.CauseAuth
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "knownhosts"):
		return domain.CauseAuth
	case strings.Contains(msg, "i/o timeout"):
		return domain.CauseTimeout
	default:
		return domain.CauseNetwork
	}
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

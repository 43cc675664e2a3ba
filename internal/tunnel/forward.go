package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"golang.org/x/crypto/ssh"

	"ignition/internal/config"
	"ignition/internal/logging"
)

// Endpoint fully specifies one SSH local port forward.
type Endpoint struct {
	RemoteHost string
	RemotePort int
	// LocalPort of 0 requests a free ephemeral port, resolved once and then
	// fixed for the tunnel's lifetime.
	LocalPort  int
	SSHHost    string
	SSHUser    string
	SSHKeyFile string
	SSHPort    int
	// PortFile, when set, receives the chosen local port as decimal text so
	// cooperating processes can discover it.
	PortFile string
}

// EndpointFromConfig maps the tunnel configuration section onto an Endpoint.
func EndpointFromConfig(cfg *config.Config) Endpoint {
	return Endpoint{
		RemoteHost: cfg.Tunnel.RemoteHost,
		RemotePort: cfg.Tunnel.RemotePort,
		LocalPort:  cfg.Tunnel.LocalPort,
		SSHHost:    cfg.Tunnel.SSHHost,
		SSHUser:    cfg.Tunnel.SSHUser,
		SSHKeyFile: cfg.Tunnel.SSHKey,
		SSHPort:    cfg.Tunnel.SSHPort,
		PortFile:   cfg.Tunnel.PortFile,
	}
}

// RemoteDialer opens connections through the SSH session. *ssh.Client
// satisfies it.
type RemoteDialer interface {
	Dial(network, addr string) (net.Conn, error)
}

// DialFunc establishes the SSH session for an endpoint and returns the
// channel dialer plus a closer for the session.
type DialFunc func(ep Endpoint) (RemoteDialer, io.Closer, error)

// Forwarder relays connections from a local listener to a remote host:port
// over an SSH session.
type Forwarder struct {
	logger *slog.Logger
	dial   DialFunc
}

// Option adjusts forwarder construction.
type Option func(*Forwarder)

// WithDialer replaces the SSH session dialer.
func WithDialer(dial DialFunc) Option {
	return func(f *Forwarder) { f.dial = dial }
}

// NewForwarder constructs a forwarder.
func NewForwarder(logger *slog.Logger, opts ...Option) *Forwarder {
	f := &Forwarder{
		logger: logging.NewComponentLogger(logger, "tunnel"),
		dial:   dialSSH,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward establishes the port forward and serves it until the context ends.
// SSH authentication and connection errors propagate verbatim; per-connection
// relay errors are logged and never abort the loop.
//
// When an ephemeral port is requested, the probe socket that discovered it is
// held until the SSH session is up and closed just before the tunnel listener
// binds. The window between the two binds is an accepted limitation.
func (f *Forwarder) Forward(ctx context.Context, ep Endpoint) error {
	port := ep.LocalPort
	var probe net.Listener
	if port == 0 {
		var err error
		port, probe, err = allocateLocalPort()
		if err != nil {
			return err
		}
		f.logger.Info("allocated free local port", logging.Int("local_port", port))
	}
	closeProbe := func() {
		if probe != nil {
			_ = probe.Close()
			probe = nil
		}
	}
	defer closeProbe()

	if ep.PortFile != "" {
		if err := os.WriteFile(ep.PortFile, []byte(strconv.Itoa(port)), 0o644); err != nil {
			return fmt.Errorf("write port file %s: %w", ep.PortFile, err)
		}
	}

	dialer, session, err := f.dial(ep)
	if err != nil {
		return err
	}
	defer session.Close()

	closeProbe()
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("bind local port %d: %w", port, err)
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	remoteAddr := net.JoinHostPort(ep.RemoteHost, strconv.Itoa(ep.RemotePort))
	f.logger.Info("forwarding",
		logging.Int("local_port", port),
		logging.String("remote", remoteAddr),
		logging.String("ssh_host", ep.SSHHost),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				f.logger.Info("port forwarding stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go f.relay(conn, dialer, remoteAddr)
	}
}

// relay copies bytes both ways until either side closes. Errors stay local to
// this connection.
func (f *Forwarder) relay(local net.Conn, dialer RemoteDialer, remoteAddr string) {
	defer local.Close()

	remote, err := dialer.Dial("tcp", remoteAddr)
	if err != nil {
		f.logger.Warn("open channel to remote",
			logging.String("remote", remoteAddr),
			logging.Error(err),
		)
		return
	}
	defer remote.Close()

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

// allocateLocalPort binds an ephemeral loopback socket so the OS assigns a
// free port, and returns the listener so the caller can hold the port until
// the tunnel is ready to take over.
func allocateLocalPort() (int, net.Listener, error) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, nil, fmt.Errorf("allocate local port: %w", err)
	}
	addr, ok := probe.Addr().(*net.TCPAddr)
	if !ok {
		_ = probe.Close()
		return 0, nil, fmt.Errorf("unexpected listener address %T", probe.Addr())
	}
	return addr.Port, probe, nil
}

// dialSSH opens the SSH session with key-based authentication. The jump host
// is trusted by configuration; host keys are not pinned.
func dialSSH(ep Endpoint) (RemoteDialer, io.Closer, error) {
	keyPath, err := config.ExpandPath(ep.SSHKeyFile)
	if err != nil {
		return nil, nil, err
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            ep.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(ep.SSHHost, strconv.Itoa(ep.SSHPort)), clientConfig)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

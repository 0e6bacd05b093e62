package simulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Server exposes a Device over raw TCP, the way LAN instruments expose
// SCPI on port 5025: one program message per line, one response line per
// query.
type Server struct {
	device   *Device
	allowed  []*net.IPNet
	log      hclog.Logger
	maxConns int
	idle     time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMaxConnections caps concurrent clients. Zero means no cap.
func WithMaxConnections(n int) ServerOption {
	return func(s *Server) { s.maxConns = n }
}

// WithIdleTimeout drops a client that sends nothing for d.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idle = d }
}

// NewServer returns a server for device. An empty allow list accepts any
// client.
func NewServer(device *Device, allowedCIDRs []string, logger hclog.Logger, opts ...ServerOption) (*Server, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		device: device,
		log:    logger,
		conns:  make(map[net.Conn]struct{}),
	}
	for _, cidr := range allowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		s.allowed = append(s.allowed, network)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Listen binds addr. Call Serve afterwards.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections until Close. It returns nil after Close.
func (s *Server) Serve() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("server is not listening")
	}
	s.log.Info("simulator listening", "addr", l.Addr().String(), "model", s.device.Model())

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		if !s.isAllowed(conn.RemoteAddr()) {
			s.log.Warn("rejected connection", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}
		switch s.track(conn) {
		case trackClosed:
			conn.Close()
			return nil
		case trackFull:
			s.log.Warn("too many connections", "remote", conn.RemoteAddr().String(), "max", s.maxConns)
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.log.Debug("client connected", "remote", remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for {
		if s.idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idle))
		}
		if !scanner.Scan() {
			break
		}
		resp, ok := s.device.Handle(ctx, scanner.Text())
		if !ok {
			continue
		}
		if _, err := w.WriteString(resp + "\n"); err != nil {
			s.log.Debug("write failed", "remote", remote, "error", err)
			return
		}
		if err := w.Flush(); err != nil {
			s.log.Debug("write failed", "remote", remote, "error", err)
			return
		}
	}
	s.log.Debug("client disconnected", "remote", remote)
}

func (s *Server) isAllowed(addr net.Addr) bool {
	if len(s.allowed) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range s.allowed {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

type trackResult int

const (
	tracked trackResult = iota
	trackClosed
	trackFull
)

func (s *Server) track(conn net.Conn) trackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return trackClosed
	}
	if s.maxConns > 0 && len(s.conns) >= s.maxConns {
		return trackFull
	}
	s.conns[conn] = struct{}{}
	return tracked
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// Close stops accepting, drops open connections and waits for their
// handlers to return. The device is left running.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

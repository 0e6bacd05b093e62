package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultTimeout bounds a transaction whose context has no deadline.
const DefaultTimeout = 10 * time.Second

// Socket is a raw SCPI link over TCP.
type Socket struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// DialSocket connects to addr (host:port).
func DialSocket(ctx context.Context, addr string, timeout time.Duration) (*Socket, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewSocket(conn, timeout), nil
}

// NewSocket wraps an established connection.
func NewSocket(conn net.Conn, timeout time.Duration) *Socket {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Socket{conn: conn, r: bufio.NewReader(conn), timeout: timeout}
}

func (s *Socket) Write(ctx context.Context, cmd string) error {
	return s.do(ctx, func() error {
		_, err := s.conn.Write([]byte(cmd + "\n"))
		return err
	})
}

func (s *Socket) Query(ctx context.Context, cmd string) (string, error) {
	var line string
	err := s.do(ctx, func() error {
		if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
			return err
		}
		var err error
		line, err = s.r.ReadString('\n')
		return err
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

// do runs fn under the transaction deadline. Cancelling ctx unblocks a
// pending read by expiring the deadline.
func (s *Socket) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := fn()
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

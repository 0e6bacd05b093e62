package instrument

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/vik-s/pymeasure/internal/property"
)

// Conn is a message-based link to one instrument. Query writes a command
// and reads one response line; the returned line excludes the terminator.
type Conn interface {
	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
	Close() error
}

// Transaction describes one completed exchange.
type Transaction struct {
	Instrument string
	Command    string
	Response   string
	Query      bool
	Duration   time.Duration
	Err        error
}

// Transcript records transactions, typically to an audit log.
type Transcript interface {
	Record(tx Transaction)
}

// Observer is notified after every transaction, typically for metrics.
type Observer interface {
	Observe(tx Transaction)
}

// Instrument is a SCPI session over a Conn.
type Instrument struct {
	name       string
	conn       Conn
	logger     hclog.Logger
	limiter    *rate.Limiter
	transcript Transcript
	observer   Observer
}

// Option configures an Instrument.
type Option func(*Instrument)

// WithLogger sets the session logger.
func WithLogger(l hclog.Logger) Option {
	return func(i *Instrument) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithPacing enforces a minimum interval between commands. Some GPIB
// instruments drop commands that arrive back to back.
func WithPacing(interval time.Duration) Option {
	return func(i *Instrument) {
		if interval > 0 {
			i.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithTranscript records every transaction.
func WithTranscript(t Transcript) Option {
	return func(i *Instrument) { i.transcript = t }
}

// WithObserver reports every transaction.
func WithObserver(o Observer) Option {
	return func(i *Instrument) { i.observer = o }
}

// New returns an Instrument named name that talks over conn.
func New(name string, conn Conn, opts ...Option) *Instrument {
	i := &Instrument{
		name:   name,
		conn:   conn,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("instrument", name)
	return i
}

var (
	_ property.Session    = (*Instrument)(nil)
	_ property.ErrorQueue = (*Instrument)(nil)
)

// Name returns the instrument's bench name.
func (i *Instrument) Name() string { return i.name }

// Logger returns the session logger.
func (i *Instrument) Logger() hclog.Logger { return i.logger }

// Ask sends cmd and returns the response with trailing line endings removed.
func (i *Instrument) Ask(ctx context.Context, cmd string) (string, error) {
	if err := i.pace(ctx); err != nil {
		return "", &property.CommunicationError{Command: cmd, Err: err}
	}

	start := time.Now()
	resp, err := i.conn.Query(ctx, cmd)
	resp = strings.TrimRight(resp, "\r\n")
	if err != nil {
		err = wrap(cmd, err)
	}
	i.done(Transaction{Command: cmd, Response: resp, Query: true, Duration: time.Since(start), Err: err})
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Write sends cmd without reading a response.
func (i *Instrument) Write(ctx context.Context, cmd string) error {
	if err := i.pace(ctx); err != nil {
		return &property.CommunicationError{Command: cmd, Err: err}
	}

	start := time.Now()
	err := i.conn.Write(ctx, cmd)
	if err != nil {
		err = wrap(cmd, err)
	}
	i.done(Transaction{Command: cmd, Duration: time.Since(start), Err: err})
	return err
}

// Close closes the underlying connection.
func (i *Instrument) Close() error {
	return i.conn.Close()
}

func (i *Instrument) pace(ctx context.Context) error {
	if i.limiter == nil {
		return ctx.Err()
	}
	return i.limiter.Wait(ctx)
}

func (i *Instrument) done(tx Transaction) {
	tx.Instrument = i.name
	if tx.Err != nil {
		i.logger.Debug("transaction failed", "command", tx.Command, "error", tx.Err)
	} else {
		i.logger.Trace("transaction", "command", tx.Command, "response", tx.Response, "duration", tx.Duration)
	}
	if i.transcript != nil {
		i.transcript.Record(tx)
	}
	if i.observer != nil {
		i.observer.Observe(tx)
	}
}

// wrap classifies a transport error unless the Conn already did.
func wrap(cmd string, err error) error {
	if errors.Is(err, property.ErrCommunication) || errors.Is(err, property.ErrProtocol) {
		return err
	}
	return &property.CommunicationError{Command: cmd, Err: err}
}

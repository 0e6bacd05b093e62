package property

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"
)

// Accessor is the type-erased view of a bound property, used where
// properties are addressed by name.
type Accessor interface {
	Name() string
	Readable() bool
	Writable() bool
	GetText(ctx context.Context) (string, error)
	SetText(ctx context.Context, text string) error
	Describe() Description
}

// Property is a Spec bound to a session.
type Property[T comparable] struct {
	name    string
	spec    Spec[T]
	session Session
	queue   ErrorQueue
	units   Units
	logger  hclog.Logger
	err     error
}

var _ Accessor = (*Property[string])(nil)

func (p *Property[T]) Name() string   { return p.name }
func (p *Property[T]) Readable() bool { return p.spec.Readable() }
func (p *Property[T]) Writable() bool { return p.spec.Writable() }

func (p *Property[T]) Describe() Description { return p.spec.describe(p.name) }

// Get queries the instrument and returns the decoded value.
func (p *Property[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if p.err != nil {
		return zero, p.err
	}
	if !p.spec.Readable() {
		return zero, ErrNotReadable
	}

	cmd := FormatQuery(p.spec.query)
	raw, err := p.session.Ask(ctx, cmd)
	if err != nil {
		return zero, communication(cmd, err)
	}
	p.logger.Trace("get", "command", cmd, "response", raw)

	if p.spec.checkGet {
		if err := p.check(ctx, cmd); err != nil {
			return zero, err
		}
	}
	return p.spec.decode(raw)
}

// Set validates v and writes it. A rejected value performs no I/O.
func (p *Property[T]) Set(ctx context.Context, v T) error {
	if p.err != nil {
		return p.err
	}
	if !p.spec.Writable() {
		return ErrNotWritable
	}

	cmd, err := p.spec.encode(v, p.units)
	if err != nil {
		p.logger.Debug("rejected", "value", v, "error", err)
		return err
	}
	if err := p.session.Write(ctx, cmd); err != nil {
		return communication(cmd, err)
	}
	p.logger.Trace("set", "command", cmd)

	if p.spec.checkSet {
		return p.check(ctx, cmd)
	}
	return nil
}

// GetText returns the value in its unmapped text form.
func (p *Property[T]) GetText(ctx context.Context) (string, error) {
	v, err := p.Get(ctx)
	if err != nil {
		return "", err
	}
	return p.spec.codec.Format(v), nil
}

// SetText parses text as a logical value and sets it.
func (p *Property[T]) SetText(ctx context.Context, text string) error {
	if p.err != nil {
		return p.err
	}
	if !p.spec.Writable() {
		return ErrNotWritable
	}
	v, err := p.spec.codec.Parse(text)
	if err != nil {
		return invalid(text, "cannot parse")
	}
	return p.Set(ctx, v)
}

func (p *Property[T]) check(ctx context.Context, cmd string) error {
	err := CheckErrors(ctx, p.queue, cmd)
	if err == nil {
		return nil
	}
	var ie *InstrumentError
	if errors.As(err, &ie) {
		p.logger.Warn("instrument error", "command", cmd, "code", ie.Code, "message", ie.Message)
		return err
	}
	return communication(cmd, err)
}

// communication wraps a session failure unless it is already classified.
func communication(cmd string, err error) error {
	for _, class := range []error{ErrCommunication, ErrProtocol, ErrInstrument, ErrInvalidValue} {
		if errors.Is(err, class) {
			return err
		}
	}
	return &CommunicationError{Command: cmd, Err: err}
}

package property

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Binder attaches specs to one session. It records the first bind failure
// so a driver constructor can bind its whole table and check once.
type Binder struct {
	session Session
	queue   ErrorQueue
	units   Units
	logger  hclog.Logger

	names []string
	all   map[string]Accessor
	err   error
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithUnits fixes the unit suffixes for every property bound afterwards.
func WithUnits(u Units) BinderOption {
	return func(b *Binder) { b.units = u }
}

// WithLogger sets the logger properties trace their commands to.
func WithLogger(l hclog.Logger) BinderOption {
	return func(b *Binder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBinder returns a binder for session.
func NewBinder(session Session, opts ...BinderOption) *Binder {
	b := &Binder{
		session: session,
		units:   DefaultUnits(),
		logger:  hclog.NewNullLogger(),
		all:     make(map[string]Accessor),
	}
	if q, ok := session.(ErrorQueue); ok {
		b.queue = q
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Err returns the first bind failure, if any.
func (b *Binder) Err() error { return b.err }

// Units returns the units properties are bound with.
func (b *Binder) Units() Units { return b.units }

// Lookup returns the bound property with the given name.
func (b *Binder) Lookup(name string) (Accessor, bool) {
	a, ok := b.all[name]
	return a, ok
}

// Names returns the bound property names in bind order.
func (b *Binder) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

func (b *Binder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Bind validates s and attaches it to the binder's session. A property that
// failed to bind still exists; its accessors return the bind error.
func Bind[T comparable](b *Binder, name string, s Spec[T]) *Property[T] {
	p := &Property[T]{
		name:    name,
		spec:    s,
		session: b.session,
		queue:   b.queue,
		units:   b.units,
		logger:  b.logger.Named(name),
	}

	err := s.Check()
	if err == nil && (s.checkGet || s.checkSet) && b.queue == nil {
		err = errors.New("error checks need a session with an error queue")
	}
	if err == nil && b.session == nil {
		err = errors.New("no session")
	}
	if _, dup := b.all[name]; dup {
		err = errors.Join(err, errors.New("bound twice"))
	}
	if err != nil {
		p.err = fmt.Errorf("bind %s: %w", name, err)
		b.fail(p.err)
		return p
	}

	b.names = append(b.names, name)
	b.all[name] = p
	return p
}

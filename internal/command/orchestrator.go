package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vik-s/pymeasure/internal/bench"
	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/telemetry"
)

// ErrNotFound indicates an unknown property name.
var ErrNotFound = errors.New("NOT_FOUND")

// ErrInvalidParameter indicates a structurally invalid request.
var ErrInvalidParameter = errors.New("BAD_REQUEST")

// DefaultTimeout applies when the orchestrator is built without one.
const DefaultTimeout = 10 * time.Second

// AuditLogger writes one record per control action.
type AuditLogger interface {
	LogControlAction(ctx context.Context, instrumentName, action string, params map[string]any, err error, latency time.Duration)
}

// OperationObserver counts operations, typically for metrics.
type OperationObserver interface {
	ObserveOperation(instrumentName, operation string, err error)
}

// Notifier receives an event after every state-changing operation.
type Notifier interface {
	Notify(instrumentName, eventType string, data map[string]interface{})
}

// Orchestrator executes named operations on bench instruments.
type Orchestrator struct {
	bench   *bench.Manager
	timeout time.Duration
	audit   AuditLogger
	metrics OperationObserver
	events  Notifier
	logger  hclog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAudit records every control action.
func WithAudit(a AuditLogger) Option {
	return func(o *Orchestrator) { o.audit = a }
}

// WithMetrics counts every operation.
func WithMetrics(m OperationObserver) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithNotifier publishes property changes, resets and instrument faults.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.events = n }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator returns an orchestrator over b. timeout bounds every
// operation, including the wait for a busy instrument.
func NewOrchestrator(b *bench.Manager, timeout time.Duration, opts ...Option) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	o := &Orchestrator{
		bench:   b,
		timeout: timeout,
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Bench returns the instrument inventory.
func (o *Orchestrator) Bench() *bench.Manager { return o.bench }

// Resolve maps "" to the active instrument.
func (o *Orchestrator) Resolve(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if active := o.bench.Active(); active != "" {
		return active, nil
	}
	return "", fmt.Errorf("%w: no active instrument", bench.ErrNotFound)
}

// Describe lists the properties of an instrument.
func (o *Orchestrator) Describe(name string) ([]property.Description, error) {
	name, err := o.Resolve(name)
	if err != nil {
		return nil, err
	}
	props, err := o.bench.Properties(name)
	if err != nil {
		return nil, err
	}
	out := make([]property.Description, 0, len(props.Names()))
	for _, n := range props.Names() {
		a, _ := props.Lookup(n)
		out = append(out, a.Describe())
	}
	return out, nil
}

// Get reads a property and returns its value as text.
func (o *Orchestrator) Get(ctx context.Context, name, prop string) (string, error) {
	var value string
	err := o.run(ctx, name, "get", map[string]any{"property": prop}, func(ctx context.Context, d instrument.Driver) error {
		a, err := lookup(d, prop)
		if err != nil {
			return err
		}
		value, err = a.GetText(ctx)
		return err
	})
	return value, err
}

// Set writes a property from its text form.
func (o *Orchestrator) Set(ctx context.Context, name, prop, value string) error {
	params := map[string]any{"property": prop, "value": value}
	return o.run(ctx, name, "set", params, func(ctx context.Context, d instrument.Driver) error {
		a, err := lookup(d, prop)
		if err != nil {
			return err
		}
		return a.SetText(ctx, value)
	})
}

// Identify queries the instrument identity.
func (o *Orchestrator) Identify(ctx context.Context, name string) (instrument.Identity, error) {
	name, err := o.Resolve(name)
	if err != nil {
		return instrument.Identity{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	id, err := o.bench.Identify(ctx, name)
	o.record(ctx, name, "identify", nil, err, time.Since(start))
	return id, err
}

// Errors drains the instrument's error queue.
func (o *Orchestrator) Errors(ctx context.Context, name string) ([]property.InstrumentError, error) {
	var errs []property.InstrumentError
	err := o.run(ctx, name, "errors", nil, func(ctx context.Context, d instrument.Driver) error {
		var err error
		errs, err = d.Session().DrainErrors(ctx)
		return err
	})
	return errs, err
}

// Reset restores the power-on state and clears the status registers.
func (o *Orchestrator) Reset(ctx context.Context, name string) error {
	return o.run(ctx, name, "reset", nil, func(ctx context.Context, d instrument.Driver) error {
		if err := d.Session().Reset(ctx); err != nil {
			return err
		}
		return d.Session().ClearStatus(ctx)
	})
}

func (o *Orchestrator) run(ctx context.Context, name, action string, params map[string]any, fn func(context.Context, instrument.Driver) error) error {
	name, err := o.Resolve(name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	err = o.bench.Do(ctx, name, fn)
	latency := time.Since(start)

	o.record(ctx, name, action, params, err, latency)
	o.notify(name, action, params, err)
	if err != nil {
		o.logger.Debug("operation failed", "instrument", name, "action", action, "error", err)
	}
	return err
}

func (o *Orchestrator) record(ctx context.Context, name, action string, params map[string]any, err error, latency time.Duration) {
	if o.audit != nil {
		o.audit.LogControlAction(ctx, name, action, params, err, latency)
	}
	if o.metrics != nil {
		o.metrics.ObserveOperation(name, action, err)
	}
}

func (o *Orchestrator) notify(name, action string, params map[string]any, err error) {
	if o.events == nil {
		return
	}
	var ie *property.InstrumentError
	switch {
	case errors.As(err, &ie):
		o.events.Notify(name, telemetry.EventFault, map[string]interface{}{
			"action":  action,
			"code":    ie.Code,
			"class":   string(instrument.Classify(ie.Code)),
			"message": ie.Message,
			"command": ie.Command,
		})
	case err != nil:
	case action == "set":
		o.events.Notify(name, telemetry.EventProperty, params)
	case action == "reset":
		o.events.Notify(name, telemetry.EventReset, nil)
	}
}

func lookup(d instrument.Driver, prop string) (property.Accessor, error) {
	if prop == "" {
		return nil, fmt.Errorf("%w: property name is required", ErrInvalidParameter)
	}
	a, ok := d.Properties().Lookup(prop)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no property %q", ErrNotFound, d.Model(), prop)
	}
	return a, nil
}

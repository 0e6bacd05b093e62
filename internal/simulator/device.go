package simulator

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// maxQueue is the error queue depth. The last slot is replaced by a
// queue-overflow entry when it fills up.
const maxQueue = 10

type request struct {
	line  string
	reply chan response
}

type response struct {
	out string
	ok  bool
}

// Device is a simulated instrument. Program messages are executed in
// arrival order by a single worker.
type Device struct {
	profile *Profile
	headers map[string]*Header
	log     hclog.Logger
	latency time.Duration

	mu     sync.Mutex
	values map[string]string
	errs   []fault

	requests  chan request
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger.
func WithLogger(l hclog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithLatency delays every program message by dur.
func WithLatency(dur time.Duration) Option {
	return func(d *Device) { d.latency = dur }
}

// New starts a device in its reset state.
func New(p *Profile, opts ...Option) *Device {
	d := &Device{
		profile:  p,
		headers:  make(map[string]*Header),
		log:      hclog.NewNullLogger(),
		requests: make(chan request, 16),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	for i := range p.Headers {
		h := &p.Headers[i]
		d.headers[normalize(h.Name)] = h
		for _, a := range h.Aliases {
			d.headers[normalize(a)] = h
		}
	}
	d.reset()

	d.wg.Add(1)
	go d.worker()
	return d
}

// Model returns the profile's model name.
func (d *Device) Model() string { return d.profile.Model }

// Handle executes one program message. ok is false when the message
// produced no output or the device is closed.
func (d *Device) Handle(ctx context.Context, line string) (string, bool) {
	req := request{line: line, reply: make(chan response, 1)}
	select {
	case d.requests <- req:
	case <-d.stop:
		return "", false
	case <-ctx.Done():
		return "", false
	}
	select {
	case r := <-req.reply:
		return r.out, r.ok
	case <-d.stop:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// Value returns the stored value of header, in the form a query returns it.
func (d *Device) Value(header string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.headers[normalize(header)]
	if !ok {
		return "", false
	}
	v, ok := d.values[normalize(h.Name)]
	return v, ok
}

// SetValue overrides a stored value without validation. Used to stage
// readings.
func (d *Device) SetValue(header, value string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.headers[normalize(header)]
	if !ok {
		return false
	}
	d.values[normalize(h.Name)] = value
	return true
}

// PushError queues an instrument error as if a command had failed.
func (d *Device) PushError(code int, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.push(&fault{code, message})
}

// Pending returns the number of queued errors.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errs)
}

// Close stops the worker. Pending and later messages get no output.
func (d *Device) Close() error {
	d.closeOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
	return nil
}

func (d *Device) worker() {
	defer d.wg.Done()
	for {
		select {
		case req := <-d.requests:
			if d.latency > 0 {
				time.Sleep(d.latency)
			}
			out, ok := d.execute(req.line)
			req.reply <- response{out, ok}
		case <-d.stop:
			return
		}
	}
}

func (d *Device) execute(line string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var outputs []string
	for _, unit := range strings.Split(line, ";") {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		header, arg, _ := strings.Cut(unit, " ")
		arg = strings.TrimSpace(arg)

		out, ok, f := d.unit(header, arg)
		if f != nil {
			d.log.Debug("command rejected", "model", d.profile.Model, "command", unit, "code", f.code)
			d.push(f)
			continue
		}
		d.log.Trace("command", "model", d.profile.Model, "command", unit)
		if ok {
			outputs = append(outputs, out)
		}
	}
	if len(outputs) == 0 {
		return "", false
	}
	return strings.Join(outputs, ";"), true
}

// unit executes one message unit.
func (d *Device) unit(header, arg string) (string, bool, *fault) {
	query := strings.HasSuffix(header, "?")
	key := normalize(strings.TrimSuffix(header, "?"))

	switch key {
	case "*IDN":
		return d.common(query, arg, d.profile.Identity)
	case "*OPT":
		opts := "0"
		if len(d.profile.Options) > 0 {
			opts = strings.Join(d.profile.Options, ",")
		}
		return d.common(query, arg, opts)
	case "*OPC":
		if query {
			return "1", true, nil
		}
		return "", false, nil
	case "*ESR", "*STB":
		return d.common(query, arg, "0")
	case "*RST":
		d.reset()
		return "", false, nil
	case "*CLS":
		d.errs = nil
		return "", false, nil
	case "*WAI":
		return "", false, nil
	case "SYST:ERR", "SYST:ERR:NEXT":
		if !query {
			return "", false, faultUndefinedHeader
		}
		return d.pop(), true, nil
	}

	h, ok := d.headers[key]
	if !ok {
		return "", false, faultUndefinedHeader
	}
	stored := normalize(h.Name)

	if query {
		if h.Kind == KindAction {
			return "", false, faultUndefinedHeader
		}
		if arg != "" {
			return "", false, faultParamNotAllowed
		}
		return d.values[stored], true, nil
	}

	switch h.Kind {
	case KindReading:
		return "", false, faultUndefinedHeader
	case KindAction:
		if arg != "" {
			return "", false, faultParamNotAllowed
		}
		return "", false, nil
	}
	if arg == "" {
		return "", false, faultMissingParameter
	}
	v, f := h.parse(arg)
	if f != nil {
		return "", false, f
	}
	d.values[stored] = v
	return "", false, nil
}

// common answers a query-only common command.
func (d *Device) common(query bool, arg, out string) (string, bool, *fault) {
	if !query {
		return "", false, faultUndefinedHeader
	}
	if arg != "" {
		return "", false, faultParamNotAllowed
	}
	return out, true, nil
}

func (d *Device) reset() {
	d.values = make(map[string]string, len(d.profile.Headers))
	for i := range d.profile.Headers {
		h := &d.profile.Headers[i]
		if h.Kind == KindAction {
			continue
		}
		v := h.Default
		if parsed, f := h.parse(v); f == nil {
			v = parsed
		}
		d.values[normalize(h.Name)] = v
	}
}

func (d *Device) push(f *fault) {
	if len(d.errs) >= maxQueue {
		d.errs[maxQueue-1] = faultQueueOverflow
		return
	}
	d.errs = append(d.errs, *f)
}

func (d *Device) pop() string {
	if len(d.errs) == 0 {
		return `0,"No error"`
	}
	f := d.errs[0]
	d.errs = d.errs[1:]
	return strconv.Itoa(f.code) + `,"` + f.message + `"`
}

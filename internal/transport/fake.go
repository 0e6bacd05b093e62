package transport

import (
	"context"
	"sync"
)

// Fake is a scripted link for tests. Queries are answered from per-command
// scripts; the last scripted answer for a command repeats.
type Fake struct {
	mu      sync.Mutex
	scripts map[string][]string
	sent    []string
	fail    map[string]error
	closed  bool
}

// NewFake returns a fake answering each query in responses.
func NewFake(responses map[string]string) *Fake {
	f := &Fake{scripts: make(map[string][]string), fail: make(map[string]error)}
	for cmd, resp := range responses {
		f.scripts[cmd] = []string{resp}
	}
	return f
}

// Script queues answers for cmd, replacing any earlier script.
func (f *Fake) Script(cmd string, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[cmd] = append([]string(nil), responses...)
}

// SimulateError makes every transaction for cmd fail with err. An empty
// cmd fails every transaction. A nil err clears the fault.
func (f *Fake) SimulateError(cmd string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, cmd)
		return
	}
	f.fail[cmd] = err
}

// Sent returns every command received so far.
func (f *Fake) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// Reset forgets the sent log.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Write(ctx context.Context, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(ctx, cmd)
}

func (f *Fake) Query(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx, cmd); err != nil {
		return "", err
	}
	script := f.scripts[cmd]
	switch len(script) {
	case 0:
		return "", ErrNoResponse
	case 1:
		return script[0], nil
	}
	f.scripts[cmd] = script[1:]
	return script[0], nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fake) record(ctx context.Context, cmd string) error {
	if f.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sent = append(f.sent, cmd)
	if err, ok := f.fail[cmd]; ok {
		return err
	}
	if err, ok := f.fail[""]; ok {
		return err
	}
	return nil
}

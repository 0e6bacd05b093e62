package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
)

// ErrNotFound is returned for an unknown instrument name.
var ErrNotFound = errors.New("instrument not found")

// Status values.
const (
	StatusUnknown = "unknown"
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Instrument is the inventory view of one bench instrument.
type Instrument struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Resource   string    `json:"resource"`
	Status     string    `json:"status"`
	Identity   string    `json:"identity,omitempty"`
	Properties []string  `json:"properties"`
	LastSeen   time.Time `json:"lastSeen,omitempty"`
}

// List is the inventory in declaration order.
type List struct {
	Active string       `json:"active"`
	Items  []Instrument `json:"items"`
}

type entry struct {
	info    Instrument
	driver  instrument.Driver
	closers []io.Closer
	// sem is a one-slot semaphore so waiting callers can give up on
	// context cancellation.
	sem chan struct{}
}

// Manager owns the open drivers.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	active  string
	logger  hclog.Logger
}

// NewManager returns an empty inventory.
func NewManager(logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Add registers an open driver under name. closers are closed with the
// driver's session, after it. The first instrument added becomes active.
func (m *Manager) Add(name, resource string, d instrument.Driver, closers ...io.Closer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[name]; exists {
		return fmt.Errorf("instrument %s already registered", name)
	}
	m.entries[name] = &entry{
		info: Instrument{
			Name:       name,
			Model:      d.Model(),
			Resource:   resource,
			Status:     StatusUnknown,
			Properties: d.Properties().Names(),
		},
		driver:  d,
		closers: closers,
		sem:     make(chan struct{}, 1),
	}
	m.order = append(m.order, name)
	if m.active == "" {
		m.active = name
	}
	m.logger.Debug("instrument registered", "instrument", name, "model", d.Model(), "resource", resource)
	return nil
}

// SetActive selects the default instrument.
func (m *Manager) SetActive(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	m.active = name
	return nil
}

// Active returns the default instrument name, or "" when the bench is empty.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Len returns the number of registered instruments.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// List returns the inventory.
func (m *Manager) List() *List {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Instrument, 0, len(m.order))
	for _, name := range m.order {
		items = append(items, m.entries[name].info)
	}
	return &List{Active: m.active, Items: items}
}

// Get returns one inventory entry.
func (m *Manager) Get(name string) (Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.info, nil
}

// Properties returns the property table of the named instrument. The table
// is immutable once bound, so no exclusive access is taken.
func (m *Manager) Properties(name string) (*property.Binder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.driver.Properties(), nil
}

// Do runs fn with exclusive use of the named instrument. It gives up with
// ctx.Err() if the instrument stays busy until ctx is done.
func (m *Manager) Do(ctx context.Context, name string, fn func(ctx context.Context, d instrument.Driver) error) error {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	// Status follows the outcome: a link failure marks the instrument
	// offline, an answer marks it online. Errors raised before any bus
	// traffic leave it as it was.
	err := fn(ctx, e.driver)
	m.touch(name, err)
	return err
}

// Identify queries *IDN? and records the result and the link status.
func (m *Manager) Identify(ctx context.Context, name string) (instrument.Identity, error) {
	var id instrument.Identity
	err := m.Do(ctx, name, func(ctx context.Context, d instrument.Driver) error {
		var err error
		id, err = d.Session().ID(ctx)
		return err
	})
	if err != nil {
		return id, err
	}

	m.mu.Lock()
	if e, ok := m.entries[name]; ok {
		e.info.Identity = id.String()
	}
	m.mu.Unlock()
	return id, nil
}

// IdentifyAll identifies every instrument and logs the ones that fail. A
// failed instrument stays registered as offline.
func (m *Manager) IdentifyAll(ctx context.Context, timeout time.Duration) {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, name := range names {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		id, err := m.Identify(ctx, name)
		cancel()
		if err != nil {
			m.logger.Warn("instrument did not identify", "instrument", name, "error", err)
			continue
		}
		m.logger.Info("instrument online", "instrument", name, "identity", id.String())
	}
}

// Remove closes and forgets an instrument.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.entries, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == name {
		m.active = ""
		if len(m.order) > 0 {
			m.active = m.order[0]
		}
	}
	m.mu.Unlock()

	return e.close()
}

// Close closes every instrument.
func (m *Manager) Close() error {
	m.mu.Lock()
	entries := m.entries
	order := m.order
	m.entries = make(map[string]*entry)
	m.order = nil
	m.active = ""
	m.mu.Unlock()

	var errs []error
	for _, name := range order {
		if err := entries[name].close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered names sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) touch(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return
	}
	switch {
	case errors.Is(err, property.ErrCommunication):
		e.info.Status = StatusOffline
	case err == nil, errors.Is(err, property.ErrInstrument), errors.Is(err, property.ErrProtocol):
		// The instrument answered.
		e.info.Status = StatusOnline
		e.info.LastSeen = time.Now()
	}
}

func (e *entry) close() error {
	errs := []error{e.driver.Session().Close()}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

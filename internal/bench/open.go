package bench

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/vik-s/pymeasure/internal/config"
	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/instruments"
	"github.com/vik-s/pymeasure/internal/simulator"
	"github.com/vik-s/pymeasure/internal/transport"
)

// Opener turns instrument declarations into bound drivers.
type Opener struct {
	GPIB       transport.GPIBConfig
	Logger     hclog.Logger
	Transcript instrument.Transcript
	Observer   instrument.Observer
}

// Open connects to the resource in ic and binds the model's driver. The
// returned closers release resources beyond the session itself, such as
// a simulated device.
func (o *Opener) Open(ctx context.Context, ic config.InstrumentConfig) (instrument.Driver, []io.Closer, error) {
	logger := o.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named(ic.Name)

	res, err := transport.ParseResource(ic.Resource)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := instruments.Lookup(ic.Model); !ok {
		return nil, nil, fmt.Errorf("%w: %s", instruments.ErrUnknownModel, ic.Model)
	}

	var (
		conn    instrument.Conn
		closers []io.Closer
	)
	switch res.Kind {
	case transport.KindSocket:
		timeout := ic.Timeout
		if timeout == 0 {
			timeout = transport.DefaultTimeout
		}
		conn, err = transport.DialSocket(ctx, res.Addr(), timeout)
	case transport.KindGPIB:
		conn, err = transport.OpenGPIB(o.GPIB, res.Address, res.Secondary)
	case transport.KindSim:
		var profile *simulator.Profile
		profile, err = simulator.LoadProfile(res.Model)
		if err == nil {
			dev := simulator.New(profile, simulator.WithLogger(logger.Named("sim")))
			conn = transport.NewLoopback(dev)
			closers = append(closers, dev)
		}
	default:
		err = fmt.Errorf("unsupported resource kind %s", res.Kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s (%s): %w", ic.Name, res, err)
	}

	opts := []instrument.Option{
		instrument.WithLogger(logger),
		instrument.WithPacing(ic.Pacing),
	}
	if o.Transcript != nil {
		opts = append(opts, instrument.WithTranscript(o.Transcript))
	}
	if o.Observer != nil {
		opts = append(opts, instrument.WithObserver(o.Observer))
	}
	inst := instrument.New(ic.Name, conn, opts...)

	d, err := instruments.Open(ic.Model, inst, ic.Units)
	if err != nil {
		inst.Close()
		for _, c := range closers {
			c.Close()
		}
		return nil, nil, err
	}
	return d, closers, nil
}

// Load opens every declared instrument into a new Manager. On failure the
// instruments opened so far are closed again.
func Load(ctx context.Context, instrumentsCfg []config.InstrumentConfig, o *Opener) (*Manager, error) {
	m := NewManager(o.Logger)
	for _, ic := range instrumentsCfg {
		d, closers, err := o.Open(ctx, ic)
		if err != nil {
			m.Close()
			return nil, err
		}
		if err := m.Add(ic.Name, ic.Resource, d, closers...); err != nil {
			(&entry{driver: d, closers: closers}).close()
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vik-s/pymeasure/internal/bench"
	"github.com/vik-s/pymeasure/internal/config"
	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/telemetry"
)

type auditRecord struct {
	instrument string
	action     string
	params     map[string]any
	err        error
}

type recorder struct {
	mu      sync.Mutex
	records []auditRecord
	ops     []string
}

func (r *recorder) LogControlAction(_ context.Context, instrumentName, action string, params map[string]any, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, auditRecord{instrumentName, action, params, err})
}

func (r *recorder) ObserveOperation(instrumentName, operation string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, instrumentName+"/"+operation)
}

func newOrchestrator(t *testing.T) (*Orchestrator, *recorder) {
	t.Helper()
	b, err := bench.Load(context.Background(), []config.InstrumentConfig{
		{Name: "sa", Model: "rs-fsq", Resource: "SIM::rs-fsq", Units: property.DefaultUnits()},
		{Name: "sg", Model: "rs-smb100a", Resource: "SIM::rs-smb100a", Units: property.DefaultUnits()},
	}, &bench.Opener{})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	rec := &recorder{}
	return NewOrchestrator(b, time.Second, WithAudit(rec), WithMetrics(rec)), rec
}

func TestGetSetByName(t *testing.T) {
	o, rec := newOrchestrator(t)
	ctx := context.Background()

	v, err := o.Get(ctx, "sa", "sweep_points")
	require.NoError(t, err)
	assert.Equal(t, "625", v)

	require.NoError(t, o.Set(ctx, "sa", "sweep_points", "10"))
	v, err = o.Get(ctx, "sa", "sweep_points")
	require.NoError(t, err)
	assert.Equal(t, "155", v)

	require.NoError(t, o.Set(ctx, "", "averaging", "ON"))
	v, err = o.Get(ctx, "", "averaging")
	require.NoError(t, err)
	assert.Equal(t, "ON", v)

	require.Len(t, rec.records, 5)
	assert.Equal(t, "set", rec.records[1].action)
	assert.Equal(t, "10", rec.records[1].params["value"])
	assert.Equal(t, "sa/get", rec.ops[0])
}

func TestErrorsAreClassified(t *testing.T) {
	o, rec := newOrchestrator(t)
	ctx := context.Background()

	err := o.Set(ctx, "sg", "power_level", "45")
	var ie *property.InstrumentError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, -222, ie.Code)
	assert.Equal(t, err, rec.records[0].err)

	assert.ErrorIs(t, o.Set(ctx, "sa", "sweep_points", "many"), property.ErrInvalidValue)
	assert.ErrorIs(t, o.Set(ctx, "sa", "frequency_mode", "CW"), property.ErrInvalidValue)
	assert.ErrorIs(t, o.Set(ctx, "sa", "nope", "1"), ErrNotFound)
	assert.ErrorIs(t, o.Set(ctx, "sa", "", "1"), ErrInvalidParameter)
	assert.ErrorIs(t, o.Set(ctx, "xx", "span", "1"), bench.ErrNotFound)

	_, err = o.Get(ctx, "sg", "output")
	assert.ErrorIs(t, err, property.ErrNotReadable)
}

func TestDrainErrors(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.Set(ctx, "sa", "display_update", "ON"))
	err := o.Bench().Do(ctx, "sa", func(ctx context.Context, d instrument.Driver) error {
		return d.Session().Write(ctx, "BOGUS 1")
	})
	require.NoError(t, err)

	errs, err := o.Errors(ctx, "sa")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, -113, errs[0].Code)

	errs, err = o.Errors(ctx, "sa")
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestIdentifyResetDescribe(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	id, err := o.Identify(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "FSQ-26", id.Model)

	require.NoError(t, o.Set(ctx, "sg", "power_level", "-5"))
	require.NoError(t, o.Reset(ctx, "sg"))
	v, err := o.Get(ctx, "sg", "power_level")
	require.NoError(t, err)
	assert.Equal(t, "-30", v)

	descs, err := o.Describe("sg")
	require.NoError(t, err)
	require.NotEmpty(t, descs)
	var found bool
	for _, d := range descs {
		if d.Name == "power_offset" {
			found = true
			assert.Equal(t, ":POW:OFFS %s", d.Write)
			assert.Equal(t, "truncated_discrete_set", d.Validator)
		}
	}
	assert.True(t, found)
}

func TestNotifications(t *testing.T) {
	hub := telemetry.NewHub(config.TelemetryConfig{BufferSize: 16})
	defer hub.Close()

	o, _ := newOrchestrator(t)
	WithNotifier(hub)(o)
	ctx := context.Background()

	require.NoError(t, o.Set(ctx, "sa", "sweep_points", "10"))
	_, err := o.Get(ctx, "sa", "sweep_points")
	require.NoError(t, err)
	require.Error(t, o.Set(ctx, "sg", "power_level", "45"))
	require.Error(t, o.Set(ctx, "sa", "sweep_points", "many"))
	require.NoError(t, o.Reset(ctx, "sg"))

	events := hub.Buffered()
	require.Len(t, events, 3)

	assert.Equal(t, telemetry.EventProperty, events[0].Type)
	assert.Equal(t, "sa", events[0].Instrument)
	assert.Equal(t, "10", events[0].Data["value"])

	assert.Equal(t, telemetry.EventFault, events[1].Type)
	assert.Equal(t, "sg", events[1].Instrument)
	assert.Equal(t, -222, events[1].Data["code"])
	assert.Equal(t, "EXECUTION", events[1].Data["class"])
	assert.Equal(t, "set", events[1].Data["action"])

	assert.Equal(t, telemetry.EventReset, events[2].Type)
}

func TestLocalFailuresKeepLinkStatus(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()
	status := func() string {
		info, err := o.Bench().Get("sa")
		require.NoError(t, err)
		return info.Status
	}

	o.Bench().Do(ctx, "sa", func(context.Context, instrument.Driver) error {
		return &property.CommunicationError{Command: "SWE:POIN?", Err: context.DeadlineExceeded}
	})
	require.Equal(t, bench.StatusOffline, status())

	_, err := o.Describe("sa")
	require.NoError(t, err)
	assert.Equal(t, bench.StatusOffline, status())

	assert.ErrorIs(t, o.Set(ctx, "sa", "continuous_mode", "MAYBE"), property.ErrInvalidValue)
	assert.ErrorIs(t, o.Set(ctx, "sa", "nope", "1"), ErrNotFound)
	assert.Equal(t, bench.StatusOffline, status())

	_, err = o.Get(ctx, "sa", "sweep_points")
	require.NoError(t, err)
	assert.Equal(t, bench.StatusOnline, status())
}

func TestDescribeDoesNotWaitForBusyInstrument(t *testing.T) {
	o, _ := newOrchestrator(t)

	held := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go o.Bench().Do(context.Background(), "sa", func(context.Context, instrument.Driver) error {
		close(held)
		<-release
		return nil
	})
	<-held

	descs, err := o.Describe("sa")
	require.NoError(t, err)
	assert.NotEmpty(t, descs)
}

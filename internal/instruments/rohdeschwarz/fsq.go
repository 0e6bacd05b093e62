package rohdeschwarz

import (
	"context"
	"fmt"
	"strings"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
)

// ModelFSQ is the registry name of the FSQ driver.
const ModelFSQ = "rs-fsq"

// SweepPointCounts are the trace lengths the FSQ supports.
var SweepPointCounts = []int{155, 313, 625, 1251, 1999, 2501, 5001, 10001, 20001, 30001}

// PowerUnits are the units accepted by UNIT:POW.
var PowerUnits = []string{
	"DBM", "DBPW", "WATT", "DBUV", "DBMV", "VOLT", "DBUA", "AMP", "V", "A", "W", "DB", "DBPT",
	"PCT", "UNITLESS", "DBUV_MHZ", "DBMV_MHZ", "DBUA_MHZ", "DBUV_M", "DBUA_M", "DBUV_MMHZ", "DBUA_MMHZ",
}

var markers = property.NewRange(1, 3)

func frequency(query, write, doc string) property.Spec[float64] {
	return property.Control(property.Float, query, write).Suffix(property.FrequencyUnit).Doc(doc)
}

var (
	fsqCenterFrequency = frequency(":FREQ:CENT?", ":FREQ:CENT %s", "Center frequency.")
	fsqSpan            = frequency(":FREQ:SPAN?", ":FREQ:SPAN %s", "Frequency span.")
	fsqStartFrequency  = frequency(":FREQ:STAR?", ":FREQ:STAR %s", "Start frequency. Frequency domain only.")
	fsqStopFrequency   = frequency(":FREQ:STOP?", ":FREQ:STOP %s", "Stop frequency. Frequency domain only.")
	fsqResolutionBW    = frequency("BAND?", "BAND %s", "Resolution bandwidth.")
	fsqVideoBW         = frequency("BAND:VID?", "BAND:VID %s", "Video bandwidth.")

	fsqFrequencyMode = property.Control(property.String, "FREQ:MODE?", "FREQ:MODE %s").
				Validate(property.NewDiscreteSet("FIXED", "SWEEP")).
				CheckErrors().
				Doc("SWEEP for the frequency domain, FIXED for the time domain.")

	fsqAverageCount = property.Control(property.Int, "AVER:COUN?", "AVER:COUN %s").
			Validate(property.NewTruncatedDiscreteSet(property.Arange(0, 32767, 1)...)).
			CheckErrors().
			Doc("Number of sweeps contributing to the average.")

	fsqAveraging = property.Control(property.String, "AVER?", "AVER %s").
			Validate(onOff).
			Map(onOffWire).
			CheckErrors().
			Doc("Average calculation on or off.")

	fsqAverageType = property.Control(property.String, "AVER:TYPE?", "AVER:TYPE %s").
			Validate(property.NewDiscreteSet("VIDEO", "LINEAR")).
			CheckErrors().
			Doc("VIDEO averages logarithmic power, LINEAR averages before conversion.")

	fsqSweepCount = property.Control(property.Int, "SWE:COUN:CURR?", "SWE:COUN %s").
			Validate(property.NewTruncatedDiscreteSet(property.Arange(0, 32767, 1)...)).
			CheckErrors().
			Doc("Sweeps per single-sweep run. Reads return the current sweep.")

	fsqSweepPoints = property.Control(property.Int, "SWE:POIN?", "SWE:POIN %s").
			Validate(property.NewTruncatedDiscreteSet(SweepPointCounts...)).
			CheckErrors().
			Doc("Trace points per sweep, snapped to the nearest supported count.")

	fsqDisplayUpdate = property.Setting(property.String, "SYST:DISP:UPD %s").
				Validate(onOff).
				CheckSetErrors().
				Doc("Screen updates during remote operation.")

	fsqContinuousMode = property.Control(property.String, "INIT:CONT?", "INIT:CONT %s").
				Validate(onOff).
				Map(onOffWire).
				CheckErrors().
				Doc("Continuous sweep (ON) or single sweep (OFF).")

	fsqMeasureHarmonics = property.Setting(property.String, "CALC:MARK:FUNC:HARM %s").
				Validate(onOff).
				Doc("Harmonic distortion measurement.")

	fsqHarmonicCount = property.Setting(property.Int, "CALC:MARK:FUNC:HARM:NHARM %s").
				Validate(property.NewTruncatedDiscreteSet(property.Arange(1, 26, 1)...)).
				Doc("Number of harmonics to measure.")

	fsqFrequencyCounter = property.Setting(property.String, "CALC:MARK1:COUN %s").
				Validate(onOff).
				Doc("Frequency counter at marker 1.")

	fsqCounterFrequency = property.Measurement(property.Float, "CALC:MARK:COUN:FREQ?").
				Doc("Frequency counter result. Needs a completed single sweep.")

	fsqPowerUnit = property.Setting(property.String, "UNIT:POW %s").
			Validate(property.NewDiscreteSet(PowerUnits...)).
			Doc("Power unit of the measurement window.")

	fsqReferenceOffset = property.Control(property.Float, "DISP:TRAC:Y:RLEV:OFFS?", "DISP:TRAC:Y:RLEV:OFFS %s").
				Validate(property.NewRange(-200.0, 200.0)).
				Suffix(property.Literal("dB")).
				Doc("Reference level offset in dB.")
)

// FSQ is a Rohde & Schwarz FSQ signal analyzer.
type FSQ struct {
	*instrument.Instrument
	props *property.Binder

	CenterFrequency     *property.Property[float64]
	Span                *property.Property[float64]
	StartFrequency      *property.Property[float64]
	StopFrequency       *property.Property[float64]
	ResolutionBandwidth *property.Property[float64]
	VideoBandwidth      *property.Property[float64]
	FrequencyMode       *property.Property[string]
	AverageCount        *property.Property[int]
	Averaging           *property.Property[string]
	AverageType         *property.Property[string]
	SweepCount          *property.Property[int]
	SweepPoints         *property.Property[int]
	DisplayUpdate       *property.Property[string]
	ContinuousMode      *property.Property[string]
	MeasureHarmonics    *property.Property[string]
	HarmonicCount       *property.Property[int]
	FrequencyCounter    *property.Property[string]
	CounterFrequency    *property.Property[float64]
	PowerUnit           *property.Property[string]
	ReferenceOffset     *property.Property[float64]
}

// NewFSQ binds the FSQ property table to inst.
func NewFSQ(inst *instrument.Instrument, opts ...property.BinderOption) (*FSQ, error) {
	b := property.NewBinder(inst, append([]property.BinderOption{property.WithLogger(inst.Logger())}, opts...)...)
	d := &FSQ{
		Instrument:          inst,
		props:               b,
		CenterFrequency:     property.Bind(b, "center_frequency", fsqCenterFrequency),
		Span:                property.Bind(b, "span", fsqSpan),
		StartFrequency:      property.Bind(b, "start_frequency", fsqStartFrequency),
		StopFrequency:       property.Bind(b, "stop_frequency", fsqStopFrequency),
		ResolutionBandwidth: property.Bind(b, "resolution_bandwidth", fsqResolutionBW),
		VideoBandwidth:      property.Bind(b, "video_bandwidth", fsqVideoBW),
		FrequencyMode:       property.Bind(b, "frequency_mode", fsqFrequencyMode),
		AverageCount:        property.Bind(b, "average_count", fsqAverageCount),
		Averaging:           property.Bind(b, "averaging", fsqAveraging),
		AverageType:         property.Bind(b, "average_type", fsqAverageType),
		SweepCount:          property.Bind(b, "sweep_count", fsqSweepCount),
		SweepPoints:         property.Bind(b, "sweep_points", fsqSweepPoints),
		DisplayUpdate:       property.Bind(b, "display_update", fsqDisplayUpdate),
		ContinuousMode:      property.Bind(b, "continuous_mode", fsqContinuousMode),
		MeasureHarmonics:    property.Bind(b, "measure_harmonics", fsqMeasureHarmonics),
		HarmonicCount:       property.Bind(b, "harmonic_count", fsqHarmonicCount),
		FrequencyCounter:    property.Bind(b, "frequency_counter", fsqFrequencyCounter),
		CounterFrequency:    property.Bind(b, "counter_frequency", fsqCounterFrequency),
		PowerUnit:           property.Bind(b, "power_unit", fsqPowerUnit),
		ReferenceOffset:     property.Bind(b, "reference_offset", fsqReferenceOffset),
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// WithUnits returns a copy of the driver whose properties use u.
func (d *FSQ) WithUnits(u property.Units) (*FSQ, error) {
	return NewFSQ(d.Instrument, property.WithUnits(u))
}

func (d *FSQ) Model() string                   { return ModelFSQ }
func (d *FSQ) Session() *instrument.Instrument { return d.Instrument }
func (d *FSQ) Properties() *property.Binder    { return d.props }

// Init starts a new sweep. In single sweep mode it waits for the sweep to
// finish; in continuous mode there is no end to wait for.
func (d *FSQ) Init(ctx context.Context) error {
	mode, err := d.ContinuousMode.Get(ctx)
	if err != nil {
		return err
	}
	if err := d.Write(ctx, "INIT"); err != nil {
		return err
	}
	if mode == "ON" {
		return nil
	}
	return d.WaitComplete(ctx)
}

func marker(n int) (int, error) {
	return markers.Validate(n)
}

// PeakSearch moves marker n to the trace peak.
func (d *FSQ) PeakSearch(ctx context.Context, n int) error {
	n, err := marker(n)
	if err != nil {
		return err
	}
	return d.Write(ctx, fmt.Sprintf("CALC:MARK%d:PEAK", n))
}

// MarkerState switches marker n ON or OFF.
func (d *FSQ) MarkerState(ctx context.Context, n int, state string) error {
	n, err := marker(n)
	if err != nil {
		return err
	}
	if _, err := onOff.Validate(state); err != nil {
		return err
	}
	return d.Write(ctx, fmt.Sprintf("CALC:MARK%d %s", n, state))
}

// MarkerToFrequency places marker n at freq, in the bound frequency unit.
func (d *FSQ) MarkerToFrequency(ctx context.Context, n int, freq float64) error {
	n, err := marker(n)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("CALC:MARK%d:X %s%s", n, property.Float.Format(freq), d.props.Units().Frequency)
	return d.Write(ctx, cmd)
}

// MarkerLevel reads the level at marker n. Single sweep mode only.
func (d *FSQ) MarkerLevel(ctx context.Context, n int) (float64, error) {
	n, err := marker(n)
	if err != nil {
		return 0, err
	}
	resp, err := d.Ask(ctx, fmt.Sprintf("CALC:MARK%d:Y?", n))
	if err != nil {
		return 0, err
	}
	return property.Float.Parse(resp)
}

// AllMarkersOff switches off every marker.
func (d *FSQ) AllMarkersOff(ctx context.Context) error {
	return d.Write(ctx, "CALC:MARK:AOFF")
}

// ReferenceToMarker sets the reference level to the level at marker n.
func (d *FSQ) ReferenceToMarker(ctx context.Context, n int) error {
	n, err := marker(n)
	if err != nil {
		return err
	}
	return d.Write(ctx, fmt.Sprintf("CALC:MARK%d:FUNC:REF", n))
}

// CenterToMarker sets the center frequency to the frequency of marker n.
func (d *FSQ) CenterToMarker(ctx context.Context, n int) error {
	n, err := marker(n)
	if err != nil {
		return err
	}
	return d.Write(ctx, fmt.Sprintf("CALC:MARK%d:FUNC:CENT", n))
}

// HarmonicLevels selects how Harmonics reports levels.
type HarmonicLevels string

const (
	// Relative reports the fundamental in dBm and harmonics in dB relative to it.
	Relative HarmonicLevels = "Relative"
	// Absolute reports every level in dBm.
	Absolute HarmonicLevels = "Absolute"
)

// harmonicUnused marks list entries for harmonics that were not measured.
const harmonicUnused = -200

// Harmonics reads the harmonic list. The first entry is the fundamental.
// Single sweep mode only.
func (d *FSQ) Harmonics(ctx context.Context, levels HarmonicLevels) ([]float64, error) {
	if levels != Relative && levels != Absolute {
		return nil, &property.InvalidValueError{Value: levels, Reason: property.ReasonNotMember}
	}
	resp, err := d.Ask(ctx, "CALC:MARK:FUNC:HARM:LIST?")
	if err != nil {
		return nil, err
	}

	var harm []float64
	for _, field := range strings.Split(resp, ",") {
		v, err := property.Float.Parse(field)
		if err != nil {
			return nil, &property.ProtocolError{Response: resp, Reason: "malformed harmonic list"}
		}
		if v != harmonicUnused {
			harm = append(harm, v)
		}
	}
	if len(harm) == 0 {
		return nil, &property.ProtocolError{Response: resp, Reason: "no harmonics measured"}
	}
	if levels == Relative {
		return harm, nil
	}

	abs := make([]float64, len(harm))
	abs[0] = harm[0]
	for i, rel := range harm[1:] {
		abs[i+1] = harm[0] + rel
	}
	return abs, nil
}

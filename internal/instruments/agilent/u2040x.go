// Package agilent contains drivers for Agilent/Keysight instruments.
package agilent

import (
	"context"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
)

// ModelU2040X is the registry name of the U2040X driver.
const ModelU2040X = "agilent-u2040x"

var onOff = property.NewDiscreteSet("OFF", "ON")

var (
	u2040xFrequency = property.Control(property.Float, "FREQ?", "FREQ %s").
			Suffix(property.FrequencyUnit).
			Doc("Frequency correction setting. Writes use the bound frequency unit; reads return Hz.")

	u2040xContinuousMode = property.Control(property.String, "INIT:CONT?", "INIT:CONT %s").
				Validate(onOff).
				Map(map[string]string{"OFF": "0", "ON": "1"}).
				Doc("Continuous triggering. OFF leaves the trigger system idle until Init.")

	u2040xReading = property.Measurement(property.Float, "READ?").
			Doc("Power reading after a triggered measurement completes.")
)

// U2040X is a Keysight U2040X series wideband power sensor.
type U2040X struct {
	*instrument.Instrument
	props *property.Binder

	Frequency      *property.Property[float64]
	ContinuousMode *property.Property[string]
	Reading        *property.Property[float64]
}

// NewU2040X binds the U2040X property table to inst.
func NewU2040X(inst *instrument.Instrument, opts ...property.BinderOption) (*U2040X, error) {
	b := property.NewBinder(inst, append([]property.BinderOption{property.WithLogger(inst.Logger())}, opts...)...)
	d := &U2040X{
		Instrument:     inst,
		props:          b,
		Frequency:      property.Bind(b, "frequency", u2040xFrequency),
		ContinuousMode: property.Bind(b, "continuous_mode", u2040xContinuousMode),
		Reading:        property.Bind(b, "reading", u2040xReading),
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// WithUnits returns a copy of the driver whose properties use u.
func (d *U2040X) WithUnits(u property.Units) (*U2040X, error) {
	return NewU2040X(d.Instrument, property.WithUnits(u))
}

func (d *U2040X) Model() string                   { return ModelU2040X }
func (d *U2040X) Session() *instrument.Instrument { return d.Instrument }
func (d *U2040X) Properties() *property.Binder    { return d.props }

// Init triggers a single measurement.
func (d *U2040X) Init(ctx context.Context) error {
	return d.Write(ctx, "INIT:IMM")
}

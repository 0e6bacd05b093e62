package rohdeschwarz

import (
	"context"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
)

// ModelSMB100A is the registry name of the SMB100A driver.
const ModelSMB100A = "rs-smb100a"

var (
	smbPowerLevel = property.Control(property.Float, ":POW?", ":POW %s").
			CheckErrors().
			Doc("RF level. Not range checked; the limit depends on installed options and frequency.")

	smbPowerOffset = property.Control(property.Float, ":POW:OFFS?", ":POW:OFFS %s").
			Validate(property.NewTruncatedDiscreteSet(property.Arange(-100.0, 100.0, 0.01)...)).
			CheckErrors().
			Doc("Level offset of a downstream attenuator or amplifier, in dB.")

	smbFrequency = property.Control(property.Float, ":FREQ?", ":FREQ %s").
			Suffix(property.FrequencyUnit).
			Doc("Fixed RF frequency.")

	smbOutput = property.Setting(property.String, ":OUTP %s").
			Validate(onOff).
			CheckSetErrors().
			Doc("RF output on or off.")

	smbPowerUnit = property.Control(property.String, "UNIT:POW?", "UNIT:POW %s").
			Validate(property.NewDiscreteSet("V", "DBUV", "DBM")).
			CheckErrors().
			Doc("Default unit for power parameters.")
)

// SMB100A is a Rohde & Schwarz SMB100A RF signal generator.
type SMB100A struct {
	*instrument.Instrument
	props *property.Binder

	PowerLevel  *property.Property[float64]
	PowerOffset *property.Property[float64]
	Frequency   *property.Property[float64]
	Output      *property.Property[string]
	PowerUnit   *property.Property[string]
}

// NewSMB100A binds the SMB100A property table to inst.
func NewSMB100A(inst *instrument.Instrument, opts ...property.BinderOption) (*SMB100A, error) {
	b := property.NewBinder(inst, append([]property.BinderOption{property.WithLogger(inst.Logger())}, opts...)...)
	d := &SMB100A{
		Instrument:  inst,
		props:       b,
		PowerLevel:  property.Bind(b, "power_level", smbPowerLevel),
		PowerOffset: property.Bind(b, "power_offset", smbPowerOffset),
		Frequency:   property.Bind(b, "frequency", smbFrequency),
		Output:      property.Bind(b, "output", smbOutput),
		PowerUnit:   property.Bind(b, "power_unit", smbPowerUnit),
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// WithUnits returns a copy of the driver whose properties use u.
func (d *SMB100A) WithUnits(u property.Units) (*SMB100A, error) {
	return NewSMB100A(d.Instrument, property.WithUnits(u))
}

func (d *SMB100A) Model() string                   { return ModelSMB100A }
func (d *SMB100A) Session() *instrument.Instrument { return d.Instrument }
func (d *SMB100A) Properties() *property.Binder    { return d.props }

// InstrumentOptions lists the installed hardware and software options.
func (d *SMB100A) InstrumentOptions(ctx context.Context) ([]string, error) {
	return d.Options(ctx)
}

// RFOn switches the output on.
func (d *SMB100A) RFOn(ctx context.Context) error { return d.Output.Set(ctx, "ON") }

// RFOff switches the output off.
func (d *SMB100A) RFOff(ctx context.Context) error { return d.Output.Set(ctx, "OFF") }

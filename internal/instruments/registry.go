// Package instruments maps model names to drivers.
package instruments

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/instruments/agilent"
	"github.com/vik-s/pymeasure/internal/instruments/rohdeschwarz"
	"github.com/vik-s/pymeasure/internal/property"
)

// Factory binds a model's driver to a session.
type Factory func(inst *instrument.Instrument, units property.Units) (instrument.Driver, error)

// Entry describes a registered model.
type Entry struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	factory     Factory
}

var registry = map[string]Entry{
	agilent.ModelU2040X: {
		Model:       agilent.ModelU2040X,
		Description: "Keysight U2040X series wideband power sensor",
		factory: func(inst *instrument.Instrument, units property.Units) (instrument.Driver, error) {
			return agilent.NewU2040X(inst, property.WithUnits(units))
		},
	},
	rohdeschwarz.ModelFSQ: {
		Model:       rohdeschwarz.ModelFSQ,
		Description: "Rohde & Schwarz FSQ signal analyzer",
		factory: func(inst *instrument.Instrument, units property.Units) (instrument.Driver, error) {
			return rohdeschwarz.NewFSQ(inst, property.WithUnits(units))
		},
	},
	rohdeschwarz.ModelSMB100A: {
		Model:       rohdeschwarz.ModelSMB100A,
		Description: "Rohde & Schwarz SMB100A RF signal generator",
		factory: func(inst *instrument.Instrument, units property.Units) (instrument.Driver, error) {
			return rohdeschwarz.NewSMB100A(inst, property.WithUnits(units))
		},
	},
}

// ErrUnknownModel is returned for a model with no driver.
var ErrUnknownModel = errors.New("unknown model")

// Open binds the driver for model to inst.
func Open(model string, inst *instrument.Instrument, units property.Units) (instrument.Driver, error) {
	e, ok := registry[model]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	return e.factory(inst, units)
}

// Lookup returns the entry for model.
func Lookup(model string) (Entry, bool) {
	e, ok := registry[model]
	return e, ok
}

// Models lists the registered models in name order.
func Models() []Entry {
	out := make([]Entry, 0, len(registry))
	for _, e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

package instrument

import "github.com/vik-s/pymeasure/internal/property"

// Driver is a model's property table bound to an Instrument.
type Driver interface {
	Model() string
	Session() *Instrument
	Properties() *property.Binder
}

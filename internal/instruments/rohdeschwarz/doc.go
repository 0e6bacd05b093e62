// Package rohdeschwarz contains drivers for the Rohde & Schwarz FSQ signal
// analyzer and SMB100A signal generator.
//
// Frequency-valued properties append the unit the driver was bound with
// ("GHz" unless WithUnits says otherwise) and read back in Hz.
package rohdeschwarz

import "github.com/vik-s/pymeasure/internal/property"

var onOff = property.NewDiscreteSet("OFF", "ON")

// onOffWire maps OFF/ON to the 0/1 the instruments answer with.
var onOffWire = map[string]string{"OFF": "0", "ON": "1"}

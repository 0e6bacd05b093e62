package instrument

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vik-s/pymeasure/internal/property"
)

// IEEE 488.2 common commands and the SCPI error queue query.
const (
	CmdIdentify    = "*IDN?"
	CmdReset       = "*RST"
	CmdClearStatus = "*CLS"
	CmdOptions     = "*OPT?"
	CmdOperation   = "*OPC?"
	CmdNextError   = "SYST:ERR?"
)

// maxDrain bounds DrainErrors against an instrument that never reports an
// empty queue.
const maxDrain = 64

// NextError pops the oldest entry from the SCPI error queue. An empty
// queue reports code 0 and an empty message.
func (i *Instrument) NextError(ctx context.Context) (int, string, error) {
	resp, err := i.Ask(ctx, CmdNextError)
	if err != nil {
		return 0, "", err
	}
	return ParseError(resp)
}

// ParseError parses a SYST:ERR? response of the form <code>,"<message>".
func ParseError(resp string) (int, string, error) {
	text := strings.TrimSpace(resp)
	codeText, message, ok := strings.Cut(text, ",")
	if !ok {
		// Some firmware answers a bare "0" on an empty queue.
		codeText = text
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return 0, "", &property.ProtocolError{Response: resp, Reason: "malformed error queue entry"}
	}
	if code == 0 {
		return 0, "", nil
	}
	return code, strings.Trim(strings.TrimSpace(message), `"`), nil
}

// DrainErrors pops the error queue until it is empty.
func (i *Instrument) DrainErrors(ctx context.Context) ([]property.InstrumentError, error) {
	var out []property.InstrumentError
	for n := 0; n < maxDrain; n++ {
		code, message, err := i.NextError(ctx)
		if err != nil {
			return out, err
		}
		if code == 0 {
			return out, nil
		}
		out = append(out, property.InstrumentError{Code: code, Message: message})
	}
	return out, fmt.Errorf("error queue not empty after %d reads", maxDrain)
}

// Identity is the parsed *IDN? response.
type Identity struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Firmware     string `json:"firmware"`
	Raw          string `json:"raw"`
}

func (id Identity) String() string {
	return strings.TrimSpace(id.Manufacturer + " " + id.Model)
}

// ParseIdentity splits a *IDN? response into its four fields. Missing
// trailing fields are left empty.
func ParseIdentity(resp string) (Identity, error) {
	raw := strings.TrimSpace(resp)
	if raw == "" {
		return Identity{}, &property.ProtocolError{Response: resp, Reason: "empty identification"}
	}
	fields := strings.SplitN(raw, ",", 4)
	for len(fields) < 4 {
		fields = append(fields, "")
	}
	return Identity{
		Manufacturer: strings.TrimSpace(fields[0]),
		Model:        strings.TrimSpace(fields[1]),
		Serial:       strings.TrimSpace(fields[2]),
		Firmware:     strings.TrimSpace(fields[3]),
		Raw:          raw,
	}, nil
}

// ID queries *IDN?.
func (i *Instrument) ID(ctx context.Context) (Identity, error) {
	resp, err := i.Ask(ctx, CmdIdentify)
	if err != nil {
		return Identity{}, err
	}
	return ParseIdentity(resp)
}

// Reset restores the power-on state.
func (i *Instrument) Reset(ctx context.Context) error {
	return i.Write(ctx, CmdReset)
}

// ClearStatus clears the status registers and the error queue.
func (i *Instrument) ClearStatus(ctx context.Context) error {
	return i.Write(ctx, CmdClearStatus)
}

// Options returns the installed options reported by *OPT?.
func (i *Instrument) Options(ctx context.Context) ([]string, error) {
	resp, err := i.Ask(ctx, CmdOptions)
	if err != nil {
		return nil, err
	}
	var opts []string
	for _, f := range strings.Split(resp, ",") {
		f = strings.Trim(strings.TrimSpace(f), `"`)
		if f != "" && f != "0" {
			opts = append(opts, f)
		}
	}
	return opts, nil
}

// WaitComplete blocks until pending operations finish (*OPC? answers 1).
func (i *Instrument) WaitComplete(ctx context.Context) error {
	resp, err := i.Ask(ctx, CmdOperation)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) != "1" {
		return &property.ProtocolError{Response: resp, Reason: "unexpected *OPC? response"}
	}
	return nil
}

// ErrorClass names the SCPI class an error code belongs to.
type ErrorClass string

const (
	ClassCommand   ErrorClass = "COMMAND"
	ClassExecution ErrorClass = "EXECUTION"
	ClassDevice    ErrorClass = "DEVICE"
	ClassQuery     ErrorClass = "QUERY"
	ClassEvent     ErrorClass = "EVENT"
	ClassVendor    ErrorClass = "VENDOR"
	ClassNone      ErrorClass = "NONE"
)

// Classify maps an error queue code onto the standard SCPI ranges.
// Positive codes are instrument specific.
func Classify(code int) ErrorClass {
	switch {
	case code == 0:
		return ClassNone
	case code > 0:
		return ClassVendor
	case code <= -100 && code > -200:
		return ClassCommand
	case code <= -200 && code > -300:
		return ClassExecution
	case code <= -300 && code > -400:
		return ClassDevice
	case code <= -400 && code > -500:
		return ClassQuery
	default:
		return ClassEvent
	}
}

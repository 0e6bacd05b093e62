package property

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by a Property wraps exactly one of these.
var (
	ErrInvalidValue  = errors.New("INVALID_VALUE")
	ErrCommunication = errors.New("COMMUNICATION")
	ErrProtocol      = errors.New("PROTOCOL")
	ErrInstrument    = errors.New("INSTRUMENT")
)

// Access errors, returned before any I/O when a property lacks the template.
var (
	ErrNotReadable = errors.New("property is not readable")
	ErrNotWritable = errors.New("property is not writable")
)

// InvalidValueError reports a value rejected locally. No command was sent.
type InvalidValueError struct {
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%v: %v (%s)", ErrInvalidValue, e.Value, e.Reason)
}

func (e *InvalidValueError) Unwrap() error {
	return ErrInvalidValue
}

// CommunicationError wraps a transport failure for a single command.
type CommunicationError struct {
	Command string
	Err     error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrCommunication, e.Command, e.Err)
}

// Unwrap exposes both the class sentinel and the transport cause, so
// errors.Is works for ErrCommunication as well as context.DeadlineExceeded.
func (e *CommunicationError) Unwrap() []error {
	return []error{ErrCommunication, e.Err}
}

// ProtocolError reports a response that could not be interpreted.
type ProtocolError struct {
	Response string
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %s (response %q)", ErrProtocol, e.Reason, e.Response)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// InstrumentError carries a fault from the instrument's error queue. The
// transaction that triggered the check was already performed.
type InstrumentError struct {
	Code    int
	Message string
	Command string
}

func (e *InstrumentError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%v: %d,%q", ErrInstrument, e.Code, e.Message)
	}
	return fmt.Sprintf("%v: %d,%q after %q", ErrInstrument, e.Code, e.Message, e.Command)
}

func (e *InstrumentError) Unwrap() error {
	return ErrInstrument
}

func invalid(value any, reason string) error {
	return &InvalidValueError{Value: value, Reason: reason}
}

// Reasons used by the built-in validators and value maps.
const (
	ReasonNotMember  = "not a member"
	ReasonOutOfRange = "out of range"
	ReasonEmptySet   = "empty set"
	ReasonUnmapped   = "unmapped token"
)

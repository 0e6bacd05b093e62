package property

import "context"

// Session is the transport contract the engine drives. Ask writes a command
// and returns the response line; Write sends a command without reading.
type Session interface {
	Ask(ctx context.Context, command string) (string, error)
	Write(ctx context.Context, command string) error
}

// ErrorQueue pops the oldest entry of the instrument's error queue. An empty
// queue reports code 0.
type ErrorQueue interface {
	NextError(ctx context.Context) (code int, message string, err error)
}

// CheckErrors pops one error queue entry and fails with an InstrumentError
// when it is non-zero. command names the transaction being checked.
func CheckErrors(ctx context.Context, q ErrorQueue, command string) error {
	code, message, err := q.NextError(ctx)
	if err != nil {
		return err
	}
	if code != 0 {
		return &InstrumentError{Code: code, Message: message, Command: command}
	}
	return nil
}

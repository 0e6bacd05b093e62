package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/vik-s/pymeasure/internal/bench"
	"github.com/vik-s/pymeasure/internal/command"
	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
)

// APIError is an error with a fixed HTTP mapping.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    interface{}
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

// ToAPIError maps an error onto a status code and an error envelope.
func ToAPIError(err error) *APIError {
	var (
		apiErr  *APIError
		instErr *property.InstrumentError
		protErr *property.ProtocolError
		invErr  *property.InvalidValueError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr

	case errors.As(err, &invErr):
		return &APIError{http.StatusBadRequest, "INVALID_VALUE", err.Error(),
			map[string]interface{}{"value": invErr.Value, "reason": invErr.Reason}}

	case errors.Is(err, property.ErrNotReadable):
		return &APIError{http.StatusMethodNotAllowed, "NOT_READABLE", err.Error(), nil}
	case errors.Is(err, property.ErrNotWritable):
		return &APIError{http.StatusMethodNotAllowed, "NOT_WRITABLE", err.Error(), nil}

	case errors.As(err, &instErr):
		return &APIError{http.StatusConflict, "INSTRUMENT", err.Error(),
			map[string]interface{}{
				"code":    instErr.Code,
				"class":   string(instrument.Classify(instErr.Code)),
				"message": instErr.Message,
				"command": instErr.Command,
			}}

	case errors.As(err, &protErr):
		return &APIError{http.StatusBadGateway, "PROTOCOL", err.Error(),
			map[string]interface{}{"response": protErr.Response}}

	case errors.Is(err, property.ErrCommunication):
		return &APIError{http.StatusServiceUnavailable, "COMMUNICATION", err.Error(), nil}

	case errors.Is(err, bench.ErrNotFound), errors.Is(err, command.ErrNotFound):
		return &APIError{http.StatusNotFound, "NOT_FOUND", err.Error(), nil}

	case errors.Is(err, command.ErrInvalidParameter):
		return &APIError{http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil}

	// Waiting for a busy instrument ran out the command timeout.
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{http.StatusServiceUnavailable, "BUSY", "instrument busy, retry later", nil}

	default:
		return &APIError{http.StatusInternalServerError, "INTERNAL", "Internal server error",
			map[string]interface{}{"error": err.Error()}}
	}
}

// writeErr writes the envelope for err.
func writeErr(w http.ResponseWriter, err error) {
	e := ToAPIError(err)
	WriteError(w, e.StatusCode, e.Code, e.Message, e.Details)
}

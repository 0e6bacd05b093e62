package api

import (
	"context"
	"net/http"

	"github.com/vik-s/pymeasure/internal/bench"
	"github.com/vik-s/pymeasure/internal/command"
	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/telemetry"
)

// OrchestratorPort is what the API needs from the command layer.
type OrchestratorPort interface {
	Get(ctx context.Context, name, prop string) (string, error)
	Set(ctx context.Context, name, prop, value string) error
	Describe(name string) ([]property.Description, error)
	Identify(ctx context.Context, name string) (instrument.Identity, error)
	Errors(ctx context.Context, name string) ([]property.InstrumentError, error)
	Reset(ctx context.Context, name string) error
}

// BenchPort is the read side of the instrument inventory.
type BenchPort interface {
	List() *bench.List
	Get(name string) (bench.Instrument, error)
	SetActive(name string) error
}

// TelemetryPort streams events to a subscriber until it disconnects.
type TelemetryPort interface {
	Subscribe(w http.ResponseWriter, r *http.Request) error
}

var _ OrchestratorPort = (*command.Orchestrator)(nil)
var _ BenchPort = (*bench.Manager)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)

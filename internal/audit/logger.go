package audit

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vik-s/pymeasure/internal/config"
	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
)

// Entry is a single audit record.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"ts"`
	User       string         `json:"user,omitempty"`
	Instrument string         `json:"instrument"`
	Action     string         `json:"action"`
	Command    string         `json:"command,omitempty"`
	Response   string         `json:"response,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Outcome    string         `json:"outcome"`
	Code       string         `json:"code"`
	LatencyMs  float64        `json:"latencyMs"`
}

// Outcomes.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

type userKey struct{}

// WithUser returns a context carrying the acting user for control records.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok {
		return u
	}
	return ""
}

// Logger appends entries to a rotated JSONL file.
type Logger struct {
	mu      sync.Mutex
	w       io.WriteCloser
	path    string
	entropy io.Reader
	now     func() time.Time
}

// NewLogger opens the audit file at cfg.Path, creating its directory.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return newLogger(w, cfg.Path), nil
}

func newLogger(w io.WriteCloser, path string) *Logger {
	return &Logger{
		w:       w,
		path:    path,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Record implements instrument.Transcript.
func (l *Logger) Record(tx instrument.Transaction) {
	action := "write"
	if tx.Query {
		action = "query"
	}
	l.write(Entry{
		Instrument: tx.Instrument,
		Action:     action,
		Command:    tx.Command,
		Response:   tx.Response,
		Outcome:    outcome(tx.Err),
		Code:       Code(tx.Err),
		LatencyMs:  float64(tx.Duration) / float64(time.Millisecond),
	})
}

// LogControlAction records a request-level action such as a property set.
func (l *Logger) LogControlAction(ctx context.Context, instrumentName, action string, params map[string]any, err error, latency time.Duration) {
	l.write(Entry{
		User:       UserFrom(ctx),
		Instrument: instrumentName,
		Action:     action,
		Params:     params,
		Outcome:    outcome(err),
		Code:       Code(err),
		LatencyMs:  float64(latency) / float64(time.Millisecond),
	})
}

func (l *Logger) write(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UTC()
	e.Timestamp = ts
	e.ID = ulid.MustNew(ulid.Timestamp(ts), l.entropy).String()

	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// Rotate starts a new audit file.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.w.(interface{ Rotate() error }); ok {
		return r.Rotate()
	}
	return nil
}

// Close closes the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}

// Path returns the audit file path.
func (l *Logger) Path() string { return l.path }

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Code maps an error onto its class name.
func Code(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, property.ErrInvalidValue):
		return property.ErrInvalidValue.Error()
	case errors.Is(err, property.ErrInstrument):
		return property.ErrInstrument.Error()
	case errors.Is(err, property.ErrProtocol):
		return property.ErrProtocol.Error()
	case errors.Is(err, property.ErrCommunication):
		return property.ErrCommunication.Error()
	default:
		return "ERROR"
	}
}

package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/oklog/ulid/v2"

	"github.com/vik-s/pymeasure/internal/config"
)

// Event types.
const (
	EventReady     = "ready"
	EventProperty  = "property"
	EventFault     = "fault"
	EventReset     = "reset"
	EventHeartbeat = "heartbeat"
)

const clientQueue = 64

// Event is one message on the stream.
type Event struct {
	ID         int64                  `json:"id,omitempty"`
	Type       string                 `json:"type"`
	Instrument string                 `json:"instrument,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

type client struct {
	id         string
	instrument string
	events     chan Event
}

func (c *client) wants(ev Event) bool {
	return c.instrument == "" || ev.Instrument == "" || ev.Instrument == c.instrument
}

// Hub fans events out to subscribed clients.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
	lastID  int64
	buffer  []Event

	cfg      config.TelemetryConfig
	snapshot func() interface{}
	logger   hclog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithSnapshot sets the state sent in every ready event.
func WithSnapshot(fn func() interface{}) Option {
	return func(h *Hub) { h.snapshot = fn }
}

// WithLogger sets the hub logger.
func WithLogger(l hclog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a hub and starts its heartbeat when configured.
func NewHub(cfg config.TelemetryConfig, opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		cfg:     cfg,
		logger:  hclog.NewNullLogger(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if cfg.HeartbeatInterval > 0 {
		h.wg.Add(1)
		go h.heartbeat(cfg.HeartbeatInterval)
	}
	return h
}

// Notify publishes an event about one instrument.
func (h *Hub) Notify(instrumentName, eventType string, data map[string]interface{}) {
	h.Publish(Event{Type: eventType, Instrument: instrumentName, Data: data})
}

// Publish assigns the next ID to ev, buffers it and queues it for every
// interested client. A client whose queue is full misses the event.
func (h *Hub) Publish(ev Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev.ID = h.lastID
	if ev.Data == nil {
		ev.Data = map[string]interface{}{}
	}
	if ev.Type != EventHeartbeat && h.cfg.BufferSize > 0 {
		h.buffer = append(h.buffer, ev)
		if len(h.buffer) > h.cfg.BufferSize {
			h.buffer = h.buffer[len(h.buffer)-h.cfg.BufferSize:]
		}
	}

	for _, c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.events <- ev:
		default:
			h.logger.Warn("dropping event for slow client", "client", c.id, "event", ev.ID)
		}
	}
	return ev
}

// Subscribe streams events to w until the request context ends or the hub
// is closed. A Last-Event-ID header replays buffered events newer than it.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	select {
	case <-h.done:
		return fmt.Errorf("telemetry hub closed")
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	var lastID int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastID = id
		}
	}

	c := &client{
		id:         ulid.Make().String(),
		instrument: r.URL.Query().Get("instrument"),
		events:     make(chan Event, clientQueue),
	}

	// Registration and the replay snapshot happen under one lock so the
	// replay and the live queue neither overlap nor leave a gap.
	h.mu.Lock()
	var replay []Event
	if lastID > 0 {
		for _, ev := range h.buffer {
			if ev.ID > lastID && c.wants(ev) {
				replay = append(replay, ev)
			}
		}
	}
	h.clients[c.id] = c
	ready := Event{ID: h.lastID, Type: EventReady, Data: map[string]interface{}{}}
	h.mu.Unlock()
	defer h.unregister(c.id)

	if h.snapshot != nil {
		ready.Data["snapshot"] = h.snapshot()
	}
	h.logger.Debug("client subscribed", "client", c.id, "instrument", c.instrument, "lastEventId", lastID)

	if err := send(w, rc, ready); err != nil {
		return err
	}
	for _, ev := range replay {
		if err := send(w, rc, ev); err != nil {
			return err
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev := <-c.events:
			if err := send(w, rc, ev); err != nil {
				return err
			}
		}
	}
}

// Clients returns the number of subscribed clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Buffered returns the replay buffer, oldest first.
func (h *Hub) Buffered() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.buffer...)
}

// Close ends every stream and stops the heartbeat.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.wg.Wait()
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (h *Hub) heartbeat(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case t := <-ticker.C:
			h.Publish(Event{Type: EventHeartbeat, Data: map[string]interface{}{
				"ts": t.UTC().Format(time.RFC3339),
			}})
		}
	}
}

// payload is the JSON carried in an SSE data line.
type payload struct {
	Instrument string                 `json:"instrument,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// send writes ev in SSE framing and flushes it.
func send(w http.ResponseWriter, rc *http.ResponseController, ev Event) error {
	data, err := json.Marshal(payload{Instrument: ev.Instrument, Data: ev.Data})
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	return nil
}

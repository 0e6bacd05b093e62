package telemetry

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vik-s/pymeasure/internal/config"
)

type sseEvent struct {
	id   int64
	typ  string
	data payload
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return ev
		}
		field, value, _ := strings.Cut(line, ": ")
		switch field {
		case "id":
			id, err := strconv.ParseInt(value, 10, 64)
			require.NoError(t, err)
			ev.id = id
		case "event":
			ev.typ = value
		case "data":
			require.NoError(t, json.Unmarshal([]byte(value), &ev.data))
		}
	}
}

func newStream(t *testing.T, cfg config.TelemetryConfig, opts ...Option) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(cfg, opts...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Subscribe(w, r)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)
	return h, srv
}

func subscribe(t *testing.T, h *Hub, url string, header http.Header) *bufio.Reader {
	t.Helper()
	before := h.Clients()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return h.Clients() == before+1 }, time.Second, 5*time.Millisecond)
	return bufio.NewReader(resp.Body)
}

func TestPublishBuffersRecentEvents(t *testing.T) {
	h := NewHub(config.TelemetryConfig{BufferSize: 3})
	defer h.Close()

	for i := 0; i < 5; i++ {
		h.Notify("sa", EventProperty, map[string]interface{}{"i": i})
	}
	h.Publish(Event{Type: EventHeartbeat})

	buf := h.Buffered()
	require.Len(t, buf, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{buf[0].ID, buf[1].ID, buf[2].ID})
	assert.Equal(t, "sa", buf[0].Instrument)

	ev := h.Publish(Event{Type: EventReset})
	assert.Equal(t, int64(7), ev.ID)
	assert.NotNil(t, ev.Data)
}

func TestSubscribeFiltersByInstrument(t *testing.T) {
	h, srv := newStream(t, config.TelemetryConfig{BufferSize: 16},
		WithSnapshot(func() interface{} { return map[string]string{"active": "sa"} }))

	r := subscribe(t, h, srv.URL+"?instrument=sa", nil)
	ready := readEvent(t, r)
	assert.Equal(t, EventReady, ready.typ)
	assert.Equal(t, map[string]interface{}{"active": "sa"}, ready.data.Data["snapshot"])

	h.Notify("sg", EventProperty, map[string]interface{}{"property": "power_level"})
	h.Notify("sa", EventProperty, map[string]interface{}{"property": "span", "value": "1e6"})

	ev := readEvent(t, r)
	assert.Equal(t, EventProperty, ev.typ)
	assert.Equal(t, int64(2), ev.id)
	assert.Equal(t, "sa", ev.data.Instrument)
	assert.Equal(t, "span", ev.data.Data["property"])
}

func TestSubscribeReplaysAfterLastEventID(t *testing.T) {
	h, srv := newStream(t, config.TelemetryConfig{BufferSize: 16})
	h.Notify("sa", EventProperty, map[string]interface{}{"n": 1})
	h.Notify("sa", EventProperty, map[string]interface{}{"n": 2})
	h.Notify("sa", EventFault, map[string]interface{}{"code": -222})

	r := subscribe(t, h, srv.URL, http.Header{"Last-Event-Id": []string{"1"}})
	ready := readEvent(t, r)
	assert.Equal(t, int64(3), ready.id)

	ev := readEvent(t, r)
	assert.Equal(t, int64(2), ev.id)
	ev = readEvent(t, r)
	assert.Equal(t, int64(3), ev.id)
	assert.Equal(t, EventFault, ev.typ)

	h.Notify("sa", EventReset, nil)
	ev = readEvent(t, r)
	assert.Equal(t, int64(4), ev.id)
	assert.Equal(t, EventReset, ev.typ)
}

func TestHeartbeat(t *testing.T) {
	h, srv := newStream(t, config.TelemetryConfig{HeartbeatInterval: 10 * time.Millisecond})
	r := subscribe(t, h, srv.URL, nil)
	readEvent(t, r)

	ev := readEvent(t, r)
	assert.Equal(t, EventHeartbeat, ev.typ)
	assert.Contains(t, ev.data.Data, "ts")
	assert.Empty(t, h.Buffered())
}

func TestCloseEndsStreams(t *testing.T) {
	h, srv := newStream(t, config.TelemetryConfig{})
	r := subscribe(t, h, srv.URL, nil)
	readEvent(t, r)

	h.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	err := h.Subscribe(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}

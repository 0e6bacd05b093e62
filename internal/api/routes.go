package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vik-s/pymeasure/internal/auth"
	"github.com/vik-s/pymeasure/internal/instruments"
)

const apiV1 = "/api/v1"

// RegisterRoutes registers every endpoint on mux.
//
//	GET  /api/v1/health
//	GET  /api/v1/models
//	GET  /api/v1/instruments
//	POST /api/v1/instruments/select                     {"name": "sa"}
//	GET  /api/v1/instruments/{name}
//	GET  /api/v1/instruments/{name}/identity
//	GET  /api/v1/instruments/{name}/properties
//	GET  /api/v1/instruments/{name}/properties/{prop}
//	PUT  /api/v1/instruments/{name}/properties/{prop}  {"value": "ON"}
//	POST /api/v1/instruments/{name}/errors              drains the queue
//	POST /api/v1/instruments/{name}/reset
//	GET  /api/v1/events                                 SSE, ?instrument= filter
//	GET  /metrics
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	mux.HandleFunc(apiV1+"/models", s.guard(auth.ScopeRead, s.handleModels))
	mux.HandleFunc(apiV1+"/instruments", s.guard(auth.ScopeRead, s.handleInstruments))
	mux.HandleFunc(apiV1+"/instruments/select", s.guard(auth.ScopeControl, s.handleSelect))
	// Scopes for instrument subresources depend on method and path.
	mux.HandleFunc(apiV1+"/instruments/", s.auth.RequireAuth(s.handleInstrumentEndpoints))
	if s.telemetry != nil {
		mux.HandleFunc(apiV1+"/events", s.guard(auth.ScopeRead, s.handleEvents))
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
}

func (s *Server) guard(scope string, h http.HandlerFunc) http.HandlerFunc {
	return s.auth.RequireAuth(s.auth.RequireScope(scope)(h))
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		"Allowed methods: "+strings.Join(methods, ", "), nil)
	return false
}

// decodeStrict decodes a single JSON object and rejects unknown fields and
// trailing data.
func decodeStrict(r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return false
	}
	return dec.Decode(&struct{}{}) == io.EOF
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	list := s.bench.List()
	offline := 0
	for _, inst := range list.Items {
		if inst.Status == "offline" {
			offline++
		}
	}
	status := "ok"
	if offline > 0 {
		status = "degraded"
	}
	WriteSuccess(w, map[string]interface{}{
		"status":      status,
		"uptimeSec":   time.Since(s.startTime).Seconds(),
		"version":     Version,
		"instruments": len(list.Items),
		"offline":     offline,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if err := s.telemetry.Subscribe(w, r); err != nil {
		s.logger.Debug("event stream ended", "error", err)
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, instruments.Models())
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, s.bench.List())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeStrict(r, &req) || req.Name == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Expected {\"name\": \"<instrument>\"}", nil)
		return
	}
	if err := s.bench.SetActive(req.Name); err != nil {
		writeErr(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"active": req.Name})
}

// handleInstrumentEndpoints routes /instruments/{name}[/...].
func (s *Server) handleInstrumentEndpoints(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, apiV1+"/instruments/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
		return
	}
	name := parts[0]

	var (
		scope = auth.ScopeRead
		h     func(http.ResponseWriter, *http.Request)
	)
	switch {
	case len(parts) == 1:
		h = func(w http.ResponseWriter, r *http.Request) { s.handleInstrument(w, r, name) }
	case len(parts) == 2 && parts[1] == "identity":
		h = func(w http.ResponseWriter, r *http.Request) { s.handleIdentity(w, r, name) }
	case len(parts) == 2 && parts[1] == "properties":
		h = func(w http.ResponseWriter, r *http.Request) { s.handleProperties(w, r, name) }
	case len(parts) == 3 && parts[1] == "properties":
		if r.Method != http.MethodGet {
			scope = auth.ScopeControl
		}
		h = func(w http.ResponseWriter, r *http.Request) { s.handleProperty(w, r, name, parts[2]) }
	case len(parts) == 2 && parts[1] == "errors":
		scope = auth.ScopeControl
		h = func(w http.ResponseWriter, r *http.Request) { s.handleErrors(w, r, name) }
	case len(parts) == 2 && parts[1] == "reset":
		scope = auth.ScopeControl
		h = func(w http.ResponseWriter, r *http.Request) { s.handleReset(w, r, name) }
	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
		return
	}
	s.auth.RequireScope(scope)(h)(w, r)
}

func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request, name string) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	info, err := s.bench.Get(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	WriteSuccess(w, info)
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request, name string) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id, err := s.orchestrator.Identify(r.Context(), name)
	if err != nil {
		writeErr(w, err)
		return
	}
	WriteSuccess(w, id)
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request, name string) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	descs, err := s.orchestrator.Describe(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	WriteSuccess(w, descs)
}

// propertyValue is the body of property reads and writes.
type propertyValue struct {
	Instrument string `json:"instrument,omitempty"`
	Property   string `json:"property,omitempty"`
	Value      string `json:"value"`
}

func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request, name, prop string) {
	if !allow(w, r, http.MethodGet, http.MethodPut, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		v, err := s.orchestrator.Get(r.Context(), name, prop)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteSuccess(w, propertyValue{Instrument: name, Property: prop, Value: v})
		return
	}

	var req propertyValue
	if !decodeStrict(r, &req) {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Expected {\"value\": \"<text>\"}", nil)
		return
	}
	if err := s.orchestrator.Set(r.Context(), name, prop, req.Value); err != nil {
		writeErr(w, err)
		return
	}
	WriteSuccess(w, propertyValue{Instrument: name, Property: prop, Value: req.Value})
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request, name string) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	errs, err := s.orchestrator.Errors(r.Context(), name)
	if err != nil {
		writeErr(w, err)
		return
	}
	type entry struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	out := make([]entry, 0, len(errs))
	for _, e := range errs {
		out = append(out, entry{e.Code, e.Message})
	}
	WriteSuccess(w, out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, name string) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.orchestrator.Reset(r.Context(), name); err != nil {
		writeErr(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"instrument": name})
}

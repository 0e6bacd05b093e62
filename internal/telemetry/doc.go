// Package telemetry streams bench events to HTTP clients as Server-Sent
// Events.
//
// Every event gets a process-wide monotonic ID. Recent events are kept in
// a bounded buffer so a client reconnecting with Last-Event-ID receives
// what it missed. Clients may filter by instrument with ?instrument=.
package telemetry

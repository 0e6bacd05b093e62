// Package property turns declarative property specs into typed accessors
// bound to an instrument session.
//
// A Spec pairs a query template ("FREQ?") and/or a write template
// ("FREQ %s") with an optional validator, an optional logical<->wire value
// map and error-queue check flags. Binding a Spec to a Session yields a
// Property whose Get and Set run the fixed pipelines:
//
//	Get: query -> ask -> [error check] -> parse/unmap -> value
//	Set: validate -> map -> format -> write -> [error check]
//
// Nothing is cached and nothing is retried. Every failure surfaces as one
// of the typed errors in this package: InvalidValueError (no I/O was
// performed), CommunicationError (transport), ProtocolError (unexpected
// response) or InstrumentError (the instrument's error queue reported a
// fault after the transaction).
//
// A Session must not be used by two goroutines at once; callers serialize
// access to one instrument themselves.
package property

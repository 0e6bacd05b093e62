// Package audit writes an append-only JSONL trail of instrument
// transactions and control actions.
//
// Each line is one Entry keyed by a monotonic ULID. The Logger is an
// instrument.Transcript, so every command a session sends is recorded along
// with the operator taken from the request context (WithUser). Files are
// rotated by size through lumberjack.
package audit

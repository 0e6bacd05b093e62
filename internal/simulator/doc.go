// Package simulator emulates SCPI instruments well enough to exercise the
// drivers without hardware.
//
// A Device holds one model's header table, loaded from a YAML profile,
// and executes program messages one at a time on a worker goroutine.
// Faults are reported the way instruments report them: through the
// SYST:ERR? queue (-113 undefined header, -222 data out of range, ...).
// Server exposes a Device over raw TCP, one message per line.
package simulator

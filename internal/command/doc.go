// Package command routes property reads and writes addressed by name to
// the bench instruments, with a per-command timeout, an audit record and
// an operation counter for every call.
package command

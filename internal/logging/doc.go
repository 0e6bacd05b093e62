// Package logging builds the process logger from configuration.
//
// Loggers are hclog loggers. Output goes to the given writer, or to a
// size-rotated file when a log file is configured, as JSON when the config
// asks for it.
package logging

// Package cli defines the pymeasure command-line tool.
//
// Instruments come from the configuration file or from --resource and
// --model for a one-off session. Every command opens the bench, runs one
// operation and closes it again.
package cli

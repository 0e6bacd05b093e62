// Package config loads bench, service and simulator settings.
//
// Precedence, lowest first: built-in defaults, the YAML file named by the
// caller or by PYMEASURE_CONFIG, PYMEASURE_* environment variables.
// The merged result is validated before it is returned.
package config

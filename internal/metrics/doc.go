// Package metrics exports instrument traffic as Prometheus metrics.
//
// Collectors live on a private registry under the "pymeasure" namespace.
// Transactions are counted and timed per instrument; property operations
// are counted by outcome.
package metrics

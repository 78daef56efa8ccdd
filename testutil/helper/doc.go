// Package helper provides test doubles for the syncqueue observability
// interfaces: a logger spy, a capturing slog handler, a metrics collector
// spy, and a tracing collector spy.
package helper

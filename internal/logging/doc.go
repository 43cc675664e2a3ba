// Package logging assembles structured slog loggers and formatting helpers
// used across ignition components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so daemon and tunnel code tag log
// lines with launcher names, PIDs, and session IDs consistently. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging

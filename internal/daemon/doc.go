// Package daemon coordinates the lifecycle of one detached launcher process
// and enforces single-instance execution.
//
// A Manager owns the launcher's PID file, an exclusive flock on it, and the
// signal-handling contract: TERM, INT, and HUP all route to one shutdown
// coordinator that terminates the entire process group exactly once and exits
// zero. The PID-file check before locking is a fast-path diagnostic; the
// flock is the mutual-exclusion mechanism and the kernel releases it however
// the process dies.
//
// Detaching from the terminal happens in internal/daemonctl by re-executing
// the binary in a new session; this package is the in-process side of that
// handoff.
package daemon

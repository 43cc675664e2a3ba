// Package pidfile reads launcher PID files and classifies whether the daemon
// they describe is still alive.
//
// A check walks a strict priority chain: a missing file short-circuits
// everything, an unparseable file short-circuits liveness, and liveness is
// established before the recorded process is queried for its command line.
// The command-line comparison against the current process is diagnostic
// logging only and never changes the result.
//
// The check is a fast path and user-facing diagnostic; the flock held by a
// running daemon (see internal/daemon) is the actual mutual-exclusion
// mechanism.
package pidfile

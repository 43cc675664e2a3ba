// Package daemonctl provides CLI-side orchestration of launcher daemons:
// detached spawning via re-exec, stop and restart sequencing, and lenient
// status snapshots for diagnostic output.
package daemonctl

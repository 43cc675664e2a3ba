// Package history records launcher lifecycle events in a small SQLite
// database under the log directory.
//
// The store is an operational audit trail (who started what, when, and with
// which PID), not a job queue; the workflow engine's own queue lives
// elsewhere and is out of ignition's scope.
package history

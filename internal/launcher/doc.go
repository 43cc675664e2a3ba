// Package launcher defines the long-running bodies of the managed daemons:
// the direct rocket worker, the queue-submitting worker, the offline recovery
// loop, and the SSH tunnel.
//
// The worker commands themselves belong to the external workflow engine;
// ignition only builds their command lines from configuration and keeps them
// running at the configured interval.
package launcher

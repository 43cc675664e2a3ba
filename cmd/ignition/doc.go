// Package main hosts the ignition CLI entrypoint and command graph.
//
// The Cobra-based command tree starts, stops, and inspects launcher daemons,
// runs the SSH port forward in the foreground, and scaffolds configuration.
// The hidden `run` command is the daemon body that `start` re-executes in a
// detached session.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

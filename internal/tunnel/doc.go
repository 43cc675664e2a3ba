// Package tunnel implements an SSH local port forward, the programmatic
// equivalent of "ssh -i key -N -L local:remote_host:remote_port user@jump".
//
// A local port of zero asks the OS for a free ephemeral port; the chosen port
// can be written to a side file so other processes discover it. Each accepted
// connection gets its own relay goroutine, so a failing connection never
// disturbs the accept loop or its siblings. The forward runs until the
// caller's context is cancelled.
package tunnel

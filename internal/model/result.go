package model

import "time"

// ExecResult is the immutable outcome of one subprocess execution.
// A non-zero exit code is a normal result, not an error; callers interpret
// exit codes themselves. TimedOut and Cancelled are mutually exclusive with
// each other and with a natural exit.
type ExecResult struct {
	// ExitCode is nil when the process was killed before exiting on its own.
	ExitCode *int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration

	TimedOut  bool
	Cancelled bool

	// Truncation flags are set when a stream exceeded the configured cap.
	StdoutTruncated bool
	StderrTruncated bool
}

// Exited reports whether the process ran to a natural exit.
func (r ExecResult) Exited() bool {
	return r.ExitCode != nil && !r.TimedOut && !r.Cancelled
}

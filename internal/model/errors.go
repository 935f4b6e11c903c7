package model

import (
	"errors"
)

var (
	// ErrToolNotFound means no resolution strategy produced a path for a
	// tool. It is a normal negative result, not an I/O failure.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolNotExecutable means a path exists but cannot be executed.
	ErrToolNotExecutable = errors.New("tool not executable")
	// ErrSpawn means the OS failed to start the process at all. Distinct
	// from a process that ran and exited non-zero.
	ErrSpawn = errors.New("process spawn failed")
	// ErrParse means a result parser rejected the tool output.
	ErrParse = errors.New("output parse failed")

	// Submission errors, raised synchronously and never entering the queue.
	ErrUnknownProfile = errors.New("unknown profile")
	ErrEmptyTarget    = errors.New("empty target")
	ErrEmptyTool      = errors.New("empty tool name")
)

package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job. Transitions only move forward:
// QUEUED -> RUNNING -> {COMPLETED | FAILED | CANCELLED}, with the extra
// QUEUED -> CANCELLED edge for jobs cancelled before dispatch.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal edge of the
// job state machine.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next.Terminal()
	}
	return false
}

// Job is the unit of work the scheduler manages. A Job is created by Submit,
// claimed by exactly one worker and mutated only by that worker for its whole
// lifetime. Callers always receive copies.
type Job struct {
	ID      uuid.UUID         `json:"id"`
	Target  string            `json:"target"`
	Tool    string            `json:"tool"`
	Profile string            `json:"profile"`
	Args    []string          `json:"args"`
	Options map[string]string `json:"options,omitempty"`

	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Error is set only when Status is failed.
	Error string `json:"error,omitempty"`
	// Summary is set only when Status is completed.
	Summary Summary `json:"summary,omitzero"`
}

// Summary holds the counters of a completed scan.
type Summary struct {
	HostsUp    int `json:"hosts_up"`
	PortsOpen  int `json:"ports_open"`
	PortsTotal int `json:"ports_total"`
}

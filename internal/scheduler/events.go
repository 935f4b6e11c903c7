package scheduler

import (
	"time"

	"github.com/reconware/sweeper/internal/model"
)

// EventType classifies a job lifecycle event.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Terminal reports whether the event marks the end of a job.
func (t EventType) Terminal() bool {
	switch t {
	case EventCompleted, EventFailed, EventCancelled:
		return true
	}
	return false
}

// Event is one job lifecycle notification. Job is a copy taken at emission
// time.
type Event struct {
	Type EventType
	Job  model.Job
	At   time.Time
}

// Events returns the lifecycle stream. The channel is bounded: when the
// consumer falls behind, new events are dropped and counted instead of
// blocking workers. The channel is closed by Stop.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Dropped returns how many events were discarded because the stream buffer
// was full.
func (s *Scheduler) Dropped() uint64 {
	return s.dropped.Load()
}

// emitLocked sends without blocking. Callers hold s.mx, which also
// serializes emission against the close in Stop.
func (s *Scheduler) emitLocked(e Event) {
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
	}
}

func eventTypeFor(status model.Status) EventType {
	switch status {
	case model.StatusCompleted:
		return EventCompleted
	case model.StatusFailed:
		return EventFailed
	case model.StatusCancelled:
		return EventCancelled
	case model.StatusRunning:
		return EventStarted
	}
	return EventQueued
}

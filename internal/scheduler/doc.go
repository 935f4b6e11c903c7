// Package scheduler implements the scan job queue and worker pool.
//
// Callers submit jobs (target + profile + options). Submission validates
// synchronously, everything after that is asynchronous: a bounded pool of
// workers pulls jobs off a FIFO queue, resolves the tool through the
// registry, executes it through the runner, hands the output to a parser
// collaborator and stores the report through a sink collaborator.
//
// Each job is claimed by exactly one worker and mutated only by it, so jobs
// need no locking of their own; only the scheduler's job table is shared.
// The pool size is a hard upper bound on concurrent subprocesses.
//
// State machine, per job:
//
//	QUEUED -> RUNNING -> {COMPLETED | FAILED | CANCELLED}
//	QUEUED -> CANCELLED              (cancel before dispatch)
//
// Terminal states are final, a cancel on a terminal job is a no-op.
// Errors after a job started never cross the worker boundary as errors:
// they land in the job's Error field and surface through the FAILED state.
//
// Observers get a bounded event stream via Events instead of callbacks run
// on worker goroutines; a slow consumer costs dropped events, never a
// blocked worker. OnCompletion callbacks exist for simple wiring and are
// invoked by the owning worker.
//
// Data flow:
//
//	Submit            queue           worker N                 collaborators
//	  |                 |                |                          |
//	  | validate ------>|                |                          |
//	  |                 |--- dequeue --->| registry.Get             |
//	  |                 |                | runner.Run ------------->| subprocess
//	  |                 |                | parser.Parse             |
//	  |                 |                | sink.Save (best effort)  |
//	  |                 |                | terminal state + event   |
package scheduler

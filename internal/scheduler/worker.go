package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/reconware/sweeper/internal/log"
	"github.com/reconware/sweeper/internal/model"
	"github.com/reconware/sweeper/internal/runner"
)

func (s *Scheduler) workerLoop(ctx context.Context, n int) {
	ctx = log.ContextAttrs(ctx, slog.Int("worker", n))
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.queue:
			if !ok {
				return
			}
			s.runJob(ctx, id)
		}
	}
}

// runJob drives one job from claim to terminal state. A panic anywhere in
// the iteration fails that job only, the worker keeps serving the queue.
func (s *Scheduler) runJob(ctx context.Context, id uuid.UUID) {
	st, jobCtx, ok := s.claim(ctx, id)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "job panicked", "job", id, "panic", r)
			s.finish(st, model.StatusFailed, fmt.Sprintf("internal error: %v", r), model.Summary{})
		}
	}()

	job := s.snapshot(st)
	jobCtx = log.ContextAttrs(jobCtx,
		slog.String("job", job.ID.String()),
		slog.String("tool", job.Tool),
		slog.String("target", job.Target),
	)
	slog.DebugContext(jobCtx, "job claimed", "profile", job.Profile)

	path, err := s.reg.Get(jobCtx, job.Tool)
	if err != nil {
		s.finish(st, model.StatusFailed, resolveErrorMessage(job.Tool, err), model.Summary{})
		return
	}

	res, err := s.run(jobCtx, runner.Command{
		Path:      path,
		Args:      job.Args,
		Timeout:   st.timeout,
		MaxOutput: s.cfg.MaxOutput,
	})
	switch {
	case err != nil:
		s.finish(st, model.StatusFailed, executionErrorMessage(job.Tool, err), model.Summary{})
		return
	case res.Cancelled || s.cancelWasRequested(st):
		// cancellation wins over a racing natural exit
		s.finish(st, model.StatusCancelled, "", model.Summary{})
		return
	case res.TimedOut:
		s.finish(st, model.StatusFailed, fmt.Sprintf(
			"%s timed out after %s: target unreachable or scan too slow for the configured timeout",
			job.Tool, st.timeout), model.Summary{})
		return
	}

	var summary model.Summary
	var report model.Report
	if s.parser != nil {
		report, err = s.parser.Parse(jobCtx, job, res)
		if err != nil {
			s.finish(st, model.StatusFailed, fmt.Sprintf(
				"%s output did not match the expected format, possibly a version mismatch: %v",
				job.Tool, err), model.Summary{})
			return
		}
		summary = report.Summarize()
	}

	job = s.finish(st, model.StatusCompleted, "", summary)

	if s.parser != nil && s.sink != nil {
		// persistence is best effort, the job stays COMPLETED either way
		if err := s.sink.Save(jobCtx, job, report); err != nil {
			slog.ErrorContext(jobCtx, "persisting report failed", "error", err)
		}
	}
	slog.InfoContext(jobCtx, "job completed",
		"duration", res.Duration.String(),
		"hosts_up", summary.HostsUp,
		"ports_open", summary.PortsOpen,
	)
}

// claim moves a queued job to RUNNING and attaches a cancel func for
// Cancel to use. Jobs already terminal (cancelled while queued) are
// skipped.
func (s *Scheduler) claim(ctx context.Context, id uuid.UUID) (*jobState, context.Context, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	st, ok := s.jobs[id]
	if !ok || st.job.Status != model.StatusQueued {
		return nil, nil, false
	}

	jobCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	st.job.Status = model.StatusRunning
	st.job.StartedAt = time.Now().UTC()
	s.emitLocked(Event{Type: EventStarted, Job: st.job, At: st.job.StartedAt})
	return st, jobCtx, true
}

func (s *Scheduler) snapshot(st *jobState) model.Job {
	s.mx.Lock()
	defer s.mx.Unlock()
	return st.job
}

func (s *Scheduler) cancelWasRequested(st *jobState) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return st.cancelRequested
}

// finish moves a job into a terminal state, emits the matching event and
// invokes completion callbacks. Finishing an already terminal job is a
// no-op; terminal states never change.
func (s *Scheduler) finish(st *jobState, status model.Status, errMsg string, summary model.Summary) model.Job {
	s.mx.Lock()
	job := s.finishLocked(st, status, errMsg, summary)
	fns := slices.Clone(s.completionFns)
	s.mx.Unlock()

	for _, fn := range fns {
		fn(job)
	}
	return job
}

func (s *Scheduler) finishLocked(st *jobState, status model.Status, errMsg string, summary model.Summary) model.Job {
	if st.job.Status.Terminal() || !st.job.Status.CanTransition(status) {
		return st.job
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.job.Status = status
	st.job.CompletedAt = time.Now().UTC()
	st.job.Error = errMsg
	st.job.Summary = summary
	s.emitLocked(Event{Type: eventTypeFor(status), Job: st.job, At: st.job.CompletedAt})
	return st.job
}

func resolveErrorMessage(tool string, err error) string {
	if errors.Is(err, model.ErrToolNotFound) {
		return fmt.Sprintf("tool %q not found: install it or configure an explicit path for it", tool)
	}
	return fmt.Sprintf("resolving tool %q: %v", tool, err)
}

func executionErrorMessage(tool string, err error) string {
	switch {
	case errors.Is(err, model.ErrToolNotFound):
		return fmt.Sprintf("tool %q disappeared after resolution: reinstall it or refresh the tool cache", tool)
	case errors.Is(err, model.ErrToolNotExecutable):
		return fmt.Sprintf("tool %q is not executable: check file permissions", tool)
	}
	return fmt.Sprintf("executing %q: %v", tool, err)
}

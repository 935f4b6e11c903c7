package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/reconware/sweeper/internal/model"
	"github.com/reconware/sweeper/internal/registry"
	"github.com/reconware/sweeper/internal/runner"
)

var (
	ErrNotStarted = errors.New("scheduler not started")
	ErrStopped    = errors.New("scheduler stopped")
	ErrQueueFull  = errors.New("job queue full")
	ErrUnknownJob = errors.New("unknown job")
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultEventBuffer = 64
)

// Parser turns raw tool output into a report. Implementations live outside
// the engine; a parse failure fails the job.
type Parser interface {
	Parse(ctx context.Context, job model.Job, res model.ExecResult) (model.Report, error)
}

// Sink persists a report of a completed job. Saving is best effort: a sink
// failure is logged and never changes the job's terminal state.
type Sink interface {
	Save(ctx context.Context, job model.Job, report model.Report) error
}

// RunFunc executes one subprocess. The default is runner.Run.
type RunFunc func(ctx context.Context, cmd runner.Command) (model.ExecResult, error)

// Profile is a named preset mapping scan intent to a concrete base
// argument list for a tool.
type Profile struct {
	Tool    string
	Args    []string
	Timeout time.Duration
}

// Config is an immutable snapshot taken at construction time.
type Config struct {
	Workers     int
	QueueSize   int
	EventBuffer int
	MaxOutput   int
	Profiles    map[string]Profile
}

// Request is one job submission.
type Request struct {
	Target  string
	Profile string
	// Tool overrides the profile's tool when set.
	Tool string
	// Options are appended after the profile's base arguments, in key
	// order. The scheduler does not deduplicate conflicting flags, the
	// underlying tool's last-flag-wins semantics decide.
	Options map[string]string
}

type jobState struct {
	job     model.Job
	timeout time.Duration
	cancel  context.CancelFunc
	// cancelRequested is set by Cancel and read by the owning worker to
	// break the tie between cancellation and natural completion.
	cancelRequested bool
}

// Scheduler accepts scan jobs and runs them on a bounded worker pool.
type Scheduler struct {
	cfg    Config
	reg    *registry.Registry
	parser Parser
	sink   Sink
	run    RunFunc

	mx            sync.Mutex
	jobs          map[uuid.UUID]*jobState
	order         []uuid.UUID
	queue         chan uuid.UUID
	started       bool
	stopping      bool
	stopped       bool
	queueClosed   bool
	eventsClosed  bool
	cancelAll     context.CancelFunc
	completionFns []func(model.Job)

	wg      sync.WaitGroup
	events  chan Event
	dropped atomic.Uint64
}

// New builds a Scheduler over the given registry and collaborators.
// Either collaborator may be nil: a nil parser completes jobs with an
// empty summary, a nil sink skips persistence.
func New(cfg Config, reg *registry.Registry, parser Parser, sink Sink) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	return &Scheduler{
		cfg:    cfg,
		reg:    reg,
		parser: parser,
		sink:   sink,
		run:    runner.Run,
		jobs:   make(map[uuid.UUID]*jobState),
		queue:  make(chan uuid.UUID, cfg.QueueSize),
		events: make(chan Event, cfg.EventBuffer),
	}
}

// WithRunFunc swaps the subprocess executor. This method exists for unit
// testing only.
func (s *Scheduler) WithRunFunc(run RunFunc) *Scheduler {
	s.run = run
	return s
}

// Submit validates the request, enqueues a new job in QUEUED state and
// returns its id without blocking. Validation errors are returned
// synchronously and never produce a job.
func (s *Scheduler) Submit(req Request) (uuid.UUID, error) {
	profile, ok := s.cfg.Profiles[req.Profile]
	if !ok {
		return uuid.Nil, fmt.Errorf("%q: %w", req.Profile, model.ErrUnknownProfile)
	}

	target := strings.TrimSpace(req.Target)
	if target == "" {
		target = strings.TrimSpace(req.Options["target"])
	}
	if target == "" {
		return uuid.Nil, model.ErrEmptyTarget
	}

	tool := req.Tool
	if tool == "" {
		tool = profile.Tool
	}
	if tool == "" {
		return uuid.Nil, model.ErrEmptyTool
	}

	job := model.Job{
		ID:        uuid.New(),
		Target:    target,
		Tool:      tool,
		Profile:   req.Profile,
		Args:      composeArgs(profile.Args, req.Options, target),
		Options:   req.Options,
		Status:    model.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	if s.stopping || s.stopped {
		return uuid.Nil, ErrStopped
	}
	select {
	case s.queue <- job.ID:
	default:
		return uuid.Nil, ErrQueueFull
	}
	s.jobs[job.ID] = &jobState{job: job, timeout: profile.Timeout}
	s.order = append(s.order, job.ID)
	s.emitLocked(Event{Type: EventQueued, Job: job, At: job.CreatedAt})
	return job.ID, nil
}

// composeArgs builds the argument vector: profile base arguments, then
// option flags in key order, then the target. Option composition is a
// plain pass-through, a value-less option contributes the flag alone.
func composeArgs(base []string, options map[string]string, target string) []string {
	args := slices.Clone(base)
	keys := make([]string, 0, len(options))
	for k := range options {
		if k == "target" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k)
		if v := options[k]; v != "" {
			args = append(args, v)
		}
	}
	return append(args, target)
}

// Start launches n workers (n <= 0 means the configured default).
// Idempotent when already started. The workers stop when ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context, n int) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	if n <= 0 {
		n = s.cfg.Workers
	}

	ctx, s.cancelAll = context.WithCancel(ctx)
	for i := range n {
		s.wg.Go(func() {
			s.workerLoop(ctx, i)
		})
	}
	s.started = true
	return nil
}

// Stop shuts the pool down. With wait the queue is drained and in-flight
// jobs run to completion; without it in-flight subprocesses are cancelled
// and queued jobs stay queued. The event channel is closed once all
// workers returned. Stop is idempotent.
func (s *Scheduler) Stop(wait bool) {
	s.mx.Lock()
	if s.stopped {
		s.mx.Unlock()
		return
	}
	s.stopping = true
	cancelAll := s.cancelAll
	if wait && !s.queueClosed {
		close(s.queue)
		s.queueClosed = true
	}
	s.mx.Unlock()

	if !wait && cancelAll != nil {
		cancelAll()
	}
	s.wg.Wait()
	if cancelAll != nil {
		cancelAll()
	}

	s.mx.Lock()
	s.stopped = true
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
	s.mx.Unlock()
}

// Cancel requests cancellation of a job. A job still in the queue turns
// CANCELLED immediately and never reaches a worker; a running job gets its
// subprocess terminated. Cancelling a terminal job, or cancelling twice,
// is a no-op.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	s.mx.Lock()
	st, ok := s.jobs[id]
	if !ok {
		s.mx.Unlock()
		return fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	if st.job.Status.Terminal() {
		s.mx.Unlock()
		return nil
	}
	st.cancelRequested = true

	if st.job.Status == model.StatusQueued {
		// the queue entry stays behind, the claiming worker skips
		// terminal jobs
		job := s.finishLocked(st, model.StatusCancelled, "", model.Summary{})
		fns := slices.Clone(s.completionFns)
		s.mx.Unlock()
		for _, fn := range fns {
			fn(job)
		}
		return nil
	}

	cancel := st.cancel
	s.mx.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Job returns a copy of the job with the given id.
func (s *Scheduler) Job(id uuid.UUID) (model.Job, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	st, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return st.job, true
}

// Jobs returns copies of all jobs in submission order, optionally filtered
// by status.
func (s *Scheduler) Jobs(statuses ...model.Status) []model.Job {
	s.mx.Lock()
	defer s.mx.Unlock()
	out := make([]model.Job, 0, len(s.order))
	for _, id := range s.order {
		st := s.jobs[id]
		if len(statuses) > 0 && !slices.Contains(statuses, st.job.Status) {
			continue
		}
		out = append(out, st.job)
	}
	return out
}

// OnCompletion registers fn to be invoked with a copy of every job that
// reaches a terminal state. fn runs on the owning worker goroutine and
// must not block; anything heavier belongs on the Events stream.
func (s *Scheduler) OnCompletion(fn func(model.Job)) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.completionFns = append(s.completionFns, fn)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/reconware/sweeper/internal/config"
	"github.com/reconware/sweeper/internal/model"
	"github.com/reconware/sweeper/internal/nmapxml"
	"github.com/reconware/sweeper/internal/registry"
	"github.com/reconware/sweeper/internal/scheduler"
	"github.com/reconware/sweeper/internal/store"
)

// engine bundles the wired-up collaborators a command works with.
type engine struct {
	reg     *registry.Registry
	sched   *scheduler.Scheduler
	store   *store.Store // nil when persistence is off
	reports *reportCapture
}

func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	reg := registry.New(cfg.RegistryConfig(), nil)
	if err := cfg.ApplyTools(ctx, reg); err != nil {
		return nil, err
	}

	e := &engine{
		reg:     reg,
		reports: &reportCapture{reports: make(map[uuid.UUID]model.Report)},
	}
	if path := cfg.StorePath(); path != "" {
		st, err := store.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		e.store = st
		e.reports.next = st
	}

	e.sched = scheduler.New(cfg.SchedulerConfig(), reg, nmapxml.Parser{}, e.reports)
	return e, nil
}

// close releases resources; the scheduler must already be stopped.
func (e *engine) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			slog.Error("closing report store failed", "error", err)
		}
	}
}

// reportCapture keeps parsed reports in memory for export and forwards
// them to the persistent store when one is configured.
type reportCapture struct {
	mx      sync.Mutex
	reports map[uuid.UUID]model.Report
	next    scheduler.Sink
}

func (c *reportCapture) Save(ctx context.Context, job model.Job, report model.Report) error {
	c.mx.Lock()
	c.reports[job.ID] = report
	c.mx.Unlock()

	if c.next != nil {
		if err := c.next.Save(ctx, job, report); err != nil {
			return fmt.Errorf("persisting report: %w", err)
		}
	}
	return nil
}

func (c *reportCapture) get(id uuid.UUID) (model.Report, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	report, ok := c.reports[id]
	return report, ok
}

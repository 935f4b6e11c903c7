package main

import (
	"errors"
	"fmt"
	"log/slog"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/reconware/sweeper/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run keeps scanning the configured targets on the configured schedule",
	RunE:  doRun,
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc := cfg.Service
	if svc == nil {
		return errors.New("run needs a [service] section with schedule and targets")
	}

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.sched.Start(ctx, 0); err != nil {
		return err
	}

	submitAll := func() {
		for _, target := range svc.Targets {
			id, err := e.sched.Submit(scheduler.Request{
				Target:  target,
				Profile: svc.ProfileName(),
			})
			if err != nil {
				slog.Error("submitting scheduled scan failed", "target", target, "error", err)
				continue
			}
			slog.Debug("scheduled scan submitted", "job", id, "target", target)
		}
	}

	timer, err := newTimer(svc.Schedule, submitAll)
	if err != nil {
		return err
	}
	timer.Start()
	defer func() {
		if err := timer.Shutdown(); err != nil {
			slog.Error("shutting down gocron has failed", "error", err)
		}
	}()

	slog.Info("service started", "schedule", svc.Schedule, "targets", len(svc.Targets))

	// kick off the first sweep right away, the cron only fires later
	submitAll()

	events := e.sched.Events()
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down, cancelling in-flight scans")
			e.sched.Stop(false)
			if dropped := e.sched.Dropped(); dropped > 0 {
				slog.Warn("event subscribers lagged", "dropped", dropped)
			}
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logEvent(ev)
		}
	}
}

func logEvent(ev scheduler.Event) {
	attrs := []any{
		"job", ev.Job.ID,
		"target", ev.Job.Target,
		"tool", ev.Job.Tool,
	}
	switch ev.Type {
	case scheduler.EventCompleted:
		attrs = append(attrs,
			"hosts_up", ev.Job.Summary.HostsUp,
			"ports_open", ev.Job.Summary.PortsOpen,
		)
		slog.Info("scan completed", attrs...)
	case scheduler.EventFailed:
		attrs = append(attrs, "error", ev.Job.Error)
		slog.Error("scan failed", attrs...)
	default:
		slog.Debug("scan "+string(ev.Type), attrs...)
	}
}

func newTimer(schedule string, task func()) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(task),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reconware/sweeper/internal/bom"
	"github.com/reconware/sweeper/internal/model"
	"github.com/reconware/sweeper/internal/scheduler"
)

var (
	flagScanProfile string
	flagScanBOM     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [target...]",
	Short: "scan runs a one-shot scan of the given targets and prints the results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doScan,
}

func init() {
	scanCmd.Flags().StringVar(&flagScanProfile, "profile", "default", "scan profile to use")
	scanCmd.Flags().BoolVar(&flagScanBOM, "bom", false, "print a CycloneDX BOM for each completed scan")
}

func doScan(cmd *cobra.Command, targets []string) error {
	ctx := cmd.Context()

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.sched.Start(ctx, 0); err != nil {
		return err
	}

	for _, target := range targets {
		id, err := e.sched.Submit(scheduler.Request{
			Target:  target,
			Profile: flagScanProfile,
		})
		if err != nil {
			e.sched.Stop(false)
			return fmt.Errorf("submitting scan of %s: %w", target, err)
		}
		slog.Debug("scan submitted", "job", id, "target", target)
	}

	// cancel in-flight subprocesses on SIGINT instead of waiting them out
	go func() {
		<-ctx.Done()
		e.sched.Stop(false)
	}()

	e.sched.Stop(true)

	var failed int
	for _, job := range e.sched.Jobs() {
		switch job.Status {
		case model.StatusCompleted:
			fmt.Printf("%s\t%s\thosts up: %d, open ports: %d/%d\n",
				job.Target, job.Status,
				job.Summary.HostsUp, job.Summary.PortsOpen, job.Summary.PortsTotal)
		default:
			failed++
			fmt.Printf("%s\t%s\t%s\n", job.Target, job.Status, job.Error)
		}

		if flagScanBOM && job.Status == model.StatusCompleted {
			report, ok := e.reports.get(job.ID)
			if !ok {
				continue
			}
			if err := bom.FromReport(job, report).AsJSON(os.Stdout); err != nil {
				return fmt.Errorf("encoding BOM for %s: %w", job.Target, err)
			}
		}
	}
	if dropped := e.sched.Dropped(); dropped > 0 {
		slog.Warn("event subscribers lagged", "dropped", dropped)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans did not complete", failed, len(targets))
	}
	return nil
}

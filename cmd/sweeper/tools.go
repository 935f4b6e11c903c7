package main

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reconware/sweeper/internal/model"
)

var flagToolsCheck bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "tools lists the scan tools sweeper knows about and where it found them",
	RunE:  doTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&flagToolsCheck, "check", false, "re-resolve every tool instead of trusting the cache")
}

func doTools(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	names := e.reg.Names()
	for _, profile := range cfg.SchedulerProfiles() {
		if !slices.Contains(names, profile.Tool) {
			names = append(names, profile.Tool)
		}
	}
	slices.Sort(names)

	if flagToolsCheck {
		pinned := make(map[string]bool)
		for _, d := range e.reg.Snapshot() {
			pinned[d.Name] = d.Pinned
		}

		// resolve concurrently, a tool missing on purpose should not
		// serialize the probe of the others
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, name := range names {
			g.Go(func() error {
				if !pinned[name] {
					e.reg.Invalidate(name)
				}
				// a failed resolve shows up in the table below
				_, _ = e.reg.Get(gctx, name)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, name := range names {
			_, _ = e.reg.Get(ctx, name)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tAVAILABLE\tVERSION\tSOURCE\tPATH\tCHECKED")
	for _, d := range e.reg.Snapshot() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name, available(d), orDash(d.Version), orDash(d.Source),
			orDash(d.Path), checked(d))
	}
	return w.Flush()
}

func available(d model.ToolDescriptor) string {
	if d.Available {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func checked(d model.ToolDescriptor) string {
	if d.LastChecked.IsZero() {
		return "-"
	}
	return d.LastChecked.Local().Format("2006-01-02 15:04:05")
}

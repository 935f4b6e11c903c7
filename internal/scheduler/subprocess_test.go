package scheduler_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconware/sweeper/internal/model"
	"github.com/reconware/sweeper/internal/registry"
	"github.com/reconware/sweeper/internal/scheduler"
)

// installTool drops an executable shell script named tool into a temp dir
// and wires that dir into a fresh registry, so discovery finds it the same
// way it would find a real scanner.
func installTool(t *testing.T, tool, body string) *registry.Registry {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipped, test fixtures are shell scripts")
	}
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, tool), []byte("#!/bin/sh\n"+body+"\n"), 0o755)
	require.NoError(t, err)

	reg := registry.New(registry.Config{}, nil)
	reg.AddSearchPath(tool, dir)
	return reg
}

func TestEndToEndCompletes(t *testing.T) {
	t.Parallel()
	reg := installTool(t, "fakescan", `echo "scan of $3"`)

	profiles := map[string]scheduler.Profile{
		"default": {Tool: "fakescan", Args: []string{"-oX", "-"}, Timeout: 30 * time.Second},
	}
	s := scheduler.New(scheduler.Config{Profiles: profiles}, reg, nil, nil)
	require.NoError(t, s.Start(t.Context(), 2))

	id, err := s.Submit(scheduler.Request{Target: "192.0.2.10", Profile: "default"})
	require.NoError(t, err)

	job := waitTerminal(t, s, id)
	require.Equal(t, model.StatusCompleted, job.Status)
	require.Empty(t, job.Error)
	require.False(t, job.StartedAt.IsZero())
	require.False(t, job.CompletedAt.Before(job.StartedAt))
	s.Stop(true)
}

func TestEndToEndTimeout(t *testing.T) {
	t.Parallel()
	// answer version probes instantly so only the scan itself is slow
	reg := installTool(t, "slowscan", `case "$1" in --version|-V|-version|version) echo "slowscan 1.0.0"; exit 0;; esac
sleep 30`)

	profiles := map[string]scheduler.Profile{
		"default": {Tool: "slowscan", Timeout: 300 * time.Millisecond},
	}
	s := scheduler.New(scheduler.Config{Profiles: profiles}, reg, nil, nil)
	require.NoError(t, s.Start(t.Context(), 1))
	t.Cleanup(func() { s.Stop(false) })

	started := time.Now()
	id, err := s.Submit(scheduler.Request{Target: "192.0.2.10", Profile: "default"})
	require.NoError(t, err)

	job := waitTerminal(t, s, id)
	require.Equal(t, model.StatusFailed, job.Status)
	require.Contains(t, job.Error, "timed out")
	require.Less(t, time.Since(started), 1500*time.Millisecond, "the kill must follow the deadline promptly, not wait out the sleep")
}

func TestEndToEndCancelKillsSubprocess(t *testing.T) {
	t.Parallel()
	reg := installTool(t, "hangscan", `case "$1" in --version|-V|-version|version) echo "hangscan 1.0.0"; exit 0;; esac
echo started
sleep 30`)

	profiles := map[string]scheduler.Profile{
		"default": {Tool: "hangscan", Timeout: time.Minute},
	}
	s := scheduler.New(scheduler.Config{Profiles: profiles}, reg, nil, nil)
	require.NoError(t, s.Start(t.Context(), 1))
	t.Cleanup(func() { s.Stop(false) })

	id, err := s.Submit(scheduler.Request{Target: "192.0.2.10", Profile: "default"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, ok := s.Job(id)
		return ok && job.Status == model.StatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	started := time.Now()
	require.NoError(t, s.Cancel(id))

	job := waitTerminal(t, s, id)
	require.Equal(t, model.StatusCancelled, job.Status)
	require.Less(t, time.Since(started), 5*time.Second, "cancellation must not wait out the sleep")
}

package sweeper_test

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reconware/sweeper/internal/model"
	"github.com/reconware/sweeper/internal/nmapxml"
	"github.com/reconware/sweeper/internal/registry"
	"github.com/reconware/sweeper/internal/scheduler"
	"github.com/reconware/sweeper/internal/store"
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		slog.Warn("integration tests with -short are ignored")
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// TestScanContainer drives the whole pipeline against a live container:
// discovery finds the real nmap, the scheduler runs it, the parser reads
// its XML and the store keeps the report.
func TestScanContainer(t *testing.T) {
	if _, err := exec.LookPath("nmap"); err != nil {
		t.Skip("nmap binary is missing in PATH")
	}

	ctx := t.Context()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nginx:alpine",
			ExposedPorts: []string{"80/tcp"},
			WaitingFor:   wait.ForListeningPort("80/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("starting container (is docker running?): %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "80")
	require.NoError(t, err)

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })

	reg := registry.New(registry.Config{}, nil)
	profiles := map[string]scheduler.Profile{
		"ci": {Tool: "nmap", Args: []string{"-oX", "-", "-Pn"}, Timeout: 2 * time.Minute},
	}
	s := scheduler.New(scheduler.Config{Profiles: profiles}, reg, nmapxml.Parser{}, st)
	require.NoError(t, s.Start(ctx, 1))

	id, err := s.Submit(scheduler.Request{
		Target:  host,
		Profile: "ci",
		Options: map[string]string{"-p": port.Port()},
	})
	require.NoError(t, err)
	s.Stop(true)

	job, ok := s.Job(id)
	require.True(t, ok)
	require.Equal(t, model.StatusCompleted, job.Status, "error: %s", job.Error)
	require.Equal(t, 1, job.Summary.HostsUp)
	require.Equal(t, 1, job.Summary.PortsOpen)

	report, err := st.Report(context.Background(), job.ID.String())
	require.NoError(t, err)
	require.Len(t, report.Hosts, 1)
	require.Equal(t, 1, len(report.Hosts[0].Ports))
	require.Equal(t, "open", report.Hosts[0].Ports[0].State)
}

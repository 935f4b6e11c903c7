package discover_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconware/sweeper/internal/discover"
	"github.com/reconware/sweeper/internal/model"
)

// fakeTool drops an executable shell script named name into dir.
func fakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipped, test fixtures are shell scripts")
	}
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)
	require.NoError(t, err)
	return path
}

func TestResolveInput(t *testing.T) {
	t.Parallel()

	_, err := discover.Resolve(t.Context(), "", nil)
	require.ErrorIs(t, err, model.ErrEmptyTool)

	_, err = discover.Resolve(t.Context(), "   ", nil)
	require.ErrorIs(t, err, model.ErrEmptyTool)

	_, err = discover.Resolve(t.Context(), "a"+string(os.PathSeparator)+"b", nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrToolNotFound)
}

func TestResolveCustomDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := fakeTool(t, dir, "echo-tool", `echo "echo-tool 1.2.3"`)

	res, err := discover.Resolve(t.Context(), "echo-tool", []string{dir})
	require.NoError(t, err)
	require.Equal(t, path, res.Path)
	require.Equal(t, discover.SourceOverride, res.Source)
	require.Equal(t, "1.2.3", res.Version)
}

func TestResolveCustomDirNotExecutable(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("skipped, no execute bit on windows")
	}
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "dull-tool"), []byte("data"), 0o644)
	require.NoError(t, err)

	_, err = discover.Resolve(t.Context(), "dull-tool", []string{dir})
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrToolNotExecutable)
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	path := fakeTool(t, dir, "path-tool", "exit 0")
	t.Setenv("PATH", dir)

	res, err := discover.Resolve(t.Context(), "path-tool", nil)
	require.NoError(t, err)
	require.Equal(t, path, res.Path)
	require.Equal(t, discover.SourcePath, res.Source)
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()
	_, err := discover.Resolve(t.Context(), "no-such-tool-simply-not-there", []string{t.TempDir()})
	require.ErrorIs(t, err, model.ErrToolNotFound)
}

func TestDetectVersion(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := fakeTool(t, dir, "verbose-tool", `echo "verbose-tool version v2.0.1 (build 7)"`)
	require.Equal(t, "2.0.1", discover.DetectVersion(t.Context(), path))

	path = fakeTool(t, dir, "mute-tool", "exit 1")
	require.Equal(t, "unknown", discover.DetectVersion(t.Context(), path))
}

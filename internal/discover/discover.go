// Package discover locates external scan tool binaries on the local system.
//
// Resolution tries an ordered set of strategies and stops at the first hit:
//
//  1. caller supplied search directories (per-tool overrides)
//  2. the process PATH via exec.LookPath
//  3. a fixed per-OS table of well known install directories
//  4. the Windows uninstall registry (windows only)
//
// A miss on every strategy is a normal negative result reported as
// model.ErrToolNotFound. Only malformed input and filesystem errors other
// than "does not exist" surface as distinct errors, so callers can tell
// "not installed" from "not readable".
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/reconware/sweeper/internal/model"
)

// Source says which strategy produced a resolution.
type Source string

const (
	SourceOverride  Source = "override"
	SourcePath      Source = "path"
	SourceWellKnown Source = "well-known"
	SourceRegistry  Source = "registry"
)

// Resolution is a successful tool lookup.
type Resolution struct {
	Path    string
	Source  Source
	Version string
}

// Resolve locates the binary for name. The custom directories are probed
// first, in order. The returned error is model.ErrToolNotFound for a plain
// miss, model.ErrEmptyTool for empty input, or a wrapped filesystem error
// when probing failed for another reason (typically permissions).
func Resolve(ctx context.Context, name string, custom []string) (Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{}, model.ErrEmptyTool
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		return Resolution{}, fmt.Errorf("tool name %q must not contain a path separator", name)
	}

	exe := exeName(name)
	var probeErr error

	// strategy 1: caller supplied directories
	for _, dir := range custom {
		path, err := probe(filepath.Join(dir, exe))
		switch {
		case err == nil:
			return found(ctx, path, SourceOverride), nil
		case !errors.Is(err, fs.ErrNotExist):
			probeErr = errors.Join(probeErr, err)
		}
	}

	// strategy 2: PATH
	if path, err := exec.LookPath(name); err == nil {
		if abs, aerr := filepath.Abs(path); aerr == nil {
			path = abs
		}
		return found(ctx, path, SourcePath), nil
	}

	// strategy 3: well known install directories for this OS
	for _, dir := range wellKnownDirs(name) {
		path, err := probe(filepath.Join(dir, exe))
		switch {
		case err == nil:
			return found(ctx, path, SourceWellKnown), nil
		case !errors.Is(err, fs.ErrNotExist):
			probeErr = errors.Join(probeErr, err)
		}
	}

	// strategy 4: installed application metadata (windows only)
	if path, err := registryLookup(name, exe); err == nil {
		return found(ctx, path, SourceRegistry), nil
	}

	if probeErr != nil {
		return Resolution{}, fmt.Errorf("probing for %q: %w", name, probeErr)
	}
	return Resolution{}, fmt.Errorf("%q: %w", name, model.ErrToolNotFound)
}

func found(ctx context.Context, path string, src Source) Resolution {
	return Resolution{
		Path:    path,
		Source:  src,
		Version: DetectVersion(ctx, path),
	}
}

// CheckExecutable verifies that path points at a runnable regular file.
// Used by callers pinning explicit tool paths.
func CheckExecutable(path string) error {
	_, err := probe(path)
	return err
}

// probe checks that path exists and is a runnable regular file.
func probe(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fs.ErrNotExist
	}
	if !isExecutable(info) {
		return "", fmt.Errorf("%s: %w", path, model.ErrToolNotExecutable)
	}
	return path, nil
}

// Package registry caches tool resolutions across workers and process
// restarts.
//
// The cache is read-mostly and shared by all workers. Concurrent misses for
// the same tool collapse into one discovery pass (singleflight), negative
// outcomes are cached too and re-probed only after a staleness threshold.
// Positive outcomes are trusted until explicitly invalidated; the process
// executor still treats a cached path as advisory and reports a vanished
// binary as its own failure.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reconware/sweeper/internal/discover"
	"github.com/reconware/sweeper/internal/model"
)

// DefaultStaleAfter is how long a cached "not found" is trusted before the
// next Get triggers a fresh discovery pass.
const DefaultStaleAfter = time.Hour

type Config struct {
	// Path of the JSON cache file. Empty keeps the cache in memory only.
	Path string
	// StaleAfter overrides DefaultStaleAfter when positive.
	StaleAfter time.Duration
}

// ResolveFunc is the discovery strategy, swappable in tests.
type ResolveFunc func(ctx context.Context, name string, custom []string) (discover.Resolution, error)

type Registry struct {
	mx      sync.RWMutex
	entries map[string]*model.ToolDescriptor

	sf         singleflight.Group
	resolve    ResolveFunc
	path       string
	staleAfter time.Duration
	now        func() time.Time
}

// New loads the cache file when cfg.Path names one. A missing file is a
// fresh start, a corrupt one is logged and discarded.
func New(cfg Config, resolve ResolveFunc) *Registry {
	if resolve == nil {
		resolve = discover.Resolve
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	r := &Registry{
		entries:    make(map[string]*model.ToolDescriptor),
		resolve:    resolve,
		path:       cfg.Path,
		staleAfter: staleAfter,
		now:        time.Now,
	}
	r.load()
	return r
}

// Get returns the executable path for name, resolving and caching it on a
// miss. A cached or fresh negative outcome is model.ErrToolNotFound.
func (r *Registry) Get(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", model.ErrEmptyTool
	}

	if path, err, ok := r.cached(name); ok {
		return path, err
	}

	v, err, _ := r.sf.Do(name, func() (any, error) {
		// a racing caller may have refreshed the entry while this one was
		// waiting for the flight slot
		if path, err, ok := r.cached(name); ok {
			if err != nil {
				return "", err
			}
			return path, nil
		}
		return r.refresh(ctx, name)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// cached returns the decision for name when the cache can answer without
// a discovery pass.
func (r *Registry) cached(name string) (string, error, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return "", nil, false
	}
	if e.Available || e.Pinned {
		return e.Path, nil, true
	}
	if !e.LastChecked.IsZero() && r.now().Sub(e.LastChecked) < r.staleAfter {
		return "", fmt.Errorf("%q: %w", name, model.ErrToolNotFound), true
	}
	return "", nil, false
}

// refresh runs discovery for name and stores the outcome. Only a positive
// hit or a verified "not found" is cached; a probe error is retried once
// and otherwise leaves the entry untouched, so the next Get resolves again
// and the error keeps its own kind.
func (r *Registry) refresh(ctx context.Context, name string) (string, error) {
	custom := r.searchPaths(name)

	res, err := r.resolve(ctx, name, custom)
	if err != nil && !errors.Is(err, model.ErrToolNotFound) && !errors.Is(err, model.ErrEmptyTool) {
		slog.WarnContext(ctx, "tool discovery failed, retrying once", "tool", name, "error", err)
		res, err = r.resolve(ctx, name, custom)
	}

	r.mx.Lock()
	switch {
	case err == nil:
		e := r.entry(name)
		e.LastChecked = r.now()
		e.Path = res.Path
		e.Version = res.Version
		e.Available = true
		e.Source = string(res.Source)
		r.persistLocked(ctx)
	case errors.Is(err, model.ErrToolNotFound):
		e := r.entry(name)
		e.LastChecked = r.now()
		e.Path = ""
		e.Version = "unknown"
		e.Available = false
		e.Source = ""
		r.persistLocked(ctx)
	}
	r.mx.Unlock()

	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// Invalidate forces the next Get for name to run discovery again.
// Clears an explicit override as well.
func (r *Registry) Invalidate(name string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.Available = false
	e.Pinned = false
	e.LastChecked = time.Time{}
	r.persistLocked(context.Background())
}

// SetOverride pins name to an explicit path, bypassing discovery. The path
// is validated once, at set time.
func (r *Registry) SetOverride(ctx context.Context, name, path string) error {
	if name == "" {
		return model.ErrEmptyTool
	}
	if err := discover.CheckExecutable(path); err != nil {
		return fmt.Errorf("override for %q: %w", name, err)
	}

	version := discover.DetectVersion(ctx, path)

	r.mx.Lock()
	defer r.mx.Unlock()
	e := r.entry(name)
	e.Path = path
	e.Version = version
	e.Available = true
	e.Pinned = true
	e.Source = string(discover.SourceOverride)
	e.LastChecked = r.now()
	r.persistLocked(ctx)
	return nil
}

// AddSearchPath appends dir to the per-tool override search list and marks
// the entry stale so the next Get takes the new directory into account.
func (r *Registry) AddSearchPath(name, dir string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	e := r.entry(name)
	if slices.Contains(e.SearchPaths, dir) {
		return
	}
	e.SearchPaths = append(e.SearchPaths, dir)
	if !e.Pinned {
		e.Available = false
		e.LastChecked = time.Time{}
	}
	r.persistLocked(context.Background())
}

// Snapshot returns copies of all descriptors, ordered by name.
func (r *Registry) Snapshot() []model.ToolDescriptor {
	r.mx.RLock()
	defer r.mx.RUnlock()

	out := make([]model.ToolDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		d := *e
		d.SearchPaths = slices.Clone(e.SearchPaths)
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b model.ToolDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns the names of all known tools, ordered.
func (r *Registry) Names() []string {
	r.mx.RLock()
	defer r.mx.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// entry returns the descriptor for name, creating it when absent.
// Callers hold r.mx.
func (r *Registry) entry(name string) *model.ToolDescriptor {
	e, ok := r.entries[name]
	if !ok {
		e = &model.ToolDescriptor{Name: name, Version: "unknown"}
		r.entries[name] = e
	}
	return e
}

func (r *Registry) searchPaths(name string) []string {
	r.mx.RLock()
	defer r.mx.RUnlock()
	if e, ok := r.entries[name]; ok {
		return slices.Clone(e.SearchPaths)
	}
	return nil
}

func (r *Registry) load() {
	if r.path == "" {
		return
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("tool cache not readable, starting empty", "path", r.path, "error", err)
		}
		return
	}
	var entries map[string]*model.ToolDescriptor
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("tool cache corrupt, starting empty", "path", r.path, "error", err)
		return
	}
	for name, e := range entries {
		if e == nil || name == "" {
			continue
		}
		e.Name = name
		r.entries[name] = e
	}
}

// persistLocked writes the cache file atomically. Callers hold r.mx.
// Persistence failures are logged, the in-memory cache stays authoritative.
func (r *Registry) persistLocked(ctx context.Context) {
	if r.path == "" {
		return
	}
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		slog.ErrorContext(ctx, "encoding tool cache failed", "error", err)
		return
	}
	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		slog.ErrorContext(ctx, "creating tool cache dir failed", "path", r.path, "error", err)
		return
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		slog.ErrorContext(ctx, "writing tool cache failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, r.path); err != nil {
		slog.ErrorContext(ctx, "replacing tool cache failed", "path", r.path, "error", err)
	}
}

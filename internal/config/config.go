// Package config loads and validates the TOML configuration file. The
// file is checked against an embedded CUE schema before anything else
// touches it, so the rest of the program never sees malformed settings.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/reconware/sweeper/internal/registry"
	"github.com/reconware/sweeper/internal/scheduler"

	_ "embed"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

const DefaultTimeout = 10 * time.Minute

type Config struct {
	Version  int                `json:"version"`
	Log      *Log               `json:"log,omitempty"`
	Engine   *Engine            `json:"engine,omitempty"`
	Registry *Registry          `json:"registry,omitempty"`
	Tools    map[string]Tool    `json:"tools,omitempty"`
	Profiles map[string]Profile `json:"profiles,omitempty"`
	Service  *Service           `json:"service,omitempty"`
	Store    *Store             `json:"store,omitempty"`
}

// Log output settings.
type Log struct {
	Verbose *bool   `json:"verbose,omitempty"`
	Dst     *string `json:"dst,omitempty"` // "stderr"|"stdout"|"discard"|path
}

// Engine tunes the worker pool.
type Engine struct {
	Workers     *int `json:"workers,omitempty"`
	QueueSize   *int `json:"queue_size,omitempty"`
	EventBuffer *int `json:"event_buffer,omitempty"`
	MaxOutput   *int `json:"max_output,omitempty"` // bytes per captured stream
}

// Registry tunes the tool descriptor cache.
type Registry struct {
	CachePath  *string `json:"cache_path,omitempty"`
	StaleAfter *string `json:"stale_after,omitempty"`
}

// Tool is a per-tool override: pinned path or extra search directories.
type Tool struct {
	Path        *string  `json:"path,omitempty"`
	SearchPaths []string `json:"search_paths,omitempty"`
}

// Profile is a named scan preset.
type Profile struct {
	Tool    string   `json:"tool"`
	Args    []string `json:"args,omitempty"`
	Timeout *string  `json:"timeout,omitempty"`
}

// Service configures recurring scans for the run command.
type Service struct {
	Schedule string   `json:"schedule"` // 5-field cron or @every/@daily macros
	Profile  *string  `json:"profile,omitempty"`
	Targets  []string `json:"targets"`
}

// Store configures report persistence.
type Store struct {
	Path *string `json:"path,omitempty"`
}

// Load reads and validates the file at path. An empty path yields the
// built-in defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg, err := fromSettings(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// fromSettings validates the settings tree against the CUE schema and
// decodes it.
func fromSettings(settings map[string]any) (*Config, error) {
	value := cueCtx.Encode(settings)
	if err := value.Err(); err != nil {
		return nil, err
	}

	unified := schema.Unify(value)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, &ValidationError{Details: humanize(err)}
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	return &out, nil
}

// check covers what the schema cannot express: cross-references and
// values needing a real parser.
func (c *Config) check() error {
	if reg := c.Registry; reg != nil && reg.StaleAfter != nil {
		if _, err := ParseDuration(*reg.StaleAfter); err != nil {
			return fmt.Errorf("registry.stale_after: %w", err)
		}
	}
	for name, p := range c.Profiles {
		if p.Timeout == nil {
			continue
		}
		if _, err := ParseDuration(*p.Timeout); err != nil {
			return fmt.Errorf("profiles.%s.timeout: %w", name, err)
		}
	}
	if svc := c.Service; svc != nil {
		if err := ParseCron(svc.Schedule); err != nil {
			return fmt.Errorf("service.schedule: %w", err)
		}
		profile := svc.ProfileName()
		if _, ok := c.SchedulerProfiles()[profile]; !ok {
			return fmt.Errorf("service.profile: no such profile %q", profile)
		}
	}
	return nil
}

// DefaultProfiles are always available; a configured profile with the
// same name replaces the default.
func DefaultProfiles() map[string]scheduler.Profile {
	return map[string]scheduler.Profile{
		"quick": {
			Tool:    "nmap",
			Args:    []string{"-oX", "-", "-F"},
			Timeout: 5 * time.Minute,
		},
		"default": {
			Tool:    "nmap",
			Args:    []string{"-oX", "-"},
			Timeout: 30 * time.Minute,
		},
		"intense": {
			Tool:    "nmap",
			Args:    []string{"-oX", "-", "-p-", "-sV", "-T4"},
			Timeout: 2 * time.Hour,
		},
	}
}

// SchedulerProfiles merges the configured profiles over the defaults.
func (c *Config) SchedulerProfiles() map[string]scheduler.Profile {
	out := DefaultProfiles()
	for name, p := range c.Profiles {
		timeout := DefaultTimeout
		if p.Timeout != nil {
			if d, err := ParseDuration(*p.Timeout); err == nil {
				timeout = d
			}
		}
		out[name] = scheduler.Profile{
			Tool:    p.Tool,
			Args:    p.Args,
			Timeout: timeout,
		}
	}
	return out
}

// SchedulerConfig builds the engine configuration, zero fields fall back
// to the engine's own defaults.
func (c *Config) SchedulerConfig() scheduler.Config {
	out := scheduler.Config{Profiles: c.SchedulerProfiles()}
	if e := c.Engine; e != nil {
		if e.Workers != nil {
			out.Workers = *e.Workers
		}
		if e.QueueSize != nil {
			out.QueueSize = *e.QueueSize
		}
		if e.EventBuffer != nil {
			out.EventBuffer = *e.EventBuffer
		}
		if e.MaxOutput != nil {
			out.MaxOutput = *e.MaxOutput
		}
	}
	return out
}

// RegistryConfig builds the tool cache configuration. Without an explicit
// cache path the cache lands in the user cache dir, or stays in memory
// when none can be determined.
func (c *Config) RegistryConfig() registry.Config {
	var out registry.Config
	if r := c.Registry; r != nil {
		if r.CachePath != nil {
			out.Path = *r.CachePath
		}
		if r.StaleAfter != nil {
			if d, err := ParseDuration(*r.StaleAfter); err == nil {
				out.StaleAfter = d
			}
		}
	}
	if out.Path == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			out.Path = filepath.Join(dir, "sweeper", "tools.json")
		}
	}
	return out
}

// ApplyTools pushes the per-tool overrides into the registry.
func (c *Config) ApplyTools(ctx context.Context, reg *registry.Registry) error {
	for name, tool := range c.Tools {
		for _, dir := range tool.SearchPaths {
			reg.AddSearchPath(name, dir)
		}
		if tool.Path != nil {
			if err := reg.SetOverride(ctx, name, *tool.Path); err != nil {
				return fmt.Errorf("tools.%s.path: %w", name, err)
			}
		}
	}
	return nil
}

// Verbose reports whether debug logging is on.
func (c *Config) Verbose() bool {
	return c.Log != nil && c.Log.Verbose != nil && *c.Log.Verbose
}

// LogDst returns the log destination, "stderr" by default.
func (c *Config) LogDst() string {
	if c.Log != nil && c.Log.Dst != nil {
		return *c.Log.Dst
	}
	return "stderr"
}

// StorePath returns the report database path, empty when persistence is
// off.
func (c *Config) StorePath() string {
	if c.Store != nil && c.Store.Path != nil {
		return *c.Store.Path
	}
	return ""
}

// ProfileName returns the profile recurring scans use.
func (s *Service) ProfileName() string {
	if s.Profile != nil {
		return *s.Profile
	}
	return "default"
}

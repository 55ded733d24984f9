// Package config loads revgraph's optional TOML configuration file and
// applies environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/thiagokokada/revgraph/internal/git"
)

const (
	DefaultPageSize     = 100
	MaxPageSize         = 1000
	DefaultNearBottomPx = 200
	DefaultAddr         = "127.0.0.1:7420"

	appDir = "revgraph"
)

var ErrInvalidConfig = errors.New("invalid config")

type Graph struct {
	PageSize       int    `toml:"page_size"`
	IncludeRemotes bool   `toml:"include_remotes"`
	Theme          string `toml:"theme"`
	Backend        string `toml:"backend"`
}

type Review struct {
	NearBottomPx float64 `toml:"near_bottom_px"`
}

type Server struct {
	Addr  string `toml:"addr"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	PrefsPath string `toml:"prefs_path"`
	Graph     Graph  `toml:"graph"`
	Review    Review `toml:"review"`
	Server    Server `toml:"server"`
}

func Default() *Config {
	return &Config{
		PrefsPath: DefaultPrefsPath(),
		Graph: Graph{
			PageSize: DefaultPageSize,
			Theme:    "auto",
			Backend:  string(git.BackendNative),
		},
		Review: Review{NearBottomPx: DefaultNearBottomPx},
		Server: Server{Addr: DefaultAddr, Watch: true},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/revgraph/config.toml (or the platform
// equivalent). It is empty when no config directory can be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, "config.toml")
}

// DefaultPrefsPath is $XDG_STATE_HOME/revgraph/prefs.yaml, falling back to
// ~/.local/state.
func DefaultPrefsPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appDir, "prefs.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appDir, "prefs.yaml")
}

// Load reads path over the defaults. An empty path means DefaultPath, which
// may be missing; an explicit path must exist. Environment overrides are
// applied and the result validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case err == nil:
			for _, key := range md.Undecoded() {
				slog.Warn("unknown config key", slog.String("path", path), slog.String("key", key.String()))
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			slog.Debug("no config file", slog.String("path", path))
		default:
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies REVGRAPH_ADDR, REVGRAPH_PAGE_SIZE and REVGRAPH_THEME.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if addr := getenv("REVGRAPH_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if raw := getenv("REVGRAPH_PAGE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: REVGRAPH_PAGE_SIZE=%q: %w", ErrInvalidConfig, raw, err)
		}
		c.Graph.PageSize = n
	}
	if theme := getenv("REVGRAPH_THEME"); theme != "" {
		c.Graph.Theme = theme
	}
	return nil
}

// Validate normalizes the config in place. Oversized pages are clamped;
// values that cannot be interpreted are rejected.
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.Graph.PageSize < 0:
		errs = append(errs, fmt.Errorf("graph.page_size %d is negative", c.Graph.PageSize))
	case c.Graph.PageSize == 0:
		c.Graph.PageSize = DefaultPageSize
	case c.Graph.PageSize > MaxPageSize:
		slog.Warn("page size clamped", slog.Int("requested", c.Graph.PageSize), slog.Int("max", MaxPageSize))
		c.Graph.PageSize = MaxPageSize
	}

	theme := strings.ToLower(strings.TrimSpace(c.Graph.Theme))
	switch theme {
	case "":
		c.Graph.Theme = "auto"
	case "auto", "light", "dark":
		c.Graph.Theme = theme
	default:
		errs = append(errs, fmt.Errorf("graph.theme %q (want auto, light or dark)", c.Graph.Theme))
	}

	if kind, err := git.ParseBackendKind(c.Graph.Backend); err != nil {
		errs = append(errs, fmt.Errorf("graph.backend: %w", err))
	} else {
		c.Graph.Backend = string(kind)
	}

	if c.Review.NearBottomPx <= 0 {
		errs = append(errs, fmt.Errorf("review.near_bottom_px %g must be positive", c.Review.NearBottomPx))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultAddr
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

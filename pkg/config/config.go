// Package config loads storagegraph settings from a TOML file.
//
// The file is looked up in this order and the first one found wins:
//
//  1. the path given with --config
//  2. $XDG_CONFIG_HOME/storagegraph/config.toml (or ~/.config/storagegraph/config.toml)
//  3. /etc/storagegraph/config.toml
//
// Missing keys keep their [Default] values. Command-line flags override
// whatever the file says.
//
//	log_level   = "info"
//	root_prefix = ""
//	lock_path   = "/run/storagegraph/lock"
//
//	[commit]
//	dry_run     = false
//	force       = false
//	target_side = ""
//
//	[cache]
//	backend     = "file"   # file, redis or none
//	dir         = ""       # defaults to $XDG_CACHE_HOME/storagegraph
//	redis_addr  = "localhost:6379"
//	redis_db    = 0
//	redis_prefix = "storagegraph:"
//
//	[render]
//	format   = "svg"
//	detailed = false
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/errors"
	"github.com/matzehuels/storagegraph/pkg/render"
	"github.com/matzehuels/storagegraph/pkg/system"
)

const appName = "storagegraph"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

type Config struct {
	LogLevel   string `toml:"log_level"`
	RootPrefix string `toml:"root_prefix"`
	LockPath   string `toml:"lock_path"`

	Commit CommitConfig `toml:"commit"`
	Cache  CacheConfig  `toml:"cache"`
	Render RenderConfig `toml:"render"`
}

type CommitConfig struct {
	DryRun     bool   `toml:"dry_run"`
	Force      bool   `toml:"force"`
	TargetSide string `toml:"target_side"`
}

type CacheConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`
}

type RenderConfig struct {
	Format   string `toml:"format"`
	Detailed bool   `toml:"detailed"`
}

// Default returns the settings used when no file is found.
func Default() Config {
	return Config{
		LogLevel: "info",
		LockPath: system.DefaultLockPath,
		Cache: CacheConfig{
			Backend:     BackendFile,
			RedisAddr:   "localhost:6379",
			RedisPrefix: appName + ":",
		},
		Render: RenderConfig{Format: string(render.FormatSVG)},
	}
}

// Paths returns the implicit lookup locations, most specific first.
func Paths() []string {
	var paths []string
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, appName, "config.toml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}
	return append(paths, filepath.Join("/etc", appName, "config.toml"))
}

// Load reads the configuration. An explicit path must exist; otherwise the
// first of [Paths] that exists is used, and Default is returned if none
// does. The second return value is the file that was read, if any.
func Load(path string) (Config, string, error) {
	if path != "" {
		cfg, err := LoadFile(path)
		return cfg, path, err
	}
	for _, p := range Paths() {
		if _, err := os.Stat(p); err == nil {
			cfg, err := LoadFile(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}

// LoadFile reads and validates a single file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidFormat, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}
	if _, ok := action.ParseSide(c.Commit.TargetSide); !ok {
		result = multierror.Append(result, fmt.Errorf("commit.target_side: unknown side %q", c.Commit.TargetSide))
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			result = multierror.Append(result, fmt.Errorf("cache.redis_addr: required for the redis backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if _, err := render.ParseFormat(c.Render.Format); err != nil {
		result = multierror.Append(result, fmt.Errorf("render.format: %w", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid config")
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() log.Level {
	l, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// TargetSide returns the parsed commit.target_side.
func (c Config) TargetSide() action.Side {
	s, _ := action.ParseSide(c.Commit.TargetSide)
	return s
}

// CacheDir returns cache.dir or the XDG cache directory.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

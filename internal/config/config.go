// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads pluginhost settings from a YAML file overlaid with
// command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/pluginhost/internal/logging"
	"github.com/holomush/pluginhost/internal/xdg"
)

// CodeInvalid marks configuration that failed validation.
const CodeInvalid = "CONFIG_INVALID"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// Config is the full pluginhost configuration.
type Config struct {
	Plugins     PluginsConfig       `koanf:"plugins"`
	Storage     StorageConfig       `koanf:"storage"`
	Server      ServerConfig        `koanf:"server"`
	Log         LogConfig           `koanf:"log"`
	Metrics     MetricsConfig       `koanf:"metrics"`
	Permissions map[string][]string `koanf:"permissions"`
}

// PluginsConfig controls discovery and loading.
type PluginsConfig struct {
	Dir      string `koanf:"dir"`
	Autoload bool   `koanf:"autoload"`
	// Static lists compiled-in plugin ids to load. Empty loads all of them.
	Static      []string      `koanf:"static"`
	CallTimeout time.Duration `koanf:"call-timeout"`
	// LuaStackSize bounds Lua call depth. Zero uses the runtime default.
	LuaStackSize int `koanf:"lua-stack-size"`
}

// StorageConfig selects the plugin key-value store.
type StorageConfig struct {
	Backend     string `koanf:"backend"`
	Path        string `koanf:"path"`
	DatabaseURL string `koanf:"database-url"`
}

// ServerConfig tunes the tick loop and the command line.
type ServerConfig struct {
	TickInterval time.Duration     `koanf:"tick-interval"`
	ChatPrefix   string            `koanf:"chat-prefix"`
	Aliases      map[string]string `koanf:"aliases"`
	RateLimit    RateLimitConfig   `koanf:"rate-limit"`
}

// RateLimitConfig throttles players. A zero burst disables throttling.
type RateLimitConfig struct {
	Burst int     `koanf:"burst"`
	Rate  float64 `koanf:"rate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the metrics and health endpoint. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when nothing overrides it.
// Directories default to the XDG data directory, or to the working
// directory when no home directory can be resolved.
func Default() *Config {
	pluginsDir, err := xdg.PluginsDir()
	if err != nil {
		pluginsDir = "plugins"
	}
	dataDir, err := xdg.DataDir()
	if err != nil {
		dataDir = "."
	}
	return &Config{
		Plugins: PluginsConfig{
			Dir:         pluginsDir,
			Autoload:    true,
			CallTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendLevelDB,
			Path:    filepath.Join(dataDir, "kv"),
		},
		Server: ServerConfig{
			TickInterval: 50 * time.Millisecond,
			ChatPrefix:   "/",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"plugins-dir":   "plugins.dir",
	"autoload":      "plugins.autoload",
	"call-timeout":  "plugins.call-timeout",
	"storage":       "storage.backend",
	"storage-path":  "storage.path",
	"database-url":  "storage.database-url",
	"tick-interval": "server.tick-interval",
	"chat-prefix":   "server.chat-prefix",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
}

// RegisterFlags adds the flags Load understands to fs. Their defaults
// come from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("plugins-dir", d.Plugins.Dir, "directory scanned for plugins")
	fs.Bool("autoload", d.Plugins.Autoload, "load every plugin in the plugins directory at startup")
	fs.Duration("call-timeout", d.Plugins.CallTimeout, "timeout for a single call into a plugin")
	fs.String("storage", d.Storage.Backend, "plugin storage backend (memory, leveldb or postgres)")
	fs.String("storage-path", d.Storage.Path, "leveldb storage directory")
	fs.String("database-url", "", "postgres connection string (default: $DATABASE_URL)")
	fs.Duration("tick-interval", d.Server.TickInterval, "server tick interval")
	fs.String("chat-prefix", d.Server.ChatPrefix, "prefix marking chat lines as commands")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is not empty, then flags in fs that were set explicitly. fs may be
// nil. DATABASE_URL fills in a missing database URL.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalid).With("path", path).Wrapf(err, "read config file")
		}
	}
	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalid).Wrapf(err, "read flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code(CodeInvalid).With("path", path).Wrapf(err, "decode config")
	}
	if cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errb := oops.Code(CodeInvalid)
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if c.Storage.Path == "" {
			return errb.With("field", "storage.path").Errorf("storage.path is required for leveldb")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errb.With("field", "storage.database-url").
				Hint("set storage.database-url or DATABASE_URL").
				Errorf("storage.database-url is required for postgres")
		}
	default:
		return errb.With("field", "storage.backend").
			Errorf("storage.backend must be memory, leveldb or postgres, got %q", c.Storage.Backend)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return errb.With("field", "log.format").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errb.With("field", "log.level").Wrap(err)
	}
	if c.Server.TickInterval <= 0 {
		return errb.With("field", "server.tick-interval").Errorf("server.tick-interval must be positive")
	}
	if c.Server.ChatPrefix == "" {
		return errb.With("field", "server.chat-prefix").Errorf("server.chat-prefix is required")
	}
	if c.Plugins.CallTimeout <= 0 {
		return errb.With("field", "plugins.call-timeout").Errorf("plugins.call-timeout must be positive")
	}
	if c.Plugins.LuaStackSize < 0 {
		return errb.With("field", "plugins.lua-stack-size").Errorf("plugins.lua-stack-size must not be negative")
	}
	if c.Server.RateLimit.Burst < 0 || c.Server.RateLimit.Rate < 0 {
		return errb.With("field", "server.rate-limit").Errorf("server.rate-limit values must not be negative")
	}
	return nil
}

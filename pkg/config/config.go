// Package config loads inelegis settings.
//
// Settings are resolved from, highest priority first: command line flags,
// INELEGIS_* environment variables (a .env file in the working directory is
// read into the environment), the YAML config file, and the defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coolbeans/inelegis/pkg/table"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INELEGIS"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full set of settings.
type Config struct {
	// Sources are table files or doublestar globs.
	Sources []string `mapstructure:"sources"`
	// Format forces a table format; empty detects it per file.
	Format string `mapstructure:"format"`
	// SQLiteQuery overrides the query used for SQLite sources.
	SQLiteQuery string `mapstructure:"sqlite_query"`

	Server ServerConfig `mapstructure:"server"`
	Watch  WatchConfig  `mapstructure:"watch"`
	Log    LogConfig    `mapstructure:"log"`
	Cache  CacheConfig  `mapstructure:"cache"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WatchConfig configures table file watching.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CacheConfig sizes the server caches. A zero size or TTL disables the
// corresponding cache.
type CacheConfig struct {
	SuggestionSize int           `mapstructure:"suggestion_size"`
	VerdictTTL     time.Duration `mapstructure:"verdict_ttl"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			SuggestionSize: 256,
			VerdictTTL:     5 * time.Minute,
		},
	}
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"source":       "sources",
	"format":       "format",
	"sqlite-query": "sqlite_query",
	"addr":         "server.addr",
	"watch":        "watch.enabled",
	"debounce":     "watch.debounce",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// Load resolves the configuration. path names an explicit config file;
// when empty, inelegis.yaml is searched in the working directory and in
// $HOME/.inelegis. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("inelegis")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".inelegis"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Sources = splitSources(cfg.Sources)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("sources", d.Sources)
	v.SetDefault("format", d.Format)
	v.SetDefault("sqlite_query", d.SQLiteQuery)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("cache.suggestion_size", d.Cache.SuggestionSize)
	v.SetDefault("cache.verdict_ttl", d.Cache.VerdictTTL)
}

// splitSources accepts both repeated values and comma separated lists.
func splitSources(sources []string) []string {
	var out []string
	for _, s := range sources {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the configuration for values the rest of the program
// cannot use.
func (c *Config) Validate() error {
	if _, err := table.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: format: %v", ErrInvalid, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce is negative", ErrInvalid)
	}
	if c.Cache.SuggestionSize < 0 {
		return fmt.Errorf("%w: cache.suggestion_size is negative", ErrInvalid)
	}
	if c.Cache.VerdictTTL < 0 {
		return fmt.Errorf("%w: cache.verdict_ttl is negative", ErrInvalid)
	}
	return nil
}

// TableOptions returns the loader options for the configured sources.
func (c *Config) TableOptions() table.Options {
	format, _ := table.ParseFormat(c.Format)
	return table.Options{Format: format, SQLiteQuery: c.SQLiteQuery}
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds a logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// YAML renders the configuration with durations in their string form.
func (c *Config) YAML() ([]byte, error) {
	type server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	}
	type watch struct {
		Enabled  bool   `yaml:"enabled"`
		Debounce string `yaml:"debounce"`
	}
	type cache struct {
		SuggestionSize int    `yaml:"suggestion_size"`
		VerdictTTL     string `yaml:"verdict_ttl"`
	}
	view := struct {
		Sources     []string  `yaml:"sources"`
		Format      string    `yaml:"format"`
		SQLiteQuery string    `yaml:"sqlite_query,omitempty"`
		Server      server    `yaml:"server"`
		Watch       watch     `yaml:"watch"`
		Log         LogConfig `yaml:"log"`
		Cache       cache     `yaml:"cache"`
	}{
		Sources:     c.Sources,
		Format:      c.Format,
		SQLiteQuery: c.SQLiteQuery,
		Server: server{
			Addr:            c.Server.Addr,
			ReadTimeout:     c.Server.ReadTimeout.String(),
			WriteTimeout:    c.Server.WriteTimeout.String(),
			ShutdownTimeout: c.Server.ShutdownTimeout.String(),
		},
		Watch: watch{Enabled: c.Watch.Enabled, Debounce: c.Watch.Debounce.String()},
		Log:   c.Log,
		Cache: cache{SuggestionSize: c.Cache.SuggestionSize, VerdictTTL: c.Cache.VerdictTTL.String()},
	}
	return yaml.Marshal(view)
}

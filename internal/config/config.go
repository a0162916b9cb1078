// Package config holds the engine configuration.
//
// Sources, lowest precedence first: Default(), a TOML file (LoadFile) and
// CALLCHECK_* environment variables (ApplyEnv). Load applies all three.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "CALLCHECK_"

// Config is the engine configuration shared by a session's recorder,
// verifier and stub repository.
type Config struct {
	// Rounds fixes the number of recording rounds per block.
	// Zero estimates it from the argument types of the first round.
	Rounds int `env:"ROUNDS"`

	// MaxRounds caps the estimated number of rounds.
	MaxRounds int `env:"MAX_ROUNDS"`

	// Seed seeds the signature generator. Fixed seeds make detection
	// reproducible.
	Seed uint64 `env:"SEED"`

	// DefaultTimeout applies to verifications that do not set their own.
	DefaultTimeout time.Duration `env:"DEFAULT_TIMEOUT"`

	// Relaxed makes unstubbed calls answer zero values.
	Relaxed bool `env:"RELAXED"`

	// StackTraces adds call stacks to assertion errors.
	StackTraces bool `env:"STACK_TRACES"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL"`

	// JournalPath, when set, tees recorded calls into a SQLite journal.
	JournalPath string `env:"JOURNAL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxRounds: 64,
		Seed:      1,
		Relaxed:   true,
		LogLevel:  "warn",
	}
}

// fileConfig is the callcheck.toml key mapping.
type fileConfig struct {
	Rounds         int    `toml:"rounds"`
	MaxRounds      int    `toml:"max_rounds"`
	Seed           int64  `toml:"seed"`
	DefaultTimeout string `toml:"default_timeout"`
	Relaxed        bool   `toml:"relaxed"`
	StackTraces    bool   `toml:"stack_traces"`
	LogLevel       string `toml:"log_level"`
	JournalPath    string `toml:"journal"`
}

// LoadFile overlays the keys defined in the TOML file at path onto cfg.
func LoadFile(cfg Config, path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("rounds") {
		cfg.Rounds = raw.Rounds
	}
	if meta.IsDefined("max_rounds") {
		cfg.MaxRounds = raw.MaxRounds
	}
	if meta.IsDefined("seed") {
		if raw.Seed < 0 {
			return Config{}, fmt.Errorf("load config %s: seed must not be negative", path)
		}
		cfg.Seed = uint64(raw.Seed)
	}
	if meta.IsDefined("default_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DefaultTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: default_timeout: %w", path, err)
		}
		cfg.DefaultTimeout = d
	}
	if meta.IsDefined("relaxed") {
		cfg.Relaxed = raw.Relaxed
	}
	if meta.IsDefined("stack_traces") {
		cfg.StackTraces = raw.StackTraces
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("journal") {
		cfg.JournalPath = strings.TrimSpace(raw.JournalPath)
	}
	return cfg, nil
}

// ApplyEnv overlays CALLCHECK_* variables from environ onto cfg. A nil
// environ reads the process environment.
func ApplyEnv(cfg Config, environ map[string]string) (Config, error) {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Load builds the configuration from defaults, the optional file at path
// and the process environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	var err error
	if path != "" {
		if cfg, err = LoadFile(cfg, path); err != nil {
			return Config{}, err
		}
	}
	if cfg, err = ApplyEnv(cfg, nil); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Rounds < 0 {
		errs = append(errs, fmt.Errorf("rounds must not be negative, got %d", c.Rounds))
	}
	if c.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("max_rounds must be at least 1, got %d", c.MaxRounds))
	}
	if c.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("default_timeout must not be negative, got %s", c.DefaultTimeout))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

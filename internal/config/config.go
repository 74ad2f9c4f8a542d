// Package config loads booknotes runtime configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// FileName is the config file looked up in the data directory.
const FileName = "booknotes.json"

// Supported database drivers.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

var (
	// ErrConfigInvalid is returned when a config file or value cannot be used.
	ErrConfigInvalid = errors.New("invalid config")
	// ErrConfigFileNotFound is returned when an explicit --config path is missing.
	ErrConfigFileNotFound = errors.New("config file not found")
)

// RateLimit bounds mutating requests per client.
type RateLimit struct {
	Requests      int `json:"requests"`
	WindowSeconds int `json:"window_seconds"`
	Burst         int `json:"burst"`
}

// Window returns the refill window as a duration.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Enabled reports whether rate limiting is on.
func (r RateLimit) Enabled() bool {
	return r.Requests > 0 && r.WindowSeconds > 0
}

// Config holds all configuration options.
type Config struct {
	Addr      string    `json:"addr,omitempty"`
	NotesDir  string    `json:"notes_dir,omitempty"`
	DBDriver  string    `json:"db_driver,omitempty"`
	DBPath    string    `json:"db_path,omitempty"`
	LogLevel  string    `json:"log_level,omitempty"`
	Watch     *bool     `json:"watch,omitempty"`
	RateLimit RateLimit `json:"rate_limit"`

	// Resolved (not serialized)
	DataDir string `json:"-"` // Absolute data directory
	Source  string `json:"-"` // Config file that was loaded, if any
}

// Default returns the built-in configuration.
func Default() Config {
	watch := true
	return Config{
		Addr:     ":3000",
		NotesDir: "notes",
		DBDriver: DriverCGO,
		DBPath:   "booknotes.db",
		LogLevel: "info",
		Watch:    &watch,
		RateLimit: RateLimit{
			Requests:      60,
			WindowSeconds: 60,
			Burst:         20,
		},
	}
}

// Overrides are values set on the command line. Empty fields are ignored.
type Overrides struct {
	Addr     string
	NotesDir string
	DBDriver string
	LogLevel string
	NoWatch  bool
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	DataDir    string            // --data-dir flag; falls back to $BOOKNOTES_DATA_DIR then "data"
	ConfigPath string            // --config flag; must exist when set
	Env        map[string]string // environment variables
	Overrides  Overrides
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Config file (--config, or booknotes.json in the data directory if present)
// 3. Environment ($PORT, $BOOKNOTES_*)
// 4. Command-line overrides
//
// NotesDir and DBPath are resolved against DataDir when relative.
func Load(input LoadInput) (Config, error) {
	dataDir := input.DataDir
	if dataDir == "" {
		dataDir = input.Env["BOOKNOTES_DATA_DIR"]
	}
	if dataDir == "" {
		dataDir = "data"
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolving data directory: %w", err)
	}

	cfg := Default()
	cfg.DataDir = abs

	fileCfg, source, err := loadFile(abs, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg = merge(cfg, fileCfg)
	cfg.Source = source

	cfg = applyEnv(cfg, input.Env)
	cfg = applyOverrides(cfg, input.Overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cfg.NotesDir = resolve(abs, cfg.NotesDir)
	cfg.DBPath = resolve(abs, cfg.DBPath)
	return cfg, nil
}

// Validate rejects unknown drivers, log levels and empty paths.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverCGO, DriverPure:
	default:
		return fmt.Errorf("%w: unknown db_driver %q (want %q or %q)", ErrConfigInvalid, c.DBDriver, DriverCGO, DriverPure)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrConfigInvalid, c.LogLevel)
	}
	if c.NotesDir == "" || c.DBPath == "" {
		return fmt.Errorf("%w: notes_dir and db_path cannot be empty", ErrConfigInvalid)
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.WindowSeconds < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: rate_limit values cannot be negative", ErrConfigInvalid)
	}
	return nil
}

// WatchEnabled reports whether the note mirror watcher should run.
func (c Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// PIDPath returns the path of the server PID file.
func (c Config) PIDPath() string {
	return filepath.Join(c.DataDir, "booknotes.pid")
}

// loadFile reads the explicit config file or the optional one in dataDir.
func loadFile(dataDir, configPath string) (Config, string, error) {
	path := configPath
	mustExist := path != ""
	if !mustExist {
		path = filepath.Join(dataDir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return Config{}, "", nil
		}
		return Config{}, "", fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return cfg, path, nil
}

func parse(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Addr != "" {
		base.Addr = overlay.Addr
	}
	if overlay.NotesDir != "" {
		base.NotesDir = overlay.NotesDir
	}
	if overlay.DBDriver != "" {
		base.DBDriver = overlay.DBDriver
	}
	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.Watch != nil {
		base.Watch = overlay.Watch
	}
	if overlay.RateLimit != (RateLimit{}) {
		base.RateLimit = overlay.RateLimit
	}
	return base
}

func applyEnv(cfg Config, env map[string]string) Config {
	if port := env["PORT"]; port != "" {
		cfg.Addr = ":" + port
	}
	if addr := env["BOOKNOTES_ADDR"]; addr != "" {
		cfg.Addr = addr
	}
	if dir := env["BOOKNOTES_NOTES_DIR"]; dir != "" {
		cfg.NotesDir = dir
	}
	if driver := env["BOOKNOTES_DB_DRIVER"]; driver != "" {
		cfg.DBDriver = driver
	}
	if level := env["BOOKNOTES_LOG_LEVEL"]; level != "" {
		cfg.LogLevel = level
	}
	return cfg
}

func applyOverrides(cfg Config, o Overrides) Config {
	if o.Addr != "" {
		cfg.Addr = o.Addr
	}
	if o.NotesDir != "" {
		cfg.NotesDir = o.NotesDir
	}
	if o.DBDriver != "" {
		cfg.DBDriver = o.DBDriver
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.NoWatch {
		off := false
		cfg.Watch = &off
	}
	return cfg
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// EnvMap returns the process environment as a map.
func EnvMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Log modes.
const (
	LogModeDev  = "dev"
	LogModeProd = "prod"
)

// Config holds application configuration.
type Config struct {
	// Bind is the interface the HTTP server listens on.
	Bind string `json:"bind,omitempty"`

	// Port is the HTTP server port.
	Port int `json:"port,omitempty"`

	// LogMode selects the zap preset: "dev" (console, debug) or "prod" (JSON, info).
	LogMode string `json:"log_mode,omitempty"`

	// CacheSize is the number of store entries kept in the in-process LRU.
	CacheSize int `json:"cache_size,omitempty"`

	// ReminderPollSeconds is how often the server checks for due reminders.
	ReminderPollSeconds int `json:"reminder_poll_seconds,omitempty"`

	// MaxBodyBytes caps HTTP request bodies, media uploads included.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "routine", "profile", "day", "insights", "event", "reminder",
	// "person", "backup".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:                "127.0.0.1",
		Port:                8642,
		LogMode:             LogModeDev,
		CacheSize:           256,
		ReminderPollSeconds: 20,
		MaxBodyBytes:        1 << 20,
	}
}

// Addr returns the host:port the HTTP server should listen on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// BaseDir returns the data directory: $RUTINA_HOME, or ~/.rutina.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("RUTINA_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rutina"), nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables already set are kept. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load loads configuration from baseDir/config.json and applies environment
// overrides. Returns defaults if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.rutina.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from RUTINA_* variables.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("RUTINA_BIND")); v != "" {
		cfg.Bind = v
	}
	if v := strings.TrimSpace(getenv("RUTINA_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid RUTINA_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := strings.TrimSpace(getenv("RUTINA_LOG_MODE")); v != "" {
		cfg.LogMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("RUTINA_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid RUTINA_CACHE_SIZE %q", v)
		}
		cfg.CacheSize = n
	}
	return nil
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		Bind:                firstString(overlay.Bind, base.Bind),
		Port:                firstInt(overlay.Port, base.Port),
		LogMode:             firstString(overlay.LogMode, base.LogMode),
		CacheSize:           firstInt(overlay.CacheSize, base.CacheSize),
		ReminderPollSeconds: firstInt(overlay.ReminderPollSeconds, base.ReminderPollSeconds),
		MaxBodyBytes:        firstInt(overlay.MaxBodyBytes, base.MaxBodyBytes),
		DBMaxOpenConns:      firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:      firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		DisabledTools:       mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
		DisabledTypes:       mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes),
	}
}

func firstString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func firstInt[T int | int64](a, b T) T {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

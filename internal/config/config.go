// Package config loads engine settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

const (
	DefaultHashcatPath     = "hashcat"
	DefaultDataDir         = "data"
	DefaultWindowLines     = 100
	DefaultControlTimeout  = 5 * time.Second
	DefaultStopGrace       = 5 * time.Second
	DefaultMaxWorkload     = 2
	DefaultListenAddr      = ":8090"
	DefaultCleanupSchedule = "@every 1m"
)

// Config holds every tunable of the engine
type Config struct {
	HashcatPath     string        `yaml:"hashcat_path"`
	DataDir         string        `yaml:"data_dir"`
	PotfilePath     string        `yaml:"potfile"`
	WindowLines     int           `yaml:"output_window_lines"`
	ControlTimeout  time.Duration `yaml:"control_timeout"`
	StopGrace       time.Duration `yaml:"stop_grace"`
	MaxWorkload     int           `yaml:"max_workload"`
	ListenAddr      string        `yaml:"listen_addr"`
	DatabaseURL     string        `yaml:"database_url"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		HashcatPath:     DefaultHashcatPath,
		DataDir:         DefaultDataDir,
		WindowLines:     DefaultWindowLines,
		ControlTimeout:  DefaultControlTimeout,
		StopGrace:       DefaultStopGrace,
		MaxWorkload:     DefaultMaxWorkload,
		ListenAddr:      DefaultListenAddr,
		CleanupSchedule: DefaultCleanupSchedule,
	}
}

// Load builds the configuration. yamlPath may be empty. A missing .env file
// is not an error.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := cfg.loadYAML(yamlPath); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	// DEBUG / LOG_LEVEL may have come from .env
	debug.Reinitialize()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	debug.Info("Configuration loaded - hashcat: %s, data dir: %s, window: %d lines", cfg.HashcatPath, cfg.DataDir, cfg.WindowLines)
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HashcatPath = getEnvString("HASHCAT_PATH", c.HashcatPath)
	c.DataDir = getEnvString("ENGINE_DATA_DIR", c.DataDir)
	c.PotfilePath = getEnvString("HASHCAT_POTFILE", c.PotfilePath)
	c.WindowLines = getEnvInt("OUTPUT_WINDOW_LINES", c.WindowLines)
	c.ControlTimeout = getEnvDuration("CONTROL_TIMEOUT", c.ControlTimeout)
	c.StopGrace = getEnvDuration("STOP_GRACE", c.StopGrace)
	c.MaxWorkload = getEnvInt("MAX_WORKLOAD", c.MaxWorkload)
	c.ListenAddr = getEnvString("LISTEN_ADDR", c.ListenAddr)
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)
	c.CleanupSchedule = getEnvString("CLEANUP_SCHEDULE", c.CleanupSchedule)
}

// Validate rejects settings the engine cannot run with
func (c Config) Validate() error {
	if strings.TrimSpace(c.HashcatPath) == "" {
		return errors.New("hashcat path must not be empty")
	}
	if c.WindowLines <= 0 {
		return fmt.Errorf("output window must hold at least one line, got %d", c.WindowLines)
	}
	if c.ControlTimeout <= 0 || c.StopGrace <= 0 {
		return errors.New("control timeout and stop grace must be positive")
	}
	if c.MaxWorkload < 1 || c.MaxWorkload > 2 {
		return fmt.Errorf("max workload must be 1 or 2, got %d", c.MaxWorkload)
	}
	return nil
}

// Potfile returns the potfile hashcat writes to. Without an explicit path
// this is hashcat's own default under the user's home, or the data dir
// when there is no home directory.
func (c Config) Potfile() string {
	if c.PotfilePath != "" {
		return c.PotfilePath
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "hashcat", "hashcat.potfile")
	}
	return filepath.Join(c.DataDir, "hashcat.potfile")
}

// Helper functions to read configuration from the environment

// getEnvDuration accepts Go durations ("1500ms") or whole seconds ("5")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second
	}
	debug.Warning("Ignoring invalid duration %q for %s", val, key)
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
		debug.Warning("Ignoring invalid integer %q for %s", val, key)
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

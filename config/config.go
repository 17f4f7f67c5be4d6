// Package config loads and saves the toolkit's persistent settings:
// execution limits, debugger ergonomics, number display, and trace and
// statistics output, all backed by a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the toolkit's full settings tree.
type Config struct {
	Execution struct {
		MaxSteps   uint64 `toml:"max_steps"`
		StackWords int    `toml:"stack_words"`
		HeapWords  int    `toml:"heap_words"`
	} `toml:"execution"`

	Debugger struct {
		HistorySize   int  `toml:"history_size"`
		ShowDump      bool `toml:"show_dump_on_halt"`
		ShowRegisters bool `toml:"show_registers"`
	} `toml:"debugger"`

	Display struct {
		NumberFormat string `toml:"number_format"` // hex, dec, both
	} `toml:"display"`

	Trace struct {
		OutputFile       string `toml:"output_file"`
		FilterRegisters  string `toml:"filter_registers"` // comma-separated: "X0,X1,LR"
		MaxEntries       int    `toml:"max_entries"`
	} `toml:"trace"`

	Statistics struct {
		OutputFile string `toml:"output_file"`
		Format     string `toml:"format"` // text, csv
	} `toml:"statistics"`
}

// DefaultConfig returns a Config with the toolkit's built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Execution.MaxSteps = 1_000_000
	cfg.Execution.StackWords = 64
	cfg.Execution.HeapWords = 512

	cfg.Debugger.HistorySize = 1000
	cfg.Debugger.ShowDump = false
	cfg.Debugger.ShowRegisters = true

	cfg.Display.NumberFormat = "hex"

	cfg.Trace.OutputFile = "trace.log"
	cfg.Trace.FilterRegisters = ""
	cfg.Trace.MaxEntries = 100000

	cfg.Statistics.OutputFile = "stats.txt"
	cfg.Statistics.Format = "text"

	return cfg
}

// GetConfigPath returns the platform-specific config file path,
// creating its parent directory if necessary.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "legv8")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "legv8")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load reads configuration from the default config file, falling back
// to defaults if the file does not exist.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads configuration from path, falling back to defaults if
// the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes configuration to path, creating its parent directory if
// necessary.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}

	return nil
}

// Package config loads sqldeck configuration from file, environment
// variables, and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "sqldeck.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "sqldeck.yml"

// Default configuration values.
const (
	DefaultStateFile       = "state.db"
	DefaultCredentialsFile = "credentials.json"
	DefaultOutput          = "table"
	DefaultPoolMaxConns    = 2
	DefaultSweepInterval   = 5 * time.Minute
)

// Config is the resolved runtime configuration.
type Config struct {
	// StatePath is the SQLite metadata cache location.
	StatePath string `koanf:"state_path"`

	// CredentialsPath is the credential file location.
	CredentialsPath string `koanf:"credentials_path"`

	// PoolMaxConns bounds each per-server connection pool.
	PoolMaxConns int `koanf:"pool_max_conns"`

	// SweepInterval is how often idle pools are evicted.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`

	// Output selects the render format: table, json, or csv.
	Output string `koanf:"output"`
}

// Load loads configuration with the usual precedence
// (highest to lowest): flags > env vars > config file > defaults.
// cfgFile, when empty, falls back to sqldeck.yaml/.yml in the data
// directory, then the current directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	dataDir := DataDir()

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"state_path":       filepath.Join(dataDir, DefaultStateFile),
		"credentials_path": filepath.Join(dataDir, DefaultCredentialsFile),
		"pool_max_conns":   DefaultPoolMaxConns,
		"sweep_interval":   DefaultSweepInterval,
		"verbose":          false,
		"output":           DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFile := findConfigFile(cfgFile, dataDir)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment variables (SQLDECK_ prefix)
	// Transform: SQLDECK_STATE_PATH -> state_path
	if err := k.Load(env.Provider("SQLDECK_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SQLDECK_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	switch cfg.Output {
	case "table", "json", "csv":
	default:
		return nil, fmt.Errorf("invalid output format %q (expected table, json, or csv)", cfg.Output)
	}

	return &cfg, nil
}

// DataDir is where sqldeck keeps its state by default.
func DataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "sqldeck")
	}
	return "."
}

// findConfigFile finds the config file to use.
// Priority: explicit path > data dir > current directory.
func findConfigFile(explicit, dataDir string) string {
	if explicit != "" {
		return explicit
	}
	for _, dir := range []string{dataDir, "."} {
		for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/umsu/umsugraph/pkg/layout"
)

// FileName is the optional config file read from the working directory.
const FileName = "umsugraph.toml"

// EnvPrefix prefixes environment overrides, e.g. UMSUGRAPH_PORT=9090.
const EnvPrefix = "UMSUGRAPH_"

// Config holds all configuration for the application
type Config struct {
	Datasets    []string      `koanf:"datasets"` // Lowest priority first
	State       string        `koanf:"state"`
	Groups      string        `koanf:"groups"`
	WebMode     bool          `koanf:"web"`
	Port        int           `koanf:"port"`
	Watch       bool          `koanf:"watch"`
	OpenBrowser bool          `koanf:"open"`
	JSON        bool          `koanf:"json"`
	CacheSize   int           `koanf:"cache"`
	Verbosity   string        `koanf:"verbosity"`
	LogFormat   string        `koanf:"log_format"` // "text" or "json"
	VerboseCnt  int           `koanf:"verbose"`
	Forces      layout.Forces `koanf:"forces"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional)
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider(path), toml.Parser())

	// 3. Environment Variables
	// Nested keys use a double underscore: UMSUGRAPH_FORCES__LINK_DISTANCE=120
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func defaults() map[string]interface{} {
	forces := layout.DefaultForces
	return map[string]interface{}{
		"datasets":   []string{},
		"state":      "",
		"groups":     "",
		"web":        false,
		"port":       8080,
		"watch":      false,
		"open":       true,
		"json":       false,
		"cache":      64,
		"verbosity":  "",
		"log_format": "text",
		"verbose":    0,
		"forces": map[string]interface{}{
			"link_distance":   forces.LinkDistance,
			"link_strength":   forces.LinkStrength,
			"charge_strength": forces.ChargeStrength,
			"node_radius":     forces.NodeRadius,
			"strength": map[string]interface{}{
				"min": forces.Strength.Min,
				"max": forces.Strength.Max,
			},
		},
	}
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if err := c.Forces.Strength.Validate(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Watch && !c.WebMode {
		return fmt.Errorf("--watch requires --web")
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

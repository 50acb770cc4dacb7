package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/umsu/umsugraph/pkg/layout"
)

func testFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Bool("web", false, "")
	f.Int("port", 8080, "")
	f.StringSlice("datasets", nil, "")
	return f
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil, filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if !cfg.OpenBrowser {
		t.Error("expected open to default to true")
	}
	if cfg.Forces != layout.DefaultForces {
		t.Errorf("expected default forces, got %+v", cfg.Forces)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileEnvFlagPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umsugraph.toml")
	doc := `
port = 7000
state = "state.json"
datasets = ["base.json", "overlay.yaml"]

[forces]
link_distance = 90

[forces.strength]
min = 0.01
max = 0.05
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UMSUGRAPH_STATE", "env-state.json")
	t.Setenv("UMSUGRAPH_FORCES__CHARGE_STRENGTH", "-500")

	f := testFlags()
	if err := f.Parse([]string{"--port", "9090"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(f, path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("flag should win, got port %d", cfg.Port)
	}
	if cfg.State != "env-state.json" {
		t.Errorf("env should override file, got state %q", cfg.State)
	}
	if len(cfg.Datasets) != 2 || cfg.Datasets[1] != "overlay.yaml" {
		t.Errorf("unexpected datasets %v", cfg.Datasets)
	}
	if cfg.Forces.LinkDistance != 90 {
		t.Errorf("expected link distance 90, got %g", cfg.Forces.LinkDistance)
	}
	if cfg.Forces.ChargeStrength != -500 {
		t.Errorf("expected charge strength -500, got %g", cfg.Forces.ChargeStrength)
	}
	if cfg.Forces.LinkStrength != layout.DefaultForces.LinkStrength {
		t.Errorf("unset force should keep default, got %g", cfg.Forces.LinkStrength)
	}
	if cfg.Forces.Strength.Min != 0.01 || cfg.Forces.Strength.Max != 0.05 {
		t.Errorf("unexpected strength bounds %+v", cfg.Forces.Strength)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Port: 8080, CacheSize: 1, LogFormat: "text", Forces: layout.DefaultForces}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"no cache", func(c *Config) { c.CacheSize = 0 }, true},
		{"inverted bounds", func(c *Config) { c.Forces.Strength = layout.Bounds{Min: 0.5, Max: 0.1} }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"watch without web", func(c *Config) { c.Watch = true }, true},
		{"watch with web", func(c *Config) { c.Watch = true; c.WebMode = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

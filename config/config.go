package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/lampfleet/core/fleet"
	"github.com/kilianp07/lampfleet/core/metrics"
	"github.com/kilianp07/lampfleet/infra/monitoring"
	"github.com/kilianp07/lampfleet/infra/mqtt"
)

type Config struct {
	Engine  fleet.Config      `json:"engine"`
	HTTP    HTTPConfig        `json:"http"`
	MQTT    mqtt.Config       `json:"mqtt"`
	Metrics metrics.Config    `json:"metrics"`
	Journal JournalConfig     `json:"journal"`
	Sentry  monitoring.Config `json:"sentry"`
}

// Load reads path (YAML or JSON) and applies K_ environment overrides, e.g.
// K_ENGINE__SEED__SEED=7. An empty path loads defaults plus the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Engine.SetDefaults()
	c.HTTP.SetDefaults()
	c.Journal.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

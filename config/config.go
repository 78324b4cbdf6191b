// Package config loads the simulation configuration from YAML or JSON
// files with optional environment overrides.
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

	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/infra/mqtt"
)

type Config struct {
	MQTT         mqtt.Config         `json:"mqtt"`
	Simulation   SimulationConfig    `json:"simulation"`
	Market       MarketConfig        `json:"market"`
	Forecast     ForecastConfig      `json:"forecast"`
	Participants []ParticipantConfig `json:"participants"`
	Metrics      metrics.Config      `json:"metrics"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
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
	cfg.MQTT.SetDefaults()
	cfg.Simulation.SetDefaults()
	cfg.Market.SetDefaults()
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, err
	}
	for _, p := range cfg.Participants {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

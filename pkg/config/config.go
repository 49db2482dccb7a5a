// Package config loads the daemon configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		BatchDeadline   time.Duration `yaml:"batch_deadline"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`

	Catalog struct {
		BaseURL   string  `yaml:"base_url"`
		RateLimit float64 `yaml:"rate_limit"`
		Burst     int     `yaml:"burst"`
	} `yaml:"catalog"`

	// Budget is the shared outbound source-call budget.
	Budget struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"budget"`

	Analysis struct {
		MaxMarkets           int           `yaml:"max_markets"`
		MaxConcurrentMarkets int           `yaml:"max_concurrent_markets"`
		SourceTimeout        time.Duration `yaml:"source_timeout"`
		MarketTimeout        time.Duration `yaml:"market_timeout"`
		MinMatchScore        float64       `yaml:"min_match_score"`
		Epsilon              float64       `yaml:"epsilon"`
		DivergenceSaturation float64       `yaml:"divergence_saturation"`
		GradeACutoff         int           `yaml:"grade_a_cutoff"`
		GradeBCutoff         int           `yaml:"grade_b_cutoff"`
		GradeCCutoff         int           `yaml:"grade_c_cutoff"`
	} `yaml:"analysis"`

	Sources struct {
		Forecast struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"forecast"`
		PeerMarket struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"peermarket"`
		Sportsbook struct {
			Enabled   bool     `yaml:"enabled"`
			BaseURL   string   `yaml:"base_url"`
			APIKey    string   `yaml:"api_key"`
			Devig     bool     `yaml:"devig"`
			Sports    []string `yaml:"sports"`
			Outrights []string `yaml:"outrights"`
		} `yaml:"sportsbook"`
	} `yaml:"sources"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
}

// Default returns a configuration with working defaults; only provider
// URLs and credentials genuinely need a config file.
func Default() *Config {
	var c Config
	c.Server.Addr = ":4000"
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.WriteTimeout = 5 * time.Minute
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.BatchDeadline = 2 * time.Minute
	c.Logging.Level = "info"
	c.Catalog.RateLimit = 10
	c.Catalog.Burst = 5
	c.Budget.PerSecond = 2
	c.Budget.Burst = 30
	c.Analysis.MaxMarkets = 20
	c.Analysis.MaxConcurrentMarkets = 4
	c.Analysis.SourceTimeout = 10 * time.Second
	c.Analysis.MarketTimeout = 30 * time.Second
	c.Analysis.MinMatchScore = 0.45
	c.Analysis.Epsilon = 0.03
	c.Analysis.DivergenceSaturation = 0.25
	c.Analysis.GradeACutoff = 75
	c.Analysis.GradeBCutoff = 50
	c.Analysis.GradeCCutoff = 25
	c.Sources.Forecast.Enabled = true
	c.Sources.PeerMarket.Enabled = true
	c.Sources.Sportsbook.Enabled = true
	c.Sources.Sportsbook.Devig = true
	c.Redis.Addr = "localhost:6379"
	c.Redis.CacheTTL = 5 * time.Minute
	return &c
}

func parse(path string) (*Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Validation runs after the overrides, so a credential or URL
// may arrive through the environment alone.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("SPORTSBOOK_API_KEY"); v != "" {
		c.Sources.Sportsbook.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Budget.PerSecond <= 0 {
		return fmt.Errorf("budget.per_second must be positive")
	}
	if c.Budget.Burst <= 0 {
		return fmt.Errorf("budget.burst must be positive")
	}
	if !c.Sources.Forecast.Enabled && !c.Sources.PeerMarket.Enabled && !c.Sources.Sportsbook.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if c.Sources.Forecast.Enabled && c.Sources.Forecast.BaseURL == "" {
		return fmt.Errorf("sources.forecast.base_url is required when enabled")
	}
	if c.Sources.PeerMarket.Enabled && c.Sources.PeerMarket.BaseURL == "" {
		return fmt.Errorf("sources.peermarket.base_url is required when enabled")
	}
	if c.Sources.Sportsbook.Enabled && c.Sources.Sportsbook.BaseURL == "" {
		return fmt.Errorf("sources.sportsbook.base_url is required when enabled")
	}
	if !bandOrder(c.Analysis.GradeACutoff, c.Analysis.GradeBCutoff, c.Analysis.GradeCCutoff) {
		return fmt.Errorf("grade cutoffs must be strictly decreasing")
	}
	return nil
}

func bandOrder(a, b, c int) bool {
	return a > b && b > c && c > 0 && a <= 100
}

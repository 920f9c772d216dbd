package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// UnifiedConfiguration holds all structured configuration for the backend.
// Secrets and deployment settings come from the environment (see package config);
// this file covers tunables that can be overlaid from YAML or JSON.
type UnifiedConfiguration struct {
	Service  ServiceConfig  `json:"service" yaml:"service"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Screens  ScreensConfig  `json:"screens" yaml:"screens"`
	Scraper  ScraperConfig  `json:"scraper" yaml:"scraper"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServiceConfig holds HTTP service configuration
type ServiceConfig struct {
	BodyLimitBytes  int           `json:"body_limit_bytes" yaml:"body_limit_bytes"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
	EnableMetrics   bool          `json:"enable_metrics" yaml:"enable_metrics"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout" yaml:"ping_timeout"`
}

// EngineConfig controls batch scheduling of the valuation engine.
type EngineConfig struct {
	Workers         int `json:"workers" yaml:"workers"`
	ChunkSize       int `json:"chunk_size" yaml:"chunk_size"`
	LeaderboardSize int `json:"leaderboard_size" yaml:"leaderboard_size"`
}

// ScreenConfig is a pair of strict lower bounds on sales and operating profit.
type ScreenConfig struct {
	MinSales           float64 `json:"min_sales" yaml:"min_sales"`
	MinOperatingProfit float64 `json:"min_operating_profit" yaml:"min_operating_profit"`
}

// ScreensConfig holds the size screens per listing segment.
type ScreensConfig struct {
	NonSME ScreenConfig `json:"non_sme" yaml:"non_sme"`
	SME    ScreenConfig `json:"sme" yaml:"sme"`
}

// ScraperConfig holds screener download configuration
type ScraperConfig struct {
	BaseURL            string        `json:"base_url" yaml:"base_url"`
	ScreenURL          string        `json:"screen_url" yaml:"screen_url"`
	Timeout            time.Duration `json:"timeout" yaml:"timeout"`
	HTTPRequestTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`
	RequestsPerSecond  float64       `json:"requests_per_second" yaml:"requests_per_second"`
	BreakerFailures    uint32        `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown    time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`
	UseBrowser         bool          `json:"use_browser" yaml:"use_browser"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`
	MaxSize    int           `json:"max_size" yaml:"max_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Format      string `json:"format" yaml:"format"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

const (
	defaultScreenerBaseURL = "https://www.screener.in"
	defaultScreenURL       = "https://www.screener.in/screens/2284718/all-stocks-download/"
	defaultServiceName     = "valuation-backend"
)

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Service: ServiceConfig{
			BodyLimitBytes:  32 * 1024 * 1024,
			ReadTimeout:     60 * time.Second,
			RefreshInterval: 24 * time.Hour,
			EnableMetrics:   true,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Engine: EngineConfig{
			Workers:         1,
			ChunkSize:       500,
			LeaderboardSize: 10,
		},
		Screens: ScreensConfig{
			NonSME: ScreenConfig{MinSales: 50, MinOperatingProfit: 10},
			SME:    ScreenConfig{MinSales: 5, MinOperatingProfit: 1},
		},
		Scraper: ScraperConfig{
			BaseURL:            defaultScreenerBaseURL,
			ScreenURL:          defaultScreenURL,
			Timeout:            2 * time.Minute,
			HTTPRequestTimeout: 30 * time.Second,
			RequestsPerSecond:  0.5,
			BreakerFailures:    3,
			BreakerCooldown:    10 * time.Minute,
			UseBrowser:         false,
		},
		Cache: CacheConfig{
			DefaultTTL: 24 * time.Hour,
			MaxSize:    32,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: defaultServiceName,
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	def := NewDefaultUnifiedConfiguration()

	if c.Service.BodyLimitBytes <= 0 {
		c.Service.BodyLimitBytes = def.Service.BodyLimitBytes
		logger.Debug("Applied default Service.BodyLimitBytes")
	}
	if c.Service.ReadTimeout <= 0 {
		c.Service.ReadTimeout = def.Service.ReadTimeout
		logger.Debug("Applied default Service.ReadTimeout")
	}
	if c.Service.RefreshInterval <= 0 {
		c.Service.RefreshInterval = def.Service.RefreshInterval
		logger.Debug("Applied default Service.RefreshInterval")
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = def.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = def.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = def.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}
	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = def.Database.PingTimeout
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Engine.Workers <= 0 {
		c.Engine.Workers = def.Engine.Workers
		logger.Debug("Applied default Engine.Workers")
	}
	if c.Engine.ChunkSize <= 0 {
		c.Engine.ChunkSize = def.Engine.ChunkSize
		logger.Debug("Applied default Engine.ChunkSize")
	}
	if c.Engine.LeaderboardSize <= 0 {
		c.Engine.LeaderboardSize = def.Engine.LeaderboardSize
		logger.Debug("Applied default Engine.LeaderboardSize")
	}

	// Zero thresholds are a valid choice; only negative values are rejected.
	if c.Screens.NonSME.MinSales < 0 || c.Screens.NonSME.MinOperatingProfit < 0 {
		c.Screens.NonSME = def.Screens.NonSME
		logger.Warn("Negative non-SME screen thresholds replaced with defaults")
	}
	if c.Screens.SME.MinSales < 0 || c.Screens.SME.MinOperatingProfit < 0 {
		c.Screens.SME = def.Screens.SME
		logger.Warn("Negative SME screen thresholds replaced with defaults")
	}

	if c.Scraper.BaseURL == "" {
		c.Scraper.BaseURL = def.Scraper.BaseURL
		logger.Debug("Applied default Scraper.BaseURL")
	}
	c.Scraper.BaseURL = strings.TrimSuffix(c.Scraper.BaseURL, "/")
	if c.Scraper.ScreenURL == "" {
		c.Scraper.ScreenURL = def.Scraper.ScreenURL
		logger.Debug("Applied default Scraper.ScreenURL")
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = def.Scraper.Timeout
		logger.Debug("Applied default Scraper.Timeout")
	}
	if c.Scraper.HTTPRequestTimeout <= 0 {
		c.Scraper.HTTPRequestTimeout = def.Scraper.HTTPRequestTimeout
		logger.Debug("Applied default Scraper.HTTPRequestTimeout")
	}
	if c.Scraper.RequestsPerSecond <= 0 {
		c.Scraper.RequestsPerSecond = def.Scraper.RequestsPerSecond
		logger.Debug("Applied default Scraper.RequestsPerSecond")
	}
	if c.Scraper.BreakerFailures == 0 {
		c.Scraper.BreakerFailures = def.Scraper.BreakerFailures
		logger.Debug("Applied default Scraper.BreakerFailures")
	}
	if c.Scraper.BreakerCooldown <= 0 {
		c.Scraper.BreakerCooldown = def.Scraper.BreakerCooldown
		logger.Debug("Applied default Scraper.BreakerCooldown")
	}

	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = def.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = def.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
		logger.Debug("Applied default Logging.Format")
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = def.Logging.ServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON overlays configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}

// LoadFromYAML overlays configuration from YAML. Durations use Go syntax ("30s").
func (c *UnifiedConfiguration) LoadFromYAML(yamlData []byte) error {
	if err := yaml.Unmarshal(yamlData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}

// LoadFromFile overlays configuration from a .yaml, .yml or .json file.
func (c *UnifiedConfiguration) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewServiceError(ErrorCategoryConfiguration, "CONFIG_READ_FAILED",
			fmt.Sprintf("failed to read configuration file %s", path), "config", "LoadFromFile", false, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = c.LoadFromJSON(data)
	case ".yaml", ".yml":
		err = c.LoadFromYAML(data)
	default:
		return NewServiceError(ErrorCategoryConfiguration, "CONFIG_UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported configuration file extension %q", filepath.Ext(path)), "config", "LoadFromFile", false, nil)
	}
	if err != nil {
		return WrapError(err, ErrorCategoryConfiguration, "CONFIG_PARSE_FAILED", "config", "LoadFromFile", false)
	}

	logrus.WithFields(logrus.Fields{
		"component": "UnifiedConfiguration",
		"path":      path,
	}).Info("Loaded configuration overlay")
	return nil
}

// Clone creates a deep copy of the configuration
func (c *UnifiedConfiguration) Clone() *UnifiedConfiguration {
	jsonData, _ := c.ToJSON()
	clone := &UnifiedConfiguration{}
	clone.LoadFromJSON(jsonData)
	return clone
}

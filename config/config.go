package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort           string
	DatabaseURL          string
	AdminToken           string
	CacheTTLHours        string
	LogLevel             string
	LogFormat            string
	ScraperUsername      string
	ScraperPassword      string
	ScreenerURL          string
	ScreenerBaseURL      string
	ChromePath           string
	ScrapeTimeout        string
	RefreshIntervalHours string
	ConfigFile           string
}

// ScraperCredentials is the login handed to a screener fetcher.
// It is passed explicitly and never read from package state.
type ScraperCredentials struct {
	Username string
	Password string
}

// Empty reports whether no login was configured.
func (c ScraperCredentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// String keeps the password out of logs.
func (c ScraperCredentials) String() string {
	if c.Empty() {
		return "<none>"
	}
	return c.Username + ":****"
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		AdminToken:           getEnv("ADMIN_TOKEN", ""),
		CacheTTLHours:        getEnv("CACHE_TTL_HOURS", ""),
		LogLevel:             getEnv("LOG_LEVEL", ""),
		LogFormat:            getEnv("LOG_FORMAT", ""),
		ScraperUsername:      getEnv("SCRAPER_USERNAME", ""),
		ScraperPassword:      getEnv("SCRAPER_PASSWORD", ""),
		ScreenerURL:          getEnv("SCREENER_URL", ""),
		ScreenerBaseURL:      getEnv("SCREENER_BASE_URL", ""),
		ChromePath:           getEnv("CHROME_PATH", ""),
		ScrapeTimeout:        getEnv("SCRAPE_TIMEOUT", ""),
		RefreshIntervalHours: getEnv("REFRESH_INTERVAL_HOURS", ""),
		ConfigFile:           getEnv("CONFIG_FILE", ""),
	}
}

// Credentials returns the scraper login from the environment.
func (c *Config) Credentials() ScraperCredentials {
	return ScraperCredentials{Username: c.ScraperUsername, Password: c.ScraperPassword}
}

// GetCacheTTL returns the cache TTL from environment or default
func (c *Config) GetCacheTTL() time.Duration {
	return hoursOrDefault("CACHE_TTL_HOURS", c.CacheTTLHours, 24*time.Hour)
}

// GetRefreshInterval returns how often the background refresh job runs.
func (c *Config) GetRefreshInterval() time.Duration {
	return hoursOrDefault("REFRESH_INTERVAL_HOURS", c.RefreshIntervalHours, 24*time.Hour)
}

// GetScrapeTimeout accepts Go duration syntax ("90s") or a bare number of seconds.
func (c *Config) GetScrapeTimeout() time.Duration {
	const fallback = 2 * time.Minute
	if c.ScrapeTimeout == "" {
		return fallback
	}
	if d, err := time.ParseDuration(c.ScrapeTimeout); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(c.ScrapeTimeout); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	logrus.Warnf("Invalid SCRAPE_TIMEOUT value: %s, using default %s", c.ScrapeTimeout, fallback)
	return fallback
}

// Unified builds the structured configuration: defaults, then the optional
// CONFIG_FILE overlay, then whichever environment values are set.
func (c *Config) Unified() (*shared.UnifiedConfiguration, error) {
	unified := shared.NewDefaultUnifiedConfiguration()
	if c.ConfigFile != "" {
		if err := unified.LoadFromFile(c.ConfigFile); err != nil {
			return nil, err
		}
	}

	if c.ScreenerURL != "" {
		unified.Scraper.ScreenURL = c.ScreenerURL
	}
	if c.ScreenerBaseURL != "" {
		unified.Scraper.BaseURL = strings.TrimSuffix(c.ScreenerBaseURL, "/")
	}
	if c.ScrapeTimeout != "" {
		unified.Scraper.Timeout = c.GetScrapeTimeout()
	}
	if c.RefreshIntervalHours != "" {
		unified.Service.RefreshInterval = c.GetRefreshInterval()
	}
	if c.CacheTTLHours != "" {
		unified.Cache.DefaultTTL = c.GetCacheTTL()
	}
	if c.LogLevel != "" {
		unified.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		unified.Logging.Format = c.LogFormat
	}
	unified.ValidateAndApplyDefaults()
	return unified, nil
}

// ConfigureLogging applies level and format to the standard logrus logger.
func ConfigureLogging(level, format string) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", level)
	}
	logrus.SetLevel(parsed)

	if strings.EqualFold(format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

func hoursOrDefault(key, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		logrus.Warnf("Invalid %s value: %s, using default %s", key, value, fallback)
		return fallback
	}
	return time.Duration(hours) * time.Hour
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	// Retry policy for tier-1 browser extraction.
	MaxAttempts int
	BaseDelay   time.Duration

	// Scroll pagination.
	ScrollIncrement int
	ScrollSettle    time.Duration
	MaxScrollRounds int

	// Cache freshness and retention.
	FreshnessTTL    time.Duration
	StaleMultiplier int
	RetentionDays   int
	PurgeInterval   time.Duration

	MinPrimaryCount  int
	DefaultTargetURL string
	FetchTimeout     time.Duration
	UserAgents       []string
}

type BrowserConfig struct {
	Visible        bool
	NavTimeout     time.Duration
	ActionTimeout  time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			MaxAttempts:      getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 3),
			BaseDelay:        getDurationOrDefault("SCRAPER_BASE_DELAY", 2*time.Second),
			ScrollIncrement:  getIntOrDefault("SCRAPER_SCROLL_INCREMENT", 800),
			ScrollSettle:     getDurationOrDefault("SCRAPER_SCROLL_SETTLE", 1500*time.Millisecond),
			MaxScrollRounds:  getIntOrDefault("SCRAPER_MAX_SCROLL_ROUNDS", 8),
			FreshnessTTL:     getDurationOrDefault("SCRAPER_FRESHNESS_TTL", 24*time.Hour),
			StaleMultiplier:  getIntOrDefault("SCRAPER_STALE_MULTIPLIER", 3),
			RetentionDays:    getIntOrDefault("SCRAPER_RETENTION_DAYS", 30),
			PurgeInterval:    getDurationOrDefault("SCRAPER_PURGE_INTERVAL", 6*time.Hour),
			MinPrimaryCount:  getIntOrDefault("SCRAPER_MIN_PRIMARY_COUNT", 3),
			DefaultTargetURL: getEnvOrDefault("SCRAPER_DEFAULT_TARGET_URL", "https://www.amazon.com/gp/bestsellers"),
			FetchTimeout:     getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 15*time.Second),
			UserAgents:       getStringSliceOrDefault("SCRAPER_USER_AGENTS", defaultUserAgents()),
		},
		Browser: BrowserConfig{
			Visible:        getBoolOrDefault("BROWSER_VISIBLE", false),
			NavTimeout:     getDurationOrDefault("BROWSER_NAV_TIMEOUT", 30*time.Second),
			ActionTimeout:  getDurationOrDefault("BROWSER_ACTION_TIMEOUT", 10*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns: int32(getIntOrDefault("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_SESSION_STREAM", "stream:scrape_sessions"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Scraper.StaleMultiplier < 1 {
		return fmt.Errorf("SCRAPER_STALE_MULTIPLIER must be at least 1")
	}

	if c.Scraper.MaxScrollRounds < 1 {
		return fmt.Errorf("SCRAPER_MAX_SCROLL_ROUNDS must be at least 1")
	}

	if c.Scraper.RetentionDays < 1 {
		return fmt.Errorf("SCRAPER_RETENTION_DAYS must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pricewatch/product-scraper/internal/models"
)

type Config struct {
	Server  ServerConfig
	Scraper ScraperConfig
	Browser BrowserConfig
	Cache   CacheConfig
	Store   StoreConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	Concurrency     int
	PacingMinDelay  time.Duration
	PacingMaxDelay  time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	NavTimeout      time.Duration
	RequestDeadline time.Duration
	FallbackMaxHops int
	// Availability reported when a page carries no stock signal.
	// Deployments disagree on in_stock vs unknown, so it is a knob.
	DefaultAvailability models.Availability
}

type BrowserConfig struct {
	Headless       bool
	PoolSize       int
	ViewportWidth  int
	ViewportHeight int
	Identities     []string
}

type CacheConfig struct {
	TTL      time.Duration
	Capacity int
}

type StoreConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "3001"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Scraper: ScraperConfig{
			Concurrency:         getIntOrDefault("SCRAPER_CONCURRENCY", 1),
			PacingMinDelay:      getDurationOrDefault("SCRAPER_PACING_MIN", 2*time.Second),
			PacingMaxDelay:      getDurationOrDefault("SCRAPER_PACING_MAX", 4*time.Second),
			MaxAttempts:         getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 3),
			RetryBaseDelay:      getDurationOrDefault("SCRAPER_RETRY_BASE_DELAY", 5*time.Second),
			NavTimeout:          getDurationOrDefault("SCRAPER_NAV_TIMEOUT", 45*time.Second),
			RequestDeadline:     getDurationOrDefault("SCRAPER_REQUEST_DEADLINE", 90*time.Second),
			FallbackMaxHops:     getIntOrDefault("SCRAPER_FALLBACK_MAX_HOPS", 5),
			DefaultAvailability: getAvailabilityOrDefault("SCRAPER_DEFAULT_AVAILABILITY", models.AvailabilityInStock),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			PoolSize:       getIntOrDefault("BROWSER_POOL_SIZE", 10),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 768),
			Identities:     getStringSliceOrDefault("BROWSER_IDENTITIES", defaultIdentities()),
		},
		Cache: CacheConfig{
			TTL:      getDurationOrDefault("CACHE_TTL", time.Hour),
			Capacity: getIntOrDefault("CACHE_CAPACITY", 4096),
		},
		Store: StoreConfig{
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
			RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			PostgresDSN:   getEnvOrDefault("POSTGRES_DSN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.Concurrency < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENCY must be at least 1")
	}

	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Scraper.PacingMinDelay > c.Scraper.PacingMaxDelay {
		return fmt.Errorf("SCRAPER_PACING_MIN cannot be greater than SCRAPER_PACING_MAX")
	}

	if c.Browser.PoolSize < 1 {
		return fmt.Errorf("BROWSER_POOL_SIZE must be at least 1")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.Cache.Capacity < 1 {
		return fmt.Errorf("CACHE_CAPACITY must be at least 1")
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

func getAvailabilityOrDefault(key string, defaultValue models.Availability) models.Availability {
	switch models.Availability(os.Getenv(key)) {
	case models.AvailabilityInStock:
		return models.AvailabilityInStock
	case models.AvailabilityOutOfStock:
		return models.AvailabilityOutOfStock
	case models.AvailabilityUnknown:
		return models.AvailabilityUnknown
	}
	return defaultValue
}

func defaultIdentities() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

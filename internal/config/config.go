package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Dashboard DashboardConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig locates the four Olist CSV exports.
type DataConfig struct {
	Dir           string
	OrdersFile    string
	CustomersFile string
	PaymentsFile  string
	ReviewsFile   string
	LoadTimeout   time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

type DashboardConfig struct {
	DefaultState string
	TopN         int
	CacheSize    int
	CacheTTL     time.Duration

	// SweepInterval is how often expired cache entries and idle rate
	// limiter visitors are dropped.
	SweepInterval time.Duration
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			Dir:           getEnvString("DATA_DIR", "data"),
			OrdersFile:    getEnvString("DATA_ORDERS_FILE", "olist_orders_dataset.csv"),
			CustomersFile: getEnvString("DATA_CUSTOMERS_FILE", "olist_customers_dataset.csv"),
			PaymentsFile:  getEnvString("DATA_PAYMENTS_FILE", "olist_order_payments_dataset.csv"),
			ReviewsFile:   getEnvString("DATA_REVIEWS_FILE", "olist_order_reviews_dataset.csv"),
			LoadTimeout:   getEnvDuration("DATA_LOAD_TIMEOUT", 30*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Dashboard: DashboardConfig{
			DefaultState:  strings.ToUpper(getEnvString("DASHBOARD_DEFAULT_STATE", "SP")),
			TopN:          getEnvInt("DASHBOARD_TOP_N", 5),
			CacheSize:     getEnvInt("CACHE_SIZE", 128),
			CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.Dir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	for name, file := range map[string]string{
		"orders":    c.Data.OrdersFile,
		"customers": c.Data.CustomersFile,
		"payments":  c.Data.PaymentsFile,
		"reviews":   c.Data.ReviewsFile,
	} {
		if file == "" {
			return fmt.Errorf("%s file name cannot be empty", name)
		}
	}

	if c.Data.LoadTimeout <= 0 {
		return fmt.Errorf("data load timeout must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Dashboard.TopN <= 0 {
		return fmt.Errorf("dashboard top N must be positive, got %d", c.Dashboard.TopN)
	}

	if c.Dashboard.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	if c.Dashboard.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.Dashboard.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Path joins the data directory with one of the configured file names.
func (d DataConfig) Path(file string) string {
	return filepath.Join(d.Dir, file)
}

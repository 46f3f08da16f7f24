package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	HistoryDB HistoryDBConfig
	QR        QRConfig
	Order     OrderConfig
	Sweeper   SweeperConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"600s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"lotorder-engine"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds Redis settings (job locks and job status).
type CacheConfig struct {
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockLeaseTTL  time.Duration `envconfig:"LOCK_LEASE_TTL" default:"15m"`
}

// DatabaseConfig holds MySQL connection settings (production history layout).
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"lotorder"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// HistoryDBConfig selects the history store backend and layout.
type HistoryDBConfig struct {
	Type   string `envconfig:"HISTORY_DB_TYPE" default:"sqlite"`    // sqlite or mysql
	Layout string `envconfig:"HISTORY_DB_LAYOUT" default:"unified"` // unified or partitioned
	Path   string `envconfig:"HISTORY_DB_PATH" default:"./data/history.db"`
	// DealershipPath is the SQLite database holding dealership configs.
	DealershipPath string `envconfig:"DEALERSHIP_DB_PATH" default:"./data/dealerships.db"`
	// PartitionOverrides maps dealership IDs to explicit table slugs for
	// names that do not slugify uniquely, e.g. "12=obriens_ford,19=smith_and_sons".
	PartitionOverrides string `envconfig:"PARTITION_OVERRIDES" default:""`
}

// QRConfig holds settings for the external QR render collaborator.
type QRConfig struct {
	BaseURL     string        `envconfig:"QR_BASE_URL" default:"https://api.qrserver.com/v1/create-qr-code/"`
	SizePixels  int           `envconfig:"QR_SIZE_PIXELS" default:"400"`
	CallTimeout time.Duration `envconfig:"QR_CALL_TIMEOUT" default:"10s"`
	Workers     int           `envconfig:"QR_WORKERS" default:"6"`
	Retries     int           `envconfig:"QR_RETRIES" default:"1"`
}

// OrderConfig holds order-pipeline settings.
type OrderConfig struct {
	ExportDir  string        `envconfig:"ORDER_EXPORT_DIR" default:"./data/exports"`
	QRRoot     string        `envconfig:"ORDER_QR_ROOT" default:"./data/qr"`
	JobTimeout time.Duration `envconfig:"ORDER_JOB_TIMEOUT" default:"5m"`
}

// SweeperConfig holds artifact retention settings.
type SweeperConfig struct {
	Enabled       bool          `envconfig:"SWEEPER_ENABLED" default:"true"`
	Retention     time.Duration `envconfig:"SWEEPER_RETENTION" default:"720h"`
	SweepInterval time.Duration `envconfig:"SWEEPER_INTERVAL" default:"24h"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Overrides parses the PARTITION_OVERRIDES setting into an ID-to-slug map.
// Malformed pairs are skipped; the registry validates the result anyway.
func (h *HistoryDBConfig) Overrides() map[int64]string {
	overrides := make(map[int64]string)
	for _, pair := range strings.Split(h.PartitionOverrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			continue
		}
		overrides[id] = strings.TrimSpace(parts[1])
	}
	return overrides
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

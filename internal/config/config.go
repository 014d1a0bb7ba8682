package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	defaultDSN = "host=localhost user=postgres password=postgres dbname=kitchen port=5432 sslmode=disable"
)

type Config struct {
	HTTPPort    string `toml:"http_port"`
	DatabaseDSN string `toml:"database_dsn"`
	StoreDriver string `toml:"store_driver"` // postgres | memory
	JWTSecret   string `toml:"jwt_secret"`
	CORSOrigins string `toml:"cors_allowed_origins"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // json | console

	StorageBucket        string `toml:"storage_bucket"`          // GCS bucket; empty means local disk
	StoragePublicBaseURL string `toml:"storage_public_base_url"` // overrides https://storage.googleapis.com/<bucket>
	GCSCredentialsFile   string `toml:"gcs_credentials_file"`
	UploadDir            string `toml:"upload_dir"` // local disk uploads, served under /uploads

	KafkaBrokers    string `toml:"kafka_brokers"` // comma separated; empty disables publishing
	KafkaStockTopic string `toml:"kafka_stock_topic"`

	PageLimitMax int `toml:"page_limit_max"`
}

func Default() *Config {
	return &Config{
		HTTPPort:        "8080",
		DatabaseDSN:     defaultDSN,
		StoreDriver:     DriverPostgres,
		CORSOrigins:     "http://localhost:5173",
		LogLevel:        "info",
		LogFormat:       "json",
		UploadDir:       "./uploads",
		KafkaStockTopic: "kitchen.stock-adjustments",
		PageLimitMax:    500,
	}
}

// Load applies defaults, then the TOML file at path (if path is not empty),
// then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.StorageBucket = getEnv("STORAGE_BUCKET", cfg.StorageBucket)
	cfg.StoragePublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", cfg.StoragePublicBaseURL)
	cfg.GCSCredentialsFile = getEnv("GCS_CREDENTIALS_FILE", cfg.GCSCredentialsFile)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaStockTopic = getEnv("KAFKA_STOCK_TOPIC", cfg.KafkaStockTopic)

	if v := os.Getenv("PAGE_LIMIT_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PAGE_LIMIT_MAX must be an integer: %w", err)
		}
		cfg.PageLimitMax = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}
	if c.PageLimitMax < 1 {
		return errors.New("PAGE_LIMIT_MAX must be >= 1")
	}
	return nil
}

// Warnings lists settings that are fine for development but not production.
func (c *Config) Warnings() []string {
	var w []string
	if c.StoreDriver == DriverPostgres && c.DatabaseDSN == defaultDSN {
		w = append(w, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.StoreDriver == DriverMemory {
		w = append(w, "STORE_DRIVER=memory keeps all data in process memory")
	}
	if c.CORSOrigins == "http://localhost:5173" {
		w = append(w, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	return w
}

// CORSOriginList splits the comma separated origins.
func (c *Config) CORSOriginList() []string {
	return splitList(c.CORSOrigins)
}

func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

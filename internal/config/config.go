// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	ERP      ERPConfig
	Sync     SyncConfig
	Syncd    SyncdConfig
	Cache    CacheConfig
	Archive  ArchiveConfig
	App      AppConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxTx    int
}

// ERPConfig holds the connection settings for the upstream ERP HTTP API.
type ERPConfig struct {
	BaseURL            string
	Company            string
	Username           string
	Password           string
	DocumentKinds      []string
	TokenTTL           time.Duration
	Timeout            time.Duration
	MinRequestInterval time.Duration
	MaxRetryAttempts   int
	MaxRetryDelay      time.Duration
}

type SyncConfig struct {
	MaxRangeDays     int
	DetailBatchSize  int
	DetailBatchDelay time.Duration
	RetentionMonths  int
}

type SyncdConfig struct {
	CurrentInterval time.Duration
	StatusPort      string
}

type CacheConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DashboardTTL  time.Duration
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AppConfig struct {
	Timezone string
	LogLevel string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 0)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "compraplan")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("DB_MAX_TX", 10)
		viper.SetDefault("ERP_BASE_URL", "")
		viper.SetDefault("ERP_COMPANY", "")
		viper.SetDefault("ERP_USERNAME", "")
		viper.SetDefault("ERP_PASSWORD", "")
		viper.SetDefault("ERP_DOCUMENT_KINDS", "FV,NC,ND")
		viper.SetDefault("ERP_TOKEN_TTL", "1h")
		viper.SetDefault("ERP_TIMEOUT", "30s")
		viper.SetDefault("ERP_MIN_REQUEST_INTERVAL", "150ms")
		viper.SetDefault("ERP_MAX_RETRY_ATTEMPTS", 5)
		viper.SetDefault("ERP_MAX_RETRY_DELAY", "30s")
		viper.SetDefault("SYNC_MAX_RANGE_DAYS", 10)
		viper.SetDefault("SYNC_DETAIL_BATCH_SIZE", 20)
		viper.SetDefault("SYNC_DETAIL_BATCH_DELAY", "300ms")
		viper.SetDefault("SYNC_RETENTION_MONTHS", 12)
		viper.SetDefault("SYNCD_CURRENT_INTERVAL", "30m")
		viper.SetDefault("SYNCD_STATUS_PORT", "8081")
		viper.SetDefault("CACHE_ENABLED", true)
		viper.SetDefault("REDIS_ADDR", "localhost:6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_DASHBOARD_TTL", "60s")
		viper.SetDefault("ARCHIVE_ENABLED", false)
		viper.SetDefault("MINIO_ENDPOINT", "")
		viper.SetDefault("MINIO_ACCESS_KEY", "")
		viper.SetDefault("MINIO_SECRET_KEY", "")
		viper.SetDefault("MINIO_BUCKET", "compraplan-sync")
		viper.SetDefault("MINIO_USE_SSL", false)
		viper.SetDefault("APP_TIMEZONE", "Local")
		viper.SetDefault("LOG_LEVEL", "info")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: splitCSV(viper.GetString("SERVER_ALLOWED_ORIGINS")),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
				MaxTx:    viper.GetInt("DB_MAX_TX"),
			},
			ERP: ERPConfig{
				BaseURL:            strings.TrimRight(viper.GetString("ERP_BASE_URL"), "/"),
				Company:            viper.GetString("ERP_COMPANY"),
				Username:           viper.GetString("ERP_USERNAME"),
				Password:           viper.GetString("ERP_PASSWORD"),
				DocumentKinds:      splitCSV(viper.GetString("ERP_DOCUMENT_KINDS")),
				TokenTTL:           viper.GetDuration("ERP_TOKEN_TTL"),
				Timeout:            viper.GetDuration("ERP_TIMEOUT"),
				MinRequestInterval: viper.GetDuration("ERP_MIN_REQUEST_INTERVAL"),
				MaxRetryAttempts:   viper.GetInt("ERP_MAX_RETRY_ATTEMPTS"),
				MaxRetryDelay:      viper.GetDuration("ERP_MAX_RETRY_DELAY"),
			},
			Sync: SyncConfig{
				MaxRangeDays:     viper.GetInt("SYNC_MAX_RANGE_DAYS"),
				DetailBatchSize:  viper.GetInt("SYNC_DETAIL_BATCH_SIZE"),
				DetailBatchDelay: viper.GetDuration("SYNC_DETAIL_BATCH_DELAY"),
				RetentionMonths:  viper.GetInt("SYNC_RETENTION_MONTHS"),
			},
			Syncd: SyncdConfig{
				CurrentInterval: viper.GetDuration("SYNCD_CURRENT_INTERVAL"),
				StatusPort:      viper.GetString("SYNCD_STATUS_PORT"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisAddr:     viper.GetString("REDIS_ADDR"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				DashboardTTL:  viper.GetDuration("CACHE_DASHBOARD_TTL"),
			},
			Archive: ArchiveConfig{
				Enabled:   viper.GetBool("ARCHIVE_ENABLED"),
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
				UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			},
			App: AppConfig{
				Timezone: viper.GetString("APP_TIMEZONE"),
				LogLevel: viper.GetString("LOG_LEVEL"),
			},
		}
	})

	return instance
}

// ValidateERP reports the first missing setting required to talk to the ERP.
func (c *Config) ValidateERP() error {
	switch {
	case c.ERP.BaseURL == "":
		return fmt.Errorf("ERP_BASE_URL is required")
	case c.ERP.Company == "":
		return fmt.Errorf("ERP_COMPANY is required")
	case c.ERP.Username == "":
		return fmt.Errorf("ERP_USERNAME is required")
	case c.ERP.Password == "":
		return fmt.Errorf("ERP_PASSWORD is required")
	case len(c.ERP.DocumentKinds) == 0:
		return fmt.Errorf("ERP_DOCUMENT_KINDS must name at least one document kind")
	}
	return nil
}

// Location resolves the configured timezone, falling back to the system
// local zone when the name does not resolve.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" || strings.EqualFold(c.App.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

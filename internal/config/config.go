package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory  = "memory"
	StorageMongoDB = "mongodb"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	MongoDB   MongoDBConfig
	Scheduler SchedulerConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig selects the minimum log level.
type LogConfig struct {
	Level string
}

// StorageConfig selects the persistence backend and its retry policy.
type StorageConfig struct {
	Driver           string
	ConflictAttempts int
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SchedulerConfig holds the cron expressions of the background jobs.
type SchedulerConfig struct {
	SweepSchedule  string
	ReportSchedule string
	Timezone       string
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API. Notifications
// are disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	NotifyTo      string
}

// Enabled reports whether outbound notifications are configured.
func (c WhatsAppConfig) Enabled() bool { return c.AccessToken != "" }

// SheetsConfig contains configuration required to mirror sales into Google Sheets.
// Mirroring is disabled when CredentialsPath is empty.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SalesRange      string
}

// Enabled reports whether the sale mirror is configured.
func (c SheetsConfig) Enabled() bool { return c.CredentialsPath != "" }

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	attempts, err := getenvInt("CONFLICT_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Driver:           getenvWithDefault("STORAGE_DRIVER", StorageMemory),
			ConflictAttempts: attempts,
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "farmcore"),
		},
		Scheduler: SchedulerConfig{
			SweepSchedule:  getenvWithDefault("SWEEP_CRON_SCHEDULE", "*/15 * * * *"),
			ReportSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * 5"),
			Timezone:       getenvWithDefault("TIMEZONE", "UTC"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			NotifyTo:      os.Getenv("WHATSAPP_NOTIFY_TO"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			SalesRange:      getenvWithDefault("GOOGLE_SHEET_SALES_RANGE", "Sales!A:K"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not supported", c.Storage.Driver)
	}

	if c.Storage.ConflictAttempts < 1 {
		return errors.New("CONFLICT_RETRY_ATTEMPTS must be at least 1")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.SweepSchedule); err != nil {
		return fmt.Errorf("SWEEP_CRON_SCHEDULE is invalid: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.ReportSchedule); err != nil {
		return fmt.Errorf("REPORT_CRON_SCHEDULE is invalid: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.NotifyTo == "":
			return errors.New("WHATSAPP_NOTIFY_TO must be provided")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

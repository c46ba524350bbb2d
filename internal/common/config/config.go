// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Gateways      GatewaysConfig     `mapstructure:"gateways"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Lookup        LookupConfig       `mapstructure:"lookup"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

// GatewaysConfig holds the payment gateway integrations.
type GatewaysConfig struct {
	Cielo CieloConfig `mapstructure:"cielo"`
	Asaas AsaasConfig `mapstructure:"asaas"`
}

type CieloConfig struct {
	QueryURL   string `mapstructure:"query_url"`
	MerchantID string `mapstructure:"merchant_id"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type AsaasConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// LookupConfig holds retry settings for transaction lookup by gateway reference.
type LookupConfig struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	InitialDelay int     `mapstructure:"initial_delay"` // milliseconds
	Multiplier   float64 `mapstructure:"multiplier"`
	MaxDelay     int     `mapstructure:"max_delay"` // milliseconds
}

// NotificationConfig holds settings for the notification dispatch job.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	WhatsApp struct {
		Enabled bool   `mapstructure:"enabled"`
		APIURL  string `mapstructure:"api_url"`
		Token   string `mapstructure:"token"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"whatsapp"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// SchedulerConfig holds settings for the mutex-guarded dispatch run.
type SchedulerConfig struct {
	Interval int    `mapstructure:"interval"` // milliseconds between runs
	LockKey  string `mapstructure:"lock_key"`
	LockTTL  int    `mapstructure:"lock_ttl"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Center    CenterConfig    `mapstructure:"center"`
	Announcer AnnouncerConfig `mapstructure:"announcer"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
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

// GetDSN returns the PostgreSQL connection string.
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
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// --- Component Configuration ---

// CenterConfig holds settings for the in-memory notification center.
type CenterConfig struct {
	PageSize     int  `mapstructure:"page_size"`
	ToastBuffer  int  `mapstructure:"toast_buffer"`
	DemoFallback bool `mapstructure:"demo_fallback"` // seed demo list when init fails
}

// AnnouncerConfig holds settings for the periodic update announcer.
type AnnouncerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	InitialDelayMS  int    `mapstructure:"initial_delay_ms"`
	FeedURL         string `mapstructure:"feed_url"` // optional remote catalog
	FeedTimeoutMS   int    `mapstructure:"feed_timeout_ms"`
	WindowDays      int    `mapstructure:"window_days"`
	CheckGapHours   int    `mapstructure:"check_gap_hours"`
}

// DeliveryConfig holds settings for out-of-band delivery of security
// notifications.
type DeliveryConfig struct {
	AWSRegion    string `mapstructure:"aws_region"`
	EmailEnabled bool   `mapstructure:"email_enabled"`
	SMSEnabled   bool   `mapstructure:"sms_enabled"`
	FromEmail    string `mapstructure:"from_email"`
}

// ArchiveConfig holds settings for the analytics event archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

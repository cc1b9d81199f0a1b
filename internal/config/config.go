package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the dialer and reconciler processes.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Voice      VoiceConfig      `yaml:"voice"`
	Dialer     DialerConfig     `yaml:"dialer"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Storage    StorageConfig    `yaml:"storage"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Events     EventsConfig     `yaml:"events"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP trigger server configuration.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds the optional Redis used for tick locks.
// An empty URL means locks fall back to PostgreSQL advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// VoiceConfig holds voice provider API configuration
type VoiceConfig struct {
	APIKey               string `yaml:"api_key"`
	BaseURL              string `yaml:"base_url"`
	WorkspaceID          string `yaml:"workspace_id"`
	OutboundCallPath     string `yaml:"outbound_call_path"`
	HistoryPath          string `yaml:"history_path"`
	DefaultPhoneNumberID string `yaml:"default_phone_number_id"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	HistoryRetries       int    `yaml:"history_retries"`
}

// Timeout returns the configured timeout as a duration
func (c VoiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DialerConfig holds campaign dialer settings.
type DialerConfig struct {
	CampaignBatchLimit  int `yaml:"campaign_batch_limit"`
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`
}

// TickInterval returns the in-process runner interval.
func (c DialerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// ReconcilerConfig holds conversation reconciler settings.
type ReconcilerConfig struct {
	LookbackHours       int  `yaml:"lookback_hours"`
	BatchLimit          int  `yaml:"batch_limit"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
	AcceptDemoHistory   bool `yaml:"accept_demo_history"`
}

// Lookback returns the conversation selection window.
func (c ReconcilerConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// TickInterval returns the in-process runner interval.
func (c ReconcilerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// StorageConfig holds AWS storage for transcript archives and the tick ledger.
// Empty bucket/table disables the respective feature.
type StorageConfig struct {
	Region           string `yaml:"region"`
	AWSProfile       string `yaml:"aws_profile"`
	TranscriptBucket string `yaml:"transcript_bucket"`
	TranscriptPrefix string `yaml:"transcript_prefix"`
	TickLedgerTable  string `yaml:"tick_ledger_table"`
	LedgerTTLDays    int    `yaml:"ledger_ttl_days"`
}

// AlertsConfig holds SES operator alert settings.
type AlertsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	FromEmail string   `yaml:"from_email"`
	To        []string `yaml:"to"`
}

// EventsConfig holds the AMQP publisher settings. Empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Voice.BaseURL == "" {
		cfg.Voice.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Voice.OutboundCallPath == "" {
		cfg.Voice.OutboundCallPath = "/v1/convai/twilio/outbound-call"
	}
	if cfg.Voice.HistoryPath == "" {
		cfg.Voice.HistoryPath = "/v1/convai/conversations/{id}/messages"
	}
	if cfg.Voice.TimeoutSeconds == 0 {
		cfg.Voice.TimeoutSeconds = 20
	}
	if cfg.Voice.HistoryRetries == 0 {
		cfg.Voice.HistoryRetries = 2
	}
	if cfg.Dialer.CampaignBatchLimit == 0 {
		cfg.Dialer.CampaignBatchLimit = 10
	}
	if cfg.Dialer.TickIntervalSeconds == 0 {
		cfg.Dialer.TickIntervalSeconds = 60
	}
	if cfg.Reconciler.LookbackHours == 0 {
		cfg.Reconciler.LookbackHours = 48
	}
	if cfg.Reconciler.BatchLimit == 0 {
		cfg.Reconciler.BatchLimit = 10
	}
	if cfg.Reconciler.TickIntervalSeconds == 0 {
		cfg.Reconciler.TickIntervalSeconds = 60
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.TranscriptPrefix == "" {
		cfg.Storage.TranscriptPrefix = "transcripts/"
	}
	if cfg.Storage.LedgerTTLDays == 0 {
		cfg.Storage.LedgerTTLDays = 30
	}
	if cfg.Alerts.Region == "" {
		cfg.Alerts.Region = "us-east-1"
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "fundraise.events"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("VOICE_API_KEY"); v != "" {
		cfg.Voice.APIKey = v
	}
	if v := os.Getenv("VOICE_BASE_URL"); v != "" {
		cfg.Voice.BaseURL = v
	}
	if v := os.Getenv("VOICE_WORKSPACE_ID"); v != "" {
		cfg.Voice.WorkspaceID = v
	}
	if v := os.Getenv("VOICE_PHONE_NUMBER_ID"); v != "" {
		cfg.Voice.DefaultPhoneNumberID = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRANSCRIPT_BUCKET"); v != "" {
		cfg.Storage.TranscriptBucket = v
	}
	if v := os.Getenv("TICK_LEDGER_TABLE"); v != "" {
		cfg.Storage.TickLedgerTable = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Alerts.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Alerts.SecretKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

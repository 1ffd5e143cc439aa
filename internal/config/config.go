package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Mailing  MailingConfig  `yaml:"mailing"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	SES      SESConfig      `yaml:"ses"`
	Tracking TrackingConfig `yaml:"tracking"`
	Quota    QuotaConfig    `yaml:"quota"`
	Worker   WorkerConfig   `yaml:"worker"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	DKIM     DKIMConfig     `yaml:"dkim"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// PostgresConfig holds the connection string for the repository layer.
type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_minutes"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration.
func (c PostgresConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifeMins) * time.Minute
}

// RedisConfig holds the StreamBus/KVStatus backing Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds Google OAuth authentication configuration for the HTTP
// controller surface (out of this core's scope, carried for the shared
// server process).
type AuthConfig struct {
	Enabled            bool   `yaml:"enabled"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	AllowedDomain      string `yaml:"allowed_domain"`
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
}

// MailingConfig holds the mailing platform's top-level toggles.
type MailingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Sender        string `yaml:"sender"` // "smtp" or "ses"
	DefaultDomain string `yaml:"default_domain"`
}

// SMTPConfig holds the default outbound SMTP relay the MailSender port talks
// to when Mailing.Sender is "smtp".
type SMTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured per-attempt SMTP timeout.
func (c SMTPConfig) Timeout() time.Duration {
	if c.TimeoutSeconds == 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES v2 configuration, used when Mailing.Sender is
// "ses".
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c SESConfig) Timeout() time.Duration {
	if c.TimeoutSeconds == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TrackingConfig holds the base URL tracking pixel/click links are rewritten
// against.
type TrackingConfig struct {
	BaseURL    string `yaml:"base_url"`
	HMACSecret string `yaml:"hmac_secret"`
}

// QuotaConfig holds default daily/monthly limits loaded from the quota
// config section. QuotaEngine does not read them: limits resolve from the
// tenant's overrides and its Plan only.
type QuotaConfig struct {
	DefaultDailyLimit   int `yaml:"default_daily_limit"`
	DefaultMonthlyLimit int `yaml:"default_monthly_limit"`
}

// WorkerConfig holds OutboundWorker/SegmentOrchestrator consumer-loop
// tuning.
type WorkerConfig struct {
	BatchSize        int `yaml:"batch_size"`
	BlockMillis      int `yaml:"block_millis"`
	ClaimIdleMillis  int `yaml:"claim_idle_millis"`
	MaxRetries       int `yaml:"max_retries"`
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`
}

// Batch returns the configured batch size, defaulting to 20.
func (c WorkerConfig) Batch() int {
	if c.BatchSize == 0 {
		return 20
	}
	return c.BatchSize
}

// Block returns the configured XReadGroup block duration, defaulting to 5s.
func (c WorkerConfig) Block() time.Duration {
	if c.BlockMillis == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.BlockMillis) * time.Millisecond
}

// ClaimIdle returns the configured autoclaim idle threshold, defaulting to
// 60s.
func (c WorkerConfig) ClaimIdle() time.Duration {
	if c.ClaimIdleMillis == 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ClaimIdleMillis) * time.Millisecond
}

// Retries returns the configured max delivery retries, defaulting to 5.
func (c WorkerConfig) Retries() int {
	if c.MaxRetries == 0 {
		return 5
	}
	return c.MaxRetries
}

// Heartbeat returns the configured KVStatus heartbeat interval, defaulting
// to 5s.
func (c WorkerConfig) Heartbeat() time.Duration {
	if c.HeartbeatSeconds == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// WebhookConfig holds WebhookDispatcher delivery defaults.
type WebhookConfig struct {
	DefaultMaxRetries     int `yaml:"default_max_retries"`
	DefaultBatchSize      int `yaml:"default_batch_size"`
	DeliveryTimeoutSeconds int `yaml:"delivery_timeout_seconds"`
}

// DeliveryTimeout returns the per-attempt HTTP POST timeout, defaulting to
// 10s.
func (c WebhookConfig) DeliveryTimeout() time.Duration {
	if c.DeliveryTimeoutSeconds == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

// DKIMConfig holds DkimRegistrar filesystem and milter reload settings.
type DKIMConfig struct {
	KeyDir           string `yaml:"key_dir"`
	KeyTablePath     string `yaml:"key_table_path"`
	SigningTablePath string `yaml:"signing_table_path"`
	TrustedHostsPath string `yaml:"trusted_hosts_path"`
	MilterServiceName string `yaml:"milter_service_name"`
	MilterPIDFile    string `yaml:"milter_pid_file"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 20
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}
	if cfg.Postgres.ConnMaxLifeMins == 0 {
		cfg.Postgres.ConnMaxLifeMins = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Mailing.Sender == "" {
		cfg.Mailing.Sender = "smtp"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.TimeoutSeconds == 0 {
		cfg.SMTP.TimeoutSeconds = 15
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Quota.DefaultDailyLimit == 0 {
		cfg.Quota.DefaultDailyLimit = 0 // no limit unless a plan says otherwise
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 20
	}
	if cfg.Worker.BlockMillis == 0 {
		cfg.Worker.BlockMillis = 5000
	}
	if cfg.Worker.ClaimIdleMillis == 0 {
		cfg.Worker.ClaimIdleMillis = 60000
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 5
	}
	if cfg.Worker.HeartbeatSeconds == 0 {
		cfg.Worker.HeartbeatSeconds = 5
	}
	if cfg.Webhook.DefaultMaxRetries == 0 {
		cfg.Webhook.DefaultMaxRetries = 5
	}
	if cfg.Webhook.DefaultBatchSize == 0 {
		cfg.Webhook.DefaultBatchSize = 20
	}
	if cfg.DKIM.KeyDir == "" {
		cfg.DKIM.KeyDir = "/etc/opendkim/keys"
	}
	if cfg.DKIM.KeyTablePath == "" {
		cfg.DKIM.KeyTablePath = "/etc/opendkim/KeyTable"
	}
	if cfg.DKIM.SigningTablePath == "" {
		cfg.DKIM.SigningTablePath = "/etc/opendkim/SigningTable"
	}
	if cfg.DKIM.TrustedHostsPath == "" {
		cfg.DKIM.TrustedHostsPath = "/etc/opendkim/TrustedHosts"
	}
	if cfg.DKIM.MilterServiceName == "" {
		cfg.DKIM.MilterServiceName = "opendkim"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.SMTP.Host = host
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		cfg.SMTP.Password = pass
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_HMAC_SECRET"); v != "" {
		cfg.Tracking.HMACSecret = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("AUTH_ALLOWED_DOMAIN"); v != "" {
		cfg.Auth.AllowedDomain = v
	}

	return cfg, nil
}

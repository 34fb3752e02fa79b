package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration loaded from YAML with PAYCORE_ env overrides.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Lock     LockConfig     `mapstructure:"lock"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// StorageConfig picks the database: "mysql" (default) or "sqlite" for local runs.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	AccountEvents string `mapstructure:"account_events"`
	PaymentEvents string `mapstructure:"payment_events"`
}

// LockConfig selects the per-entity lock backend: "redis" or "local".
type LockConfig struct {
	Backend         string `mapstructure:"backend"`
	TTLSeconds      int    `mapstructure:"ttl_seconds"`
	RetryIntervalMs int    `mapstructure:"retry_interval_ms"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

type CacheConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	AccountTTLSeconds int  `mapstructure:"account_ttl_seconds"`
}

type JobsConfig struct {
	ScheduledSweepSeconds  int `mapstructure:"scheduled_sweep_seconds"`
	RetrySweepSeconds      int `mapstructure:"retry_sweep_seconds"`
	CompensateSeconds      int `mapstructure:"compensate_seconds"`
	LimitResetCheckSeconds int `mapstructure:"limit_reset_check_seconds"`
	OutboxIntervalMs       int `mapstructure:"outbox_interval_ms"`
	BatchSize              int `mapstructure:"batch_size"`
}

type BusinessConfig struct {
	MaxRetryCount int              `mapstructure:"max_retry_count"` // outbox relay attempts
	Payment       PaymentConfig    `mapstructure:"payment"`
	Compliance    ComplianceConfig `mapstructure:"compliance"`
	Fraud         FraudConfig      `mapstructure:"fraud"`
	Fees          FeesConfig       `mapstructure:"fees"`
}

type PaymentConfig struct {
	MaxRetries             int `mapstructure:"max_retries"`
	RetryBackoffMinutes    int `mapstructure:"retry_backoff_minutes"`
	StuckProcessingMinutes int `mapstructure:"stuck_processing_minutes"`
}

type ComplianceConfig struct {
	ReviewThreshold  float64  `mapstructure:"review_threshold"`
	BlockedCountries []string `mapstructure:"blocked_countries"`
}

type FraudConfig struct {
	ReviewScore           int     `mapstructure:"review_score"`
	RejectScore           int     `mapstructure:"reject_score"`
	LargeAmount           float64 `mapstructure:"large_amount"`
	VelocityWindowMinutes int     `mapstructure:"velocity_window_minutes"`
	VelocityLimit         int     `mapstructure:"velocity_limit"`
}

// FeesConfig holds the default fee rule plus overrides keyed by lower-case
// payment type (viper folds map keys to lower case).
type FeesConfig struct {
	Default FeeRule            `mapstructure:"default"`
	ByType  map[string]FeeRule `mapstructure:"by_type"`
}

type FeeRule struct {
	Percent float64 `mapstructure:"percent"`
	Fixed   float64 `mapstructure:"fixed"`
	Min     float64 `mapstructure:"min"`
	Max     float64 `mapstructure:"max"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("storage.sqlite_path", "paycore.db")

	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)

	v.SetDefault("kafka.topic.account_events", "account-events")
	v.SetDefault("kafka.topic.payment_events", "payment-events")

	v.SetDefault("lock.backend", "redis")
	v.SetDefault("lock.ttl_seconds", 30)
	v.SetDefault("lock.retry_interval_ms", 50)
	v.SetDefault("lock.max_retries", 100)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.account_ttl_seconds", 300)

	v.SetDefault("jobs.scheduled_sweep_seconds", 60)
	v.SetDefault("jobs.retry_sweep_seconds", 300)
	v.SetDefault("jobs.compensate_seconds", 30)
	v.SetDefault("jobs.limit_reset_check_seconds", 60)
	v.SetDefault("jobs.outbox_interval_ms", 100)
	v.SetDefault("jobs.batch_size", 100)

	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.payment.max_retries", 3)
	v.SetDefault("business.payment.retry_backoff_minutes", 5)
	v.SetDefault("business.payment.stuck_processing_minutes", 10)
	v.SetDefault("business.compliance.review_threshold", 50000)
	v.SetDefault("business.fraud.review_score", 60)
	v.SetDefault("business.fraud.reject_score", 80)
	v.SetDefault("business.fraud.large_amount", 10000)
	v.SetDefault("business.fraud.velocity_window_minutes", 60)
	v.SetDefault("business.fraud.velocity_limit", 10)
}

// Load reads the YAML file at configPath. Any key can be overridden from the
// environment, e.g. PAYCORE_MYSQL_HOST for mysql.host.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadConfig loads the configuration or exits the process.
func LoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	return cfg
}

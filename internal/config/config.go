// Package config loads engine configuration from a YAML file and the
// environment. COMMISSION_CONFIG_PATH points at the file; environment
// variables override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// Config is the full engine configuration.
type Config struct {
	Env        string     `yaml:"env" env:"COMMISSION_ENV" env-default:"dev"`
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	Cache      Cache      `yaml:"cache"`
	EventBus   EventBus   `yaml:"event_bus"`
	Engine     Engine     `yaml:"engine"`
	Worker     Worker     `yaml:"worker"`
	RateTables RateTables `yaml:"rate_tables"`
}

// Server holds HTTP server settings.
type Server struct {
	Host         string `yaml:"host" env:"COMMISSION_HTTP_HOST" env-default:"0.0.0.0"`
	Port         int    `yaml:"port" env:"COMMISSION_HTTP_PORT" env-default:"8080"`
	ReadTimeout  int    `yaml:"read_timeout" env-default:"30"`
	WriteTimeout int    `yaml:"write_timeout" env-default:"30"`
}

// Database holds repository settings.
type Database struct {
	Driver           string `yaml:"driver" env:"COMMISSION_DB_DRIVER" env-default:"sqlite"`
	SQLitePath       string `yaml:"sqlite_path" env:"COMMISSION_SQLITE_PATH" env-default:"./commission.db"`
	PostgresHost     string `yaml:"postgres_host" env:"COMMISSION_PG_HOST" env-default:"localhost"`
	PostgresPort     int    `yaml:"postgres_port" env:"COMMISSION_PG_PORT" env-default:"5432"`
	PostgresUser     string `yaml:"postgres_user" env:"COMMISSION_PG_USER" env-default:"commission"`
	PostgresPassword string `yaml:"postgres_password" env:"COMMISSION_PG_PASSWORD"`
	PostgresDB       string `yaml:"postgres_db" env:"COMMISSION_PG_DB" env-default:"commission"`
	PostgresSSLMode  string `yaml:"postgres_sslmode" env:"COMMISSION_PG_SSLMODE" env-default:"disable"`
	MaxOpenConns     int    `yaml:"max_open_conns" env-default:"25"`
	MaxIdleConns     int    `yaml:"max_idle_conns" env-default:"5"`
}

// Cache holds cache settings.
type Cache struct {
	Type           string        `yaml:"type" env:"COMMISSION_CACHE_TYPE" env-default:"memory"`
	LocalMaxSize   int           `yaml:"local_max_size" env-default:"10000"`
	LocalTTL       time.Duration `yaml:"local_ttl" env-default:"5m"`
	RedisAddr      string        `yaml:"redis_addr" env:"COMMISSION_REDIS_ADDR"`
	RedisPassword  string        `yaml:"redis_password" env:"COMMISSION_REDIS_PASSWORD"`
	RedisDB        int           `yaml:"redis_db" env-default:"0"`
	EnableTwoPhase bool          `yaml:"enable_two_phase" env-default:"false"`
}

// EventBus holds event bus settings.
type EventBus struct {
	Type              string   `yaml:"type" env:"COMMISSION_BUS_TYPE" env-default:"channel"`
	ChannelBufferSize int      `yaml:"channel_buffer_size" env-default:"1000"`
	NATSUrl           string   `yaml:"nats_url" env:"COMMISSION_NATS_URL"`
	NATSToken         string   `yaml:"nats_token" env:"COMMISSION_NATS_TOKEN"`
	NATSMaxReconnects int      `yaml:"nats_max_reconnects" env-default:"10"`
	NATSReconnectWait int      `yaml:"nats_reconnect_wait" env-default:"5"`
	KafkaBrokers      []string `yaml:"kafka_brokers" env:"COMMISSION_KAFKA_BROKERS"`
	KafkaGroupID      string   `yaml:"kafka_group_id" env:"COMMISSION_KAFKA_GROUP_ID" env-default:"commission-engine"`
}

// Engine holds the money-movement tunables.
type Engine struct {
	TDSRatePercent         float64 `yaml:"tds_rate_percent" env-default:"2.0"`
	PayoutTATDays          int     `yaml:"payout_tat_days" env-default:"45"`
	AdvancePayoutThreshold float64 `yaml:"advance_payout_threshold" env-default:"4000000"`
	ActivationBonusAmount  float64 `yaml:"activation_bonus_amount" env-default:"1000"`
}

// Worker holds background worker settings.
type Worker struct {
	Enabled           bool          `yaml:"enabled" env:"COMMISSION_WORKER_ENABLED" env-default:"true"`
	Concurrency       int           `yaml:"concurrency" env-default:"4"`
	IncentiveInterval time.Duration `yaml:"incentive_interval" env-default:"1h"`
	BonusInterval     time.Duration `yaml:"bonus_interval" env-default:"1h"`
}

// RateTables points at an external rate card. Empty path means the
// built-in defaults.
type RateTables struct {
	Path string `yaml:"path" env:"COMMISSION_RATE_TABLES_PATH"`
}

// Load reads configuration from COMMISSION_CONFIG_PATH if set, otherwise
// from the environment alone.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("COMMISSION_CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load that exits on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// ServerConfig converts to the domain server settings.
func (c *Config) ServerConfig() domain.ServerConfig {
	return domain.ServerConfig{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
	}
}

// RepositoryConfig converts to the domain repository settings.
func (c *Config) RepositoryConfig() domain.RepositoryConfig {
	return domain.RepositoryConfig{
		Driver:           c.Database.Driver,
		SQLitePath:       c.Database.SQLitePath,
		PostgresHost:     c.Database.PostgresHost,
		PostgresPort:     c.Database.PostgresPort,
		PostgresUser:     c.Database.PostgresUser,
		PostgresPassword: c.Database.PostgresPassword,
		PostgresDB:       c.Database.PostgresDB,
		PostgresSSLMode:  c.Database.PostgresSSLMode,
		MaxOpenConns:     c.Database.MaxOpenConns,
		MaxIdleConns:     c.Database.MaxIdleConns,
	}
}

// CacheConfig converts to the domain cache settings.
func (c *Config) CacheConfig() domain.CacheConfig {
	return domain.CacheConfig{
		Type:           c.Cache.Type,
		LocalMaxSize:   c.Cache.LocalMaxSize,
		LocalTTL:       c.Cache.LocalTTL,
		RedisAddr:      c.Cache.RedisAddr,
		RedisPassword:  c.Cache.RedisPassword,
		RedisDB:        c.Cache.RedisDB,
		EnableTwoPhase: c.Cache.EnableTwoPhase,
	}
}

// EventBusConfig converts to the domain event bus settings.
func (c *Config) EventBusConfig() domain.EventBusConfig {
	return domain.EventBusConfig{
		Type:              c.EventBus.Type,
		ChannelBufferSize: c.EventBus.ChannelBufferSize,
		NATSUrl:           c.EventBus.NATSUrl,
		NATSToken:         c.EventBus.NATSToken,
		NATSMaxReconnects: c.EventBus.NATSMaxReconnects,
		NATSReconnectWait: c.EventBus.NATSReconnectWait,
		KafkaBrokers:      c.EventBus.KafkaBrokers,
		KafkaGroupID:      c.EventBus.KafkaGroupID,
	}
}

// EngineParams converts to the domain engine parameters.
func (c *Config) EngineParams() domain.EngineParams {
	return domain.EngineParams{
		TDSRatePercent:         c.Engine.TDSRatePercent,
		PayoutTATDays:          c.Engine.PayoutTATDays,
		AdvancePayoutThreshold: c.Engine.AdvancePayoutThreshold,
		ActivationBonusAmount:  c.Engine.ActivationBonusAmount,
	}
}

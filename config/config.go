// Package config loads process configuration from properties files, .env
// files and FERN_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	ChainLockNone     = "none"
	ChainLockAdvisory = "advisory"
	ChainLockRedis    = "redis"
)

type Config struct {
	AppName            string `mapstructure:"app.name" validate:"required"`
	Stage              string `mapstructure:"fern.stage"`
	LogLevel           string `mapstructure:"log.level" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `mapstructure:"log.pretty"`
	StartupMaxAttempts int    `mapstructure:"startup.max.attempts" validate:"min=1"`

	DatabaseHost            string        `mapstructure:"db.host" validate:"required"`
	DatabasePort            int           `mapstructure:"db.port" validate:"required,min=1,max=65535"`
	DatabaseUserName        string        `mapstructure:"db.user" validate:"required"`
	DatabasePassword        string        `mapstructure:"db.password"`
	DatabaseName            string        `mapstructure:"db.name" validate:"required"`
	DatabaseSSLMode         string        `mapstructure:"db.sslmode" validate:"required"`
	DatabaseMaxOpenConns    int           `mapstructure:"db.max.open.conns" validate:"min=0"`
	DatabaseMaxIdleConns    int           `mapstructure:"db.max.idle.conns" validate:"min=0"`
	DatabaseConnMaxLifetime time.Duration `mapstructure:"db.conn.max.lifetime"`

	RedisHost     string `mapstructure:"redis.host"`
	RedisPort     int    `mapstructure:"redis.port"`
	RedisPassword string `mapstructure:"redis.password"`
	RedisDB       int    `mapstructure:"redis.db" validate:"min=0"`
	// RoleCacheEnabled caches role names per session in redis for the HTTP server.
	RoleCacheEnabled bool          `mapstructure:"roles.cache.enabled"`
	RoleCacheTTL     time.Duration `mapstructure:"roles.cache.ttl"`

	ServerAddr string `mapstructure:"server.addr" validate:"required"`

	// ChainLockMode picks the lock taken around historical updates.
	ChainLockMode    string        `mapstructure:"chain.lock.mode" validate:"oneof=none advisory redis"`
	ChainLockTTL     time.Duration `mapstructure:"chain.lock.ttl"`
	ChainLockTimeout time.Duration `mapstructure:"chain.lock.timeout"`

	OTLPExporter string `mapstructure:"otlp.exporter" validate:"oneof=none grpc http"`
	OTLPEndpoint string `mapstructure:"otlp.endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp.insecure"`
	// OTLPTimeout bounds each export; zero keeps the exporter's own default.
	OTLPTimeout time.Duration `mapstructure:"otlp.timeout" validate:"min=0"`
}

var validate = validator.New()

// Load reads Properties and decodes them into a validated Config.
func Load(configDir string, logger ectologger.Logger) (*Config, *Properties, error) {
	props, err := LoadProperties(configDir, logger)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := FromProperties(props)
	if err != nil {
		return nil, nil, err
	}
	return cfg, props, nil
}

func FromProperties(props *Properties) (*Config, error) {
	var cfg Config
	if err := props.Viper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Tracing() tracing.ProviderConfig {
	return tracing.ProviderConfig{
		ServiceName: c.AppName,
		Exporter:    c.OTLPExporter,
		Endpoint:    c.OTLPEndpoint,
		Insecure:    c.OTLPInsecure,
		Timeout:     c.OTLPTimeout,
	}
}

// Package config loads settings for both binaries from defaults, an optional
// config file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-sync/pkg/circuitbreaker"
	"github.com/fjod/go_cart/cart-sync/pkg/logger"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable pointing at a config file.
const ConfigFileEnv = "CONFIG_FILE"

type Config struct {
	AppEnv      string            `mapstructure:"app_env"`
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Session     SessionConfig     `mapstructure:"session"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Carts       CartsConfig       `mapstructure:"carts"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxBackup int    `mapstructure:"max_backups"`
	MaxAgeDay int    `mapstructure:"max_age_days"`
	Compress  bool   `mapstructure:"compress"`
	AddSource bool   `mapstructure:"add_source"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type SessionConfig struct {
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PersistenceConfig struct {
	Backend  string        `mapstructure:"backend"` // file, redis or memory
	FilePath string        `mapstructure:"file_path"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

type CartsConfig struct {
	Store string `mapstructure:"store"` // memory, mongo or postgres
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"db_name"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Load reads configuration for service. A config file is read only when path
// (or, if path is empty, $CONFIG_FILE) is set. Environment variables override
// both, with dots in keys replaced by underscores: REMOTE_BASE_URL.
func Load(service, path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	switch c.Persistence.Backend {
	case "memory", "redis":
	case "file":
		if c.Persistence.FilePath == "" {
			return errors.New("persistence.file_path is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	switch c.Carts.Store {
	case "memory", "mongo", "postgres":
	default:
		return fmt.Errorf("unknown carts store %q", c.Carts.Store)
	}
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	return nil
}

func (c *Config) LoggerOptions(service string) logger.Options {
	return logger.Options{
		Service:   service,
		Env:       c.AppEnv,
		Level:     c.Log.Level,
		Format:    c.Log.Format,
		Output:    c.Log.Output,
		FilePath:  c.Log.FilePath,
		MaxSizeMB: c.Log.MaxSizeMB,
		MaxBackup: c.Log.MaxBackup,
		MaxAgeDay: c.Log.MaxAgeDay,
		Compress:  c.Log.Compress,
		AddSource: c.Log.AddSource,
	}
}

func (c *Config) BreakerSettings(name string) circuitbreaker.Settings {
	return circuitbreaker.Settings{
		Name:                name,
		MaxRequests:         c.Remote.Breaker.MaxRequests,
		Interval:            c.Remote.Breaker.Interval,
		Timeout:             c.Remote.Breaker.Timeout,
		ConsecutiveFailures: c.Remote.Breaker.ConsecutiveFailures,
	}
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("app_env", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/"+service+".log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.add_source", false)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	breaker := circuitbreaker.DefaultSettings(service)
	v.SetDefault("remote.base_url", "http://localhost:8081")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.breaker.max_requests", breaker.MaxRequests)
	v.SetDefault("remote.breaker.interval", breaker.Interval)
	v.SetDefault("remote.breaker.timeout", breaker.Timeout)
	v.SetDefault("remote.breaker.consecutive_failures", breaker.ConsecutiveFailures)

	v.SetDefault("session.sync_timeout", 10*time.Second)

	v.SetDefault("persistence.backend", "file")
	v.SetDefault("persistence.file_path", "data/cart-storage.json")
	v.SetDefault("persistence.key", "cart-storage")
	v.SetDefault("persistence.ttl", time.Duration(0))
	v.SetDefault("persistence.timeout", 2*time.Second)
	v.SetDefault("persistence.redis.addr", "localhost:6379")
	v.SetDefault("persistence.redis.password", "")
	v.SetDefault("persistence.redis.db", 0)

	v.SetDefault("carts.store", "memory")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "carts")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db_name", "carts")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.migrations_path", "internal/repository/migrations")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "carts-submitted")
}

// splitList accepts brokers given either as a list or as one comma-separated
// value, which is how they arrive from the environment.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminPasswordHash is the pre-computed bcrypt hash seeded for the
// admin account. It is never computed at runtime.
const DefaultAdminPasswordHash = "$2a$10$8.UnVuG9HHgffUDAlk8qfOuVGkqRzgVymGe07xd00DMxs.AQubh4a"

// Config is the root configuration for storeinit.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port" yaml:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	BootstrapOnStart bool          `mapstructure:"bootstrap_on_start" yaml:"bootstrap_on_start"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
}

type BootstrapConfig struct {
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Mongo        MongoConfig   `mapstructure:"mongo" yaml:"mongo"`
	Seed         SeedConfig    `mapstructure:"seed" yaml:"seed"`
	Indexes      IndexConfig   `mapstructure:"indexes" yaml:"indexes"`
	Lock         LockConfig    `mapstructure:"lock" yaml:"lock"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis"`
	NATS         NATSConfig    `mapstructure:"nats" yaml:"nats"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri" yaml:"uri"`
	Database       string        `mapstructure:"database" yaml:"database"`
	AppName        string        `mapstructure:"app_name" yaml:"app_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// SeedConfig controls the reference data inserted on first run.
type SeedConfig struct {
	AdminEmail        string `mapstructure:"admin_email" yaml:"admin_email"`
	AdminPasswordHash string `mapstructure:"admin_password_hash" yaml:"admin_password_hash"`
	Catalog           bool   `mapstructure:"catalog" yaml:"catalog"`
}

// IndexConfig controls how unexpected index errors are treated. With Strict
// unset, every index drop/create failure is logged and skipped.
type IndexConfig struct {
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

type LockConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Key     string        `mapstructure:"key" yaml:"key"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// NATSConfig is optional: an empty URL disables the completion announcement.
type NATSConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Stream  string `mapstructure:"stream" yaml:"stream"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the STOREINIT_ prefix (e.g. STOREINIT_BOOTSTRAP_MONGO_URI).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("STOREINIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the bootstrap cannot run without.
func (c *Config) Validate() error {
	var errs []error

	if c.Bootstrap.Mongo.URI == "" {
		errs = append(errs, errors.New("bootstrap.mongo.uri is required"))
	}
	if c.Bootstrap.Mongo.Database == "" {
		errs = append(errs, errors.New("bootstrap.mongo.database is required"))
	}
	if c.Bootstrap.Seed.AdminEmail == "" {
		errs = append(errs, errors.New("bootstrap.seed.admin_email is required"))
	}
	if _, err := bcrypt.Cost([]byte(c.Bootstrap.Seed.AdminPasswordHash)); err != nil {
		errs = append(errs, fmt.Errorf("bootstrap.seed.admin_password_hash is not a bcrypt hash: %w", err))
	}
	if c.Bootstrap.Lock.Enabled {
		if c.Bootstrap.Lock.Key == "" {
			errs = append(errs, errors.New("bootstrap.lock.key is required when the lock is enabled"))
		}
		switch {
		case c.Bootstrap.Lock.TTL <= 0:
			errs = append(errs, errors.New("bootstrap.lock.ttl must be positive"))
		case c.Bootstrap.Lock.TTL < c.Bootstrap.Timeout:
			// The lock is never extended, so it has to outlive the longest run.
			errs = append(errs, fmt.Errorf("bootstrap.lock.ttl (%s) must be at least bootstrap.timeout (%s)",
				c.Bootstrap.Lock.TTL, c.Bootstrap.Timeout))
		}
	}

	return errors.Join(errs...)
}

// Redacted returns a copy of c with credentials masked, suitable for printing.
func (c Config) Redacted() Config {
	out := c
	out.Bootstrap.Mongo.URI = redactURI(c.Bootstrap.Mongo.URI)
	if out.Bootstrap.Redis.Password != "" {
		out.Bootstrap.Redis.Password = "xxxxx"
	}
	out.Bootstrap.NATS.URL = redactURI(c.Bootstrap.NATS.URL)
	return out
}

func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.bootstrap_on_start", false)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "storeinit")
	v.SetDefault("telemetry.log_level", "info")

	v.SetDefault("bootstrap.retry_backoff", 2*time.Second)
	v.SetDefault("bootstrap.timeout", 5*time.Minute)

	v.SetDefault("bootstrap.mongo.uri", "mongodb://mongo:27017")
	v.SetDefault("bootstrap.mongo.database", "internet-store")
	v.SetDefault("bootstrap.mongo.app_name", "storeinit")
	v.SetDefault("bootstrap.mongo.connect_timeout", 10*time.Second)

	v.SetDefault("bootstrap.seed.admin_email", "admin@store.com")
	v.SetDefault("bootstrap.seed.admin_password_hash", DefaultAdminPasswordHash)
	v.SetDefault("bootstrap.seed.catalog", true)

	v.SetDefault("bootstrap.indexes.strict", false)

	v.SetDefault("bootstrap.lock.enabled", false)
	v.SetDefault("bootstrap.lock.key", "storeinit:bootstrap")
	v.SetDefault("bootstrap.lock.ttl", 10*time.Minute)

	v.SetDefault("bootstrap.redis.host", "redis")
	v.SetDefault("bootstrap.redis.port", 6379)
	v.SetDefault("bootstrap.redis.db", 0)

	v.SetDefault("bootstrap.nats.url", "")
	v.SetDefault("bootstrap.nats.stream", "STORE_EVENTS")
	v.SetDefault("bootstrap.nats.subject", "store.bootstrap.completed")
}

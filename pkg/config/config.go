package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ECOMSHOP"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Storage StorageConfig `mapstructure:"storage"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCConfig controls the health endpoint. Port 0 disables it.
type GRPCConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type StorageConfig struct {
	// Driver is "mysql", "sqlite" or "memory".
	Driver string `mapstructure:"driver"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	UserTTL  time.Duration `mapstructure:"user_ttl"`
}

type MySQLConfig struct {
	// DSN takes precedence over the individual connection fields.
	DSN           string `mapstructure:"dsn"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	MaxIdleConns  int    `mapstructure:"max_idle_conns"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type SQLiteConfig struct {
	// Path is a database file, or ":memory:".
	Path        string `mapstructure:"path"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type AuthConfig struct {
	Secret        string        `mapstructure:"secret"`
	Algorithm     string        `mapstructure:"algorithm"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
}

type CatalogConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type EventsConfig struct {
	// Driver is "none", "kafka" or "rabbitmq".
	Driver      string   `mapstructure:"driver"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	RabbitMQURL string   `mapstructure:"rabbitmq_url"`
	Queue       string   `mapstructure:"queue"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load reads configPath (optional) and overlays ECOMSHOP_* environment
// variables, e.g. ECOMSHOP_AUTH_SECRET for auth.secret. The result is
// validated for serving the API.
func Load(configPath string) (*Config, error) {
	config, err := Read(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Read is Load without validation. Callers that need only part of the
// configuration check it with the matching Validate* method.
func Read(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "ecomshop-api")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 0)
	v.SetDefault("storage.driver", "mysql")

	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.auto_migrate", true)
	v.SetDefault("mysql.migrations_dir", "migrations")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.user_ttl", 30*time.Minute)

	v.SetDefault("sqlite.path", "ecomshop.db")
	v.SetDefault("sqlite.auto_migrate", true)

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "ecomshop")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)

	// Required values have empty defaults so that env overrides are picked up.
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.algorithm", "")
	v.SetDefault("auth.token_lifetime", 0)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("catalog.page_size", 0)

	v.SetDefault("events.driver", "none")
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "ecomshop.events")
	v.SetDefault("events.rabbitmq_url", "")
	v.SetDefault("events.queue", "ecomshop_events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.storageErrors()...)
	errs = append(errs, c.authErrors()...)
	if c.Catalog.PageSize <= 0 {
		errs = append(errs, errors.New("catalog.page_size must be positive"))
	}
	errs = append(errs, c.eventsErrors()...)
	return invalid(errs)
}

// ValidateStorage checks only the settings needed to open the store.
func (c *Config) ValidateStorage() error {
	return invalid(c.storageErrors())
}

// ValidateMySQL checks only the MySQL connection settings.
func (c *Config) ValidateMySQL() error {
	return invalid(c.MySQL.missing())
}

func invalid(errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) storageErrors() []error {
	switch c.Storage.Driver {
	case "mysql":
		return c.MySQL.missing()
	case "sqlite":
		if c.SQLite.Path == "" {
			return []error{errors.New("sqlite.path is required")}
		}
	case "memory":
	default:
		return []error{fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)}
	}
	return nil
}

func (c *MySQLConfig) missing() []error {
	if c.DSN == "" && (c.Host == "" || c.Database == "") {
		return []error{errors.New("mysql.dsn (or mysql.host and mysql.database) is required")}
	}
	return nil
}

func (c *Config) authErrors() []error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if c.Auth.Algorithm == "" {
		errs = append(errs, errors.New("auth.algorithm is required"))
	}
	if c.Auth.TokenLifetime <= 0 {
		errs = append(errs, errors.New("auth.token_lifetime must be a positive duration"))
	}
	return errs
}

func (c *Config) eventsErrors() []error {
	switch c.Events.Driver {
	case "", "none":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return []error{errors.New("events.brokers is required for the kafka driver")}
		}
	case "rabbitmq":
		if c.Events.RabbitMQURL == "" {
			return []error{errors.New("events.rabbitmq_url is required for the rabbitmq driver")}
		}
	default:
		return []error{fmt.Errorf("unknown events.driver %q", c.Events.Driver)}
	}
	return nil
}

func (c *MySQLConfig) DSNString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

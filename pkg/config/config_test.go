package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9000
storage:
  driver: mysql
mysql:
  host: db
  database: shop
  username: shop
  password: pw
auth:
  secret: from-file
  algorithm: HS256
  token_lifetime: 15m
catalog:
  page_size: 25
etcd:
  dial_timeout: 3s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, "from-file", cfg.Auth.Secret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenLifetime)
	assert.Equal(t, 25, cfg.Catalog.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Etcd.DialTimeout)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "shop:pw@tcp(db:3306)/shop?charset=utf8mb4&parseTime=True&loc=UTC", cfg.MySQL.DSNString())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ECOMSHOP_AUTH_SECRET", "from-env")
	t.Setenv("ECOMSHOP_CATALOG_PAGE_SIZE", "5")
	t.Setenv("ECOMSHOP_MYSQL_DSN", "u:p@tcp(x:1)/y")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 5, cfg.Catalog.PageSize)
	assert.Equal(t, "u:p@tcp(x:1)/y", cfg.MySQL.DSNString())
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("ECOMSHOP_STORAGE_DRIVER", "memory")
	t.Setenv("ECOMSHOP_AUTH_SECRET", "s")
	t.Setenv("ECOMSHOP_AUTH_ALGORITHM", "HS256")
	t.Setenv("ECOMSHOP_AUTH_TOKEN_LIFETIME", "1h")
	t.Setenv("ECOMSHOP_CATALOG_PAGE_SIZE", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, time.Hour, cfg.Auth.TokenLifetime)
}

func TestLoadRequiresSettings(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  driver: mysql\n"))
	require.Error(t, err)

	for _, want := range []string{"mysql.dsn", "auth.secret", "auth.algorithm", "auth.token_lifetime", "catalog.page_size"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateEvents(t *testing.T) {
	base := func() Config {
		return Config{
			Storage: StorageConfig{Driver: "memory"},
			Auth:    AuthConfig{Secret: "s", Algorithm: "HS256", TokenLifetime: time.Minute},
			Catalog: CatalogConfig{PageSize: 1},
		}
	}

	tests := []struct {
		name    string
		events  EventsConfig
		wantErr bool
	}{
		{name: "none", events: EventsConfig{Driver: "none"}},
		{name: "kafka", events: EventsConfig{Driver: "kafka", Brokers: []string{"k:9092"}}},
		{name: "kafka without brokers", events: EventsConfig{Driver: "kafka"}, wantErr: true},
		{name: "rabbitmq without url", events: EventsConfig{Driver: "rabbitmq"}, wantErr: true},
		{name: "unknown", events: EventsConfig{Driver: "smoke-signals"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			cfg.Events = tt.events
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReadSkipsServingChecks(t *testing.T) {
	path := writeConfig(t, "mysql:\n  dsn: u:p@tcp(db:3306)/shop\n")

	_, err := Load(path)
	require.Error(t, err)

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateMySQL())
	assert.NoError(t, cfg.ValidateStorage())
	assert.Equal(t, "migrations", cfg.MySQL.MigrationsDir)

	cfg.MySQL.DSN = ""
	assert.ErrorContains(t, cfg.ValidateMySQL(), "mysql.dsn")
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "memory", cfg: Config{Storage: StorageConfig{Driver: "memory"}}},
		{name: "sqlite", cfg: Config{Storage: StorageConfig{Driver: "sqlite"}, SQLite: SQLiteConfig{Path: "shop.db"}}},
		{name: "sqlite without path", cfg: Config{Storage: StorageConfig{Driver: "sqlite"}}, wantErr: "sqlite.path"},
		{name: "mysql without dsn", cfg: Config{Storage: StorageConfig{Driver: "mysql"}}, wantErr: "mysql.dsn"},
		{name: "unknown", cfg: Config{Storage: StorageConfig{Driver: "csv"}}, wantErr: "csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateStorage()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/ecomshop/pkg/config"
	"github.com/example/ecomshop/pkg/discovery"
	"github.com/example/ecomshop/pkg/logger"
	"github.com/example/ecomshop/pkg/repository"
	"github.com/example/ecomshop/pkg/service"
)

const versionTimeFormat = "20060102150405"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ecomctl",
		Short:         "ecomshop administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file")

	load := func() (*config.Config, error) {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			return config.Read("")
		}
		return config.Read(configPath)
	}

	rootCmd.AddCommand(
		createMigrationCommand(load),
		migrateUpCommand(load),
		migrateDownCommand(load),
		adminCommand(load, "grant-admin", "give a user admin rights", true),
		adminCommand(load, "revoke-admin", "take admin rights away from a user", false),
		auditCommand(load),
		instancesCommand(load),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loader reads the configuration without validating it. Each command checks
// only the sections it uses.
type loader func() (*config.Config, error)

func createMigrationCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-create [name]",
		Short: "create sql migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			version := time.Now().UTC().Format(versionTimeFormat)
			dir := cfg.MySQL.MigrationsDir
			up := filepath.Join(dir, fmt.Sprintf("%s_%s.up.sql", version, args[0]))
			down := filepath.Join(dir, fmt.Sprintf("%s_%s.down.sql", version, args[0]))

			if err := os.WriteFile(up, []byte{}, 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(down, []byte{}, 0o644); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Created SQL up script:", up)
			fmt.Fprintln(cmd.OutOrStdout(), "Created SQL down script:", down)
			return nil
		},
	}
}

// migrationURL turns the configured DSN into a golang-migrate database URL.
// Migration files hold several statements each, so multiStatements is forced.
func migrationURL(cfg *config.MySQLConfig) (string, error) {
	dsn, err := mysqldriver.ParseDSN(cfg.DSNString())
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	dsn.MultiStatements = true
	return "mysql://" + dsn.FormatDSN(), nil
}

func newMigrate(load loader) (*migrate.Migrate, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateMySQL(); err != nil {
		return nil, err
	}
	dbURL, err := migrationURL(&cfg.MySQL)
	if err != nil {
		return nil, err
	}
	return migrate.New("file://"+cfg.MySQL.MigrationsDir, dbURL)
}

func migrateUpCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up",
		Short: "migrate all the way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(load)
			if err != nil {
				return err
			}
			defer m.Close()

			err = m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintln(cmd.OutOrStdout(), "No change in migration")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrated up")
			return nil
		},
	}
}

func migrateDownCommand(load loader) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate-down",
		Short: "roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.New("--steps must be positive")
			}
			m, err := newMigrate(load)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Steps(-steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func adminCommand(load loader, use, short string, grant bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [email]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log, err := logger.New(&cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			users := service.NewUserService(store, nil, nil, log)
			if cfg.Redis.Addr != "" {
				redisRepo := repository.NewRedisRepository(&cfg.Redis)
				defer redisRepo.Close()
				users.WithCache(redisRepo)
			}

			user, err := users.SetAdmin(cmd.Context(), args[0], grant)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is_admin=%t\n", user.Email, user.ID, user.IsAdmin)
			return nil
		},
	}
}

func openStore(cfg *config.Config, log *zap.Logger) (*repository.GormStore, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case "mysql":
		return repository.NewGormStore(&cfg.MySQL, log)
	case "sqlite":
		return repository.NewSQLiteStore(&cfg.SQLite, log)
	}
	return nil, fmt.Errorf("admin changes need a persistent storage driver, not %q", cfg.Storage.Driver)
}

func auditCommand(load loader) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "audit [entity_id]",
		Short: "show audit log entries for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.MongoDB.URI == "" {
				return errors.New("mongodb.uri is not configured")
			}
			mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
			if err != nil {
				return err
			}
			defer mongoRepo.Close(context.Background())

			logs, err := mongoRepo.GetAuditLogs(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(logs)
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

func instancesCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "instances [service]",
		Short: "list instances registered in etcd",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			name := cfg.Server.Name
			if len(args) == 1 {
				name = args[0]
			}

			sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, zap.NewNop())
			if err != nil {
				return err
			}
			defer sd.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Etcd.DialTimeout)
			defer cancel()
			instances, err := sd.Discover(ctx, name)
			if err != nil {
				return err
			}
			for _, inst := range instances {
				fmt.Fprintln(cmd.OutOrStdout(), inst.Addr())
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/ecomshop/gateway"
	"github.com/example/ecomshop/pkg/auth"
	"github.com/example/ecomshop/pkg/config"
	"github.com/example/ecomshop/pkg/discovery"
	"github.com/example/ecomshop/pkg/dispatch"
	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/grpc"
	"github.com/example/ecomshop/pkg/logger"
	"github.com/example/ecomshop/pkg/repository"
	"github.com/example/ecomshop/pkg/service"
)

const defaultConfigPath = "config/config.yaml"

func configPath() string {
	if p := os.Getenv("ECOMSHOP_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory store, data is lost on exit")
		return repository.NewSQLiteStore(&config.SQLiteConfig{Path: ":memory:", AutoMigrate: true}, log)
	case "sqlite":
		return repository.NewSQLiteStore(&cfg.SQLite, log)
	}
	return repository.NewGormStore(&cfg.MySQL, log)
}

// openAudit returns nil when MongoDB is not configured or does not answer a
// ping within timeout. mongo.Connect alone does not dial.
func openAudit(ctx context.Context, cfg *config.MongoDBConfig, timeout time.Duration, log *zap.Logger) *repository.MongoRepository {
	if cfg.URI == "" {
		return nil
	}
	mongoRepo, err := repository.NewMongoRepository(cfg)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = mongoRepo.Ping(pingCtx)
		cancel()
		if err != nil {
			mongoRepo.Close(context.Background())
		}
	}
	if err != nil {
		log.Warn("Failed to connect to MongoDB, audit log disabled", zap.Error(err))
		return nil
	}
	log.Info("MongoDB connected successfully")
	return mongoRepo
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting API Gateway",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver))

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		log.Fatal("Store is not reachable", zap.Error(err))
	}

	var redisRepo *repository.RedisRepository
	if cfg.Redis.Addr != "" {
		redisRepo = repository.NewRedisRepository(&cfg.Redis)
		if err := redisRepo.Ping(ctx); err != nil {
			log.Warn("Redis connection failed, user cache disabled", zap.Error(err))
			redisRepo.Close()
			redisRepo = nil
		} else {
			log.Info("Redis connected successfully")
			defer redisRepo.Close()
		}
	}

	var audit dispatch.AuditWriter
	if mongoRepo := openAudit(ctx, &cfg.MongoDB, 5*time.Second, log); mongoRepo != nil {
		audit = mongoRepo
		defer mongoRepo.Close(context.Background())
	}

	publisher, err := events.NewPublisher(&cfg.Events)
	if err != nil {
		log.Fatal("Failed to create event publisher", zap.Error(err))
	}
	dispatcher, err := dispatch.NewDispatcher(audit, publisher, 5*time.Second, log)
	if err != nil {
		log.Fatal("Failed to start event dispatcher", zap.Error(err))
	}

	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatal("Failed to create password hasher", zap.Error(err))
	}
	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Algorithm, cfg.Auth.TokenLifetime)
	if err != nil {
		log.Fatal("Failed to create token service", zap.Error(err))
	}

	users := service.NewUserService(store, hasher, tokens, log).WithNotifier(dispatcher)
	if redisRepo != nil {
		users.WithCache(redisRepo)
	}
	gw := gateway.NewGateway(cfg, gateway.Services{
		Users:   users,
		Catalog: service.NewCatalogService(store, cfg.Catalog.PageSize, log).WithNotifier(dispatcher),
		Carts:   service.NewCartService(store, log),
		Orders:  service.NewOrderService(store, log).WithNotifier(dispatcher),
	}, log)

	var health *grpc.HealthServer
	if cfg.GRPC.Port != 0 {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatal("Failed to listen for health checks", zap.Error(err))
		}
		health = grpc.NewHealthServer(cfg.Server.Name, store, 10*time.Second, log)
		go func() {
			if err := health.Serve(lis); err != nil {
				log.Error("Health server stopped", zap.Error(err))
			}
		}()
	}

	var (
		sd       *discovery.ServiceDiscovery
		instance = &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port}
	)
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		}
	}

	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	log.Info("Gateway started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-gwErr:
		log.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down gateway", zap.Error(err))
	}
	if health != nil {
		health.Stop()
	}
	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			log.Warn("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}
	if err := dispatcher.Shutdown(); err != nil {
		log.Error("Failed to stop event dispatcher", zap.Error(err))
	}

	log.Info("Gateway stopped")
}

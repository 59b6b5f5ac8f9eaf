package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Pinger is satisfied by repository.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves the standard gRPC health service. The reported status
// follows the result of the last Ping.
type HealthServer struct {
	service  string
	pinger   Pinger
	interval time.Duration
	logger   *zap.Logger

	server *grpc.Server
	health *health.Server

	stopOnce sync.Once
	stop     chan struct{}
}

func NewHealthServer(service string, pinger Pinger, interval time.Duration, logger *zap.Logger) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		service:  service,
		pinger:   pinger,
		interval: interval,
		logger:   logger.Named("health"),
		server:   srv,
		health:   hs,
		stop:     make(chan struct{}),
	}
}

// Check pings the store once and updates the served status.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("Store ping failed", zap.Error(err))
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
	return status
}

// Serve blocks until Stop is called or the listener fails.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.Check(context.Background())
	go h.watch()

	h.logger.Info("Health service started", zap.String("address", lis.Addr().String()))
	return h.server.Serve(lis)
}

func (h *HealthServer) watch() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Check(context.Background())
		case <-h.stop:
			return
		}
	}
}

func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.health.Shutdown()
		h.server.GracefulStop()
	})
}

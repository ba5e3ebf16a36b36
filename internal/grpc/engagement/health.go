package engagement

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"honeypot-lab/pkg/logger"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// RegisterHealthServer registers the gRPC health service and keeps its status
// in line with the dependency checks until ctx is done
func RegisterHealthServer(ctx context.Context, grpcServer *grpc.Server, checks map[string]HealthCheck, interval time.Duration, log *logger.Logger) *health.Server {
	log = log.WithComponent("grpc-health")
	healthServer := health.NewServer()

	setStatus := func(s grpc_health_v1.HealthCheckResponse_ServingStatus) {
		healthServer.SetServingStatus("", s)
		healthServer.SetServingStatus(ServiceName, s)
	}

	probe := func() {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		for name, check := range checks {
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := check(checkCtx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("check", name).Msg("dependency unhealthy")
				status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			}
		}
		setStatus(status)
	}

	probe()

	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				healthServer.Shutdown()
				return
			case <-ticker.C:
				probe()
			}
		}
	}()

	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	return healthServer
}

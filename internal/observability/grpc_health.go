package observability

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes grpc.health.v1.Health for orchestrators that health-check over gRPC.
// The serving status of ServiceName (and of the empty service) follows the readiness checks.
type GRPCHealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   []Check
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewGRPCHealthServer creates a health server that re-runs checks every interval
func NewGRPCHealthServer(interval time.Duration, checks ...Check) *GRPCHealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	hs := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	s := &GRPCHealthServer{
		server:   server,
		health:   hs,
		checks:   checks,
		interval: interval,
		stop:     make(chan struct{}),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)

	// The loop is owned by the constructor so Stop can wait on it from any goroutine
	s.wg.Add(1)
	go s.loop()

	return s
}

// Serve refreshes the status once and blocks serving on lis
func (s *GRPCHealthServer) Serve(lis net.Listener) error {
	s.Refresh(context.Background())
	return s.server.Serve(lis)
}

// Refresh runs the checks once and updates the serving status
func (s *GRPCHealthServer) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	ok, deps := RunChecks(ctx, s.checks...)
	if ok {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		logger := GetLogger()
		logger.Warn().Interface("dependencies", deps).Msg("gRPC health: not serving")
	}
	return ok
}

func (s *GRPCHealthServer) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Refresh(context.Background())
		}
	}
}

func (s *GRPCHealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks everything NOT_SERVING and drains open RPCs
func (s *GRPCHealthServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.server.GracefulStop()
		s.wg.Wait()
	})
}

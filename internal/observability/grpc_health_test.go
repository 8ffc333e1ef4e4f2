package observability

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T, healthy *atomic.Bool) (*GRPCHealthServer, healthpb.HealthClient) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	srv := NewGRPCHealthServer(time.Hour, Check{
		Name: "backend",
		Fn:   func(ctx context.Context) (bool, error) { return healthy.Load(), nil },
	})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service}, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("Check(%q) failed: %v", service, err)
	}
	return resp.GetStatus()
}

func TestGRPCHealthServer_TracksChecks(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	srv, client := startHealthServer(t, &healthy)

	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %s", got)
	}
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected overall SERVING, got %s", got)
	}

	healthy.Store(false)
	if srv.Refresh(context.Background()) {
		t.Error("Expected Refresh to report unhealthy")
	}

	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING, got %s", got)
	}
}

func TestGRPCHealthServer_StartsNotServingWhenUnhealthy(t *testing.T) {
	var healthy atomic.Bool

	_, client := startHealthServer(t, &healthy)

	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING, got %s", got)
	}
}

func TestGRPCHealthServer_StopBeforeServe(t *testing.T) {
	srv := NewGRPCHealthServer(time.Millisecond, Check{
		Name: "backend",
		Fn:   func(ctx context.Context) (bool, error) { return true, nil },
	})

	// A shutdown signal can arrive before the serving goroutine runs
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Stop()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer lis.Close()

	if err := srv.Serve(lis); err == nil {
		t.Error("Expected Serve after Stop to fail")
	}
}

// Package probe publishes the service's serving state over the gRPC health
// protocol and the plain HTTP /healthz and /readyz endpoints.
package probe

import (
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/diagnosis-service/internal/metrics"
)

// Probe wraps a gRPC health server for a single named service.
type Probe struct {
	name   string
	health *health.Server
	grpc   *grpc.Server
}

// New creates a Probe reporting NOT_SERVING until SetServing is called.
// When traced is true the gRPC server is instrumented with otelgrpc.
func New(serviceName string, traced bool) *Probe {
	var opts []grpc.ServerOption
	if traced {
		opts = append(opts, grpc.ChainUnaryInterceptor(otelgrpc.UnaryServerInterceptor()))
	}

	p := &Probe{
		name:   serviceName,
		health: health.NewServer(),
		grpc:   grpc.NewServer(opts...),
	}

	healthpb.RegisterHealthServer(p.grpc, p.health)

	// Enable server reflection for debugging
	reflection.Register(p.grpc)

	p.SetNotServing()
	return p
}

// SetServing marks the service and the overall server as SERVING.
func (p *Probe) SetServing() {
	p.health.SetServingStatus(p.name, healthpb.HealthCheckResponse_SERVING)
	p.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING) // Overall health
}

// SetNotServing marks the service and the overall server as NOT_SERVING.
func (p *Probe) SetNotServing() {
	p.health.SetServingStatus(p.name, healthpb.HealthCheckResponse_NOT_SERVING)
	p.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

// ModelUnloaded is an unload hook: without a model the instance cannot serve.
func (p *Probe) ModelUnloaded() {
	p.SetNotServing()
	metrics.SetModelAbsent()
}

// Serve accepts gRPC connections on lis until Stop is called.
func (p *Probe) Serve(lis net.Listener) error {
	return p.grpc.Serve(lis)
}

// Listen binds the gRPC port and serves in the caller's goroutine.
func (p *Probe) Listen(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on :%d: %w", port, err)
	}
	return p.Serve(lis)
}

// Shutdown marks the server NOT_SERVING and stops it gracefully.
func (p *Probe) Shutdown() {
	p.health.Shutdown()
	p.grpc.GracefulStop()
}

// HTTPHandler returns /healthz and /readyz handlers backed by the health server.
func (p *Probe) HTTPHandler() http.Handler {
	mux := http.NewServeMux()

	check := func(ok, fail string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			resp, err := p.health.Check(r.Context(), &healthpb.HealthCheckRequest{})
			if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(fail))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(ok))
		}
	}

	// Health check endpoint
	mux.HandleFunc("/healthz", check("OK", "Service Unavailable"))

	// Readiness check (same as healthz for now)
	mux.HandleFunc("/readyz", check("Ready", "Not Ready"))

	return mux
}

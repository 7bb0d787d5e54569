package probe

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the named service reported alongside the overall status.
const ServiceName = "realtime"

// Probe owns a gRPC server that serves only the health service.
type Probe struct {
	srv    *grpc.Server
	health *health.Server
}

// New creates a Probe reporting SERVING for "" and ServiceName.
func New(opts ...grpc.ServerOption) *Probe {
	p := &Probe{
		srv:    grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(p.srv, p.health)
	p.SetServing(true)
	return p
}

// Serve accepts connections on lis until Stop is called.
func (p *Probe) Serve(lis net.Listener) error {
	return p.srv.Serve(lis)
}

// SetServing flips both services between SERVING and NOT_SERVING.
func (p *Probe) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	p.health.SetServingStatus("", status)
	p.health.SetServingStatus(ServiceName, status)
}

// Stop marks the services NOT_SERVING and stops the server gracefully.
func (p *Probe) Stop() {
	p.health.Shutdown()
	p.srv.GracefulStop()
}

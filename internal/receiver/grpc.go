package receiver

import (
	"context"
	"log"
	"net"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nixlim/tally/internal/config"
)

// GRPCReceiver serves the OTLP LogsService.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer

	cfg      config.ReceiverConfig
	sink     Sink
	logger   Logger
	listener net.Listener
	server   *grpc.Server
}

func NewGRPCReceiver(cfg config.ReceiverConfig, sink Sink, opts ...Option) *GRPCReceiver {
	o := buildOptions(opts)
	return &GRPCReceiver{cfg: cfg, sink: sink, logger: o.logger}
}

// Start binds the configured port and serves in the background.
func (r *GRPCReceiver) Start(ctx context.Context) error {
	lis, err := listen(r.cfg.Bind, r.cfg.GRPCPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	go func() {
		if err := r.server.Serve(lis); err != nil {
			log.Printf("ERROR: gRPC receiver stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (r *GRPCReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *GRPCReceiver) Stop() {
	if r.server != nil {
		r.server.GracefulStop()
	}
}

// Export implements collogspb.LogsServiceServer.
func (r *GRPCReceiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	o := process(ctx, r.sink, r.logger, req)
	if o.retryable() {
		return nil, status.Errorf(codes.Unavailable, "logging event: %v", o.err)
	}
	return partialSuccess(o), nil
}

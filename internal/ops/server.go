// Package ops serves the gRPC health service and reflection on the ops port
package ops

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"gochat/internal/common"
)

// ServiceName is the health-check service name for the chat API.
const ServiceName = "gochat.Chat"

const defaultCheckInterval = 10 * time.Second

// Server reports SERVING while the message store answers pings.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	store      common.Pinger
	interval   time.Duration
	log        zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func NewServer(store common.Pinger, log zerolog.Logger) *Server {
	l := log.With().Str("component", "ops").Logger()
	s := &Server{
		health:   health.NewServer(),
		store:    store,
		interval: defaultCheckInterval,
		log:      l,
		stop:     make(chan struct{}),
	}

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.loggingUnaryInterceptor),
		grpc.StreamInterceptor(s.loggingStreamInterceptor),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	return s
}

// Serve runs the health watcher and blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.CheckNow(context.Background())
	go s.watch()
	return s.grpcServer.Serve(lis)
}

// CheckNow pings the store once and updates the reported status.
func (s *Server) CheckNow(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("store ping failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

func (s *Server) watch() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CheckNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *Server) GracefulStop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	})
}

func (s *Server) loggingUnaryInterceptor(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	start := time.Now()
	resp, err := handler(ctx, req)

	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).Dur("duration", time.Since(start)).Msg("grpc call")
	return resp, err
}

func (s *Server) loggingStreamInterceptor(srv interface{}, stream grpc.ServerStream,
	info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {

	s.log.Debug().Str("method", info.FullMethod).Msg("grpc stream started")
	err := handler(srv, stream)
	if err != nil {
		s.log.Warn().Err(err).Str("method", info.FullMethod).Msg("grpc stream ended with error")
	}
	return err
}

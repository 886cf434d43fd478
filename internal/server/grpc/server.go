// Package grpc exposes token introspection and revocation over gRPC for
// services that sit next to the HTTP API.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Users is the part of services.UserService the gRPC boundary needs.
type Users interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	Logout(ctx context.Context, token string) error
}

type GRPCServer struct {
	address string
	users   Users
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewGRPCServer(a string, l logging.Logger, us Users, m *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		metrics: m,
	}
}

// newServer builds the grpc.Server with interceptors, TokenService and the
// standard health service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&TokenServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(TokenServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}

func (s *GRPCServer) Introspect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, ok := identityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}

	out, err := structpb.NewStruct(map[string]any{
		"username":   id.Username,
		"issued_at":  id.IssuedAt.UTC().Format(time.RFC3339),
		"expires_at": id.ExpiresAt.UTC().Format(time.RFC3339),
		"token_id":   id.TokenID,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) Revoke(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.users.Logout(ctx, tokenFrom(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "token revoked over grpc")
	return &emptypb.Empty{}, nil
}

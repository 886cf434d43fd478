package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/common"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	tokenKey
)

// tokenFromMetadata accepts "authorization: Bearer <t>" and the bare
// "access_token: <t>" form.
func tokenFromMetadata(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
		return common.ParseBearer(values[0])
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		if t := strings.TrimSpace(values[0]); t != "" {
			return t, true
		}
	}
	return "", false
}

// accessTokenInterceptor authenticates every TokenService call. Other
// services, such as health, pass through.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+TokenServiceName+"/") {
		return handler(ctx, req)
	}

	token, ok := tokenFromMetadata(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}

	id, err := s.users.Authenticate(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	ctx = context.WithValue(ctx, identityKey, id)
	ctx = context.WithValue(ctx, tokenKey, token)
	return handler(ctx, req)
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	s.metrics.GRPCRequest(info.FullMethod, code.String())
	s.logger.Debug(ctx, "grpc request", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
	return resp, err
}

// toStatus maps domain errors onto gRPC codes. Token rejections share one
// message.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case auth.IsTokenRejection(err):
		return status.Error(codes.Unauthenticated, "invalid or expired token")
	case errors.Is(err, auth.ErrUnavailable):
		s.logger.Error(ctx, "auth backend unavailable", "error", err)
		return status.Error(codes.Unavailable, "service unavailable")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

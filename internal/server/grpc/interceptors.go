package grpcserver

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/clipsync/internal/limiter"
	pb "github.com/and161185/clipsync/internal/rpc/replicav1"
)

// LoggingUnary returns a unary server interceptor for structured logging.
// Only metadata is logged, never document bodies.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		}
		if owner, ok := OwnerIDFromCtx(ctx); ok {
			fields = append(fields, zap.String("owner", owner.String()))
		}
		switch code {
		case codes.OK, codes.InvalidArgument, codes.Unauthenticated, codes.Canceled:
			log.Info("grpc", fields...)
		default:
			log.Warn("grpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary verifies the bearer token of every Replica call and stores the
// owner in the context. Other services (health) pass through. With a limiter,
// peers that keep failing are refused with ResourceExhausted.
func (s *Server) AuthUnary() grpc.UnaryServerInterceptor {
	prefix := "/" + pb.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return next(ctx, req)
		}
		var key []byte
		if s.lim != nil {
			key = peerKey(ctx)
			ok, retry, err := s.lim.Allow(ctx, key)
			if err != nil {
				return nil, status.Error(codes.Internal, "internal")
			}
			if !ok {
				return nil, status.Errorf(codes.ResourceExhausted, "too many failed attempts, retry in %s", retry.Round(time.Second))
			}
		}
		owner, err := s.ownerIDFromToken(ctx)
		if err != nil {
			if s.lim != nil {
				if blocked, _, ferr := s.lim.Failure(ctx, key); ferr == nil && blocked {
					return nil, status.Error(codes.ResourceExhausted, "too many failed attempts")
				}
			}
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return next(WithOwnerID(ctx, owner), req)
	}
}

func peerKey(ctx context.Context) []byte {
	addr := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
	}
	return limiter.HashPeer(addr)
}

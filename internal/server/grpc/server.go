// Package grpcserver exposes the clipsync replica gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/clipsync/internal/convert"
	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/limiter"
	pb "github.com/and161185/clipsync/internal/rpc/replicav1"
	"github.com/and161185/clipsync/internal/service"
)

// Server wires the document service into gRPC handlers.
type Server struct {
	pb.UnimplementedReplicaServer
	docs    service.DocumentService
	signKey []byte
	lim     limiter.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter enables lockout of peers presenting bad tokens.
func WithLimiter(l limiter.Limiter) Option { return func(s *Server) { s.lim = l } }

// New constructs a gRPC server with injected services.
func New(docs service.DocumentService, signKey []byte, opts ...Option) *Server {
	s := &Server{docs: docs, signKey: signKey}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchPage returns one page of the caller's documents of a kind.
func (s *Server) FetchPage(ctx context.Context, req *pb.FetchPageRequest) (*pb.FetchPageResponse, error) {
	owner, ok := OwnerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	kind, err := convert.ParseKind(req.GetKind())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	page, err := s.docs.FetchPage(ctx, owner, kind, req.GetCursor(), int(req.GetLimit()))
	if err != nil {
		return nil, toStatus("fetch page", err)
	}
	return convert.ToWirePage(page), nil
}

// BatchWrite upserts a batch of documents atomically.
func (s *Server) BatchWrite(ctx context.Context, req *pb.BatchWriteRequest) (*pb.BatchWriteResponse, error) {
	owner, ok := OwnerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	kind, err := convert.ParseKind(req.GetKind())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	docs, err := convert.FromWireDocuments(kind, req.GetDocuments())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad documents: %v", err)
	}
	if err := s.docs.BatchWrite(ctx, owner, kind, docs); err != nil {
		return nil, toStatus("batch write", err)
	}
	return &pb.BatchWriteResponse{Written: int32(len(docs))}, nil
}

// DeleteOne removes a document. Deleting a missing document succeeds.
func (s *Server) DeleteOne(ctx context.Context, req *pb.DeleteOneRequest) (*pb.DeleteOneResponse, error) {
	owner, ok := OwnerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	kind, err := convert.ParseKind(req.GetKind())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.docs.DeleteOne(ctx, owner, kind, req.GetId()); err != nil {
		return nil, toStatus("delete", err)
	}
	return &pb.DeleteOneResponse{}, nil
}

// Stats reports how many documents of each kind the caller stores.
func (s *Server) Stats(ctx context.Context, _ *pb.StatsRequest) (*pb.StatsResponse, error) {
	owner, ok := OwnerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	st, err := s.docs.Stats(ctx, owner)
	if err != nil {
		return nil, toStatus("stats", err)
	}
	return convert.ToWireStats(st), nil
}

func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, op)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, op)
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

// ownerIDFromToken: extract "authorization: Bearer <JWT>", verify HS256, return sub as UUID.
func (s *Server) ownerIDFromToken(ctx context.Context) (uuid.UUID, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return uuid.Nil, errors.New("token expired or not valid yet")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("bad subject")
	}
	return id, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

// IssueToken signs an HS256 token whose subject is the owner id. A zero ttl
// issues a token without expiry.
func IssueToken(signKey []byte, owner uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:  owner.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signKey)
}

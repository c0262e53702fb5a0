// Command clipsync-server runs the replica that clipsync clients sync against.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/clipsync/internal/limiter"
	"github.com/and161185/clipsync/internal/migrate"
	"github.com/and161185/clipsync/internal/repository"
	"github.com/and161185/clipsync/internal/repository/memory"
	"github.com/and161185/clipsync/internal/repository/postgres"
	pb "github.com/and161185/clipsync/internal/rpc/replicav1"
	grpcserver "github.com/and161185/clipsync/internal/server/grpc"
	"github.com/and161185/clipsync/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses flags, prepares storage and serves until a signal arrives.
func main() {
	addr := flag.String("addr", ":8443", "listen address")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (empty keeps documents in memory)")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (required)")
	maxBatch := flag.Int("max-batch", 500, "max documents per write")
	maxPage := flag.Int("max-page", 500, "max documents per page")
	certFile := flag.String("tls-cert", "", "TLS certificate (PEM); plaintext when empty")
	keyFile := flag.String("tls-key", "", "TLS private key (PEM)")
	mint := flag.String("mint-token", "", "print a bearer token for this owner id (\"new\" for a fresh one) and exit")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of a minted token (0 = no expiry)")
	maxFails := flag.Int("auth-max-fails", 10, "bad tokens per peer before a lockout")
	failWindow := flag.Duration("auth-window", 15*time.Minute, "window in which bad tokens are counted")
	blockFor := flag.Duration("auth-block", 15*time.Minute, "lockout duration")
	flag.Parse()

	if *jwtKey == "" {
		fmt.Fprintln(os.Stderr, "missing jwt signing key (-jwt-key)")
		os.Exit(2)
	}

	if *mint != "" {
		if err := mintToken(os.Stdout, []byte(*jwtKey), *mint, *tokenTTL); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo repository.DocumentRepository
		lim  limiter.Limiter
	)
	if *dsn == "" {
		logger.Warn("no -dsn given, documents are kept in memory only")
		repo = memory.NewDocumentRepo()
		lim = limiter.NewMemory(*failWindow, *maxFails, *blockFor)
	} else {
		if err := migrate.Up(ctx, *dsn, logger); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, *dsn)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer db.Close()
		repo = postgres.NewDocumentRepo(db)
		lim = limiter.NewPG(db.Pool, *failWindow, *maxFails, *blockFor)
	}

	opts := []grpc.ServerOption{}
	if *certFile != "" || *keyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(*certFile, *keyFile)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("serving without TLS")
	}

	s := newServer(repo, lim, []byte(*jwtKey), *maxBatch, *maxPage, logger, opts...)

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.Bool("tls", *certFile != ""))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newServer wires the replica service, its interceptors and health reporting.
func newServer(repo repository.DocumentRepository, lim limiter.Limiter, signKey []byte, maxBatch, maxPage int, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	var sopts []grpcserver.Option
	if lim != nil {
		sopts = append(sopts, grpcserver.WithLimiter(lim))
	}
	app := grpcserver.New(service.NewDocumentService(repo, maxBatch, maxPage), signKey, sopts...)

	opts = append(opts, grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
		app.AuthUnary(),
	))
	s := grpc.NewServer(opts...)
	pb.RegisterReplicaServer(s, app)

	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func mintToken(out io.Writer, signKey []byte, owner string, ttl time.Duration) error {
	var id uuid.UUID
	var err error
	if owner == "new" {
		id, err = uuid.NewV4()
	} else {
		id, err = uuid.FromString(owner)
	}
	if err != nil {
		return fmt.Errorf("owner id: %w", err)
	}
	tok, err := grpcserver.IssueToken(signKey, id, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "owner: %s\ntoken: %s\n", id, tok)
	return nil
}

package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/clipsync/internal/limiter"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()

	ctx = peer.NewContext(ctx, &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/clipsync.v1.Replica/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/clipsync.v1.Replica/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(ctx, "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/clipsync.v1.Replica/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/clipsync.v1.Replica/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(ctx, "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	s := &Server{signKey: []byte("secret")}
	ic := s.AuthUnary()
	owner := uuid.Must(uuid.NewV4())
	tok, err := IssueToken(s.signKey, owner, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	var seen uuid.UUID
	h := func(ctx context.Context, req any) (any, error) {
		seen, _ = OwnerIDFromCtx(ctx)
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/clipsync.v1.Replica/FetchPage"}
	if _, err := ic(ctxWithAuth(tok), "req", info, h); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if seen != owner {
		t.Fatalf("owner not propagated: %s", seen)
	}

	_, err = ic(context.Background(), "req", info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", err)
	}

	health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	if _, err := ic(context.Background(), "req", health, h); err != nil {
		t.Fatalf("health must bypass auth: %v", err)
	}
}

func TestAuthUnary_LocksOutRepeatedFailures(t *testing.T) {
	t.Parallel()

	s := New(nil, []byte("secret"), WithLimiter(limiter.NewMemory(time.Minute, 2, time.Minute)))
	ic := s.AuthUnary()
	info := &grpc.UnaryServerInfo{FullMethod: "/clipsync.v1.Replica/FetchPage"}
	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	ctx := peer.NewContext(ctxWithAuth("garbage"), &peer.Peer{Addr: fakeAddr{}})
	if _, err := ic(ctx, "req", info, h); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("first failure: want Unauthenticated, got %v", err)
	}
	if _, err := ic(ctx, "req", info, h); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("second failure: want ResourceExhausted, got %v", err)
	}

	tok, err := IssueToken(s.signKey, uuid.Must(uuid.NewV4()), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	good := peer.NewContext(ctxWithAuth(tok), &peer.Peer{Addr: fakeAddr{}})
	if _, err := ic(good, "req", info, h); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("blocked peer with valid token: want ResourceExhausted, got %v", err)
	}
}

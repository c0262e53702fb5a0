// Package transport connects the sync engine to a replica server over gRPC.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/and161185/clipsync/internal/convert"
	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
	pb "github.com/and161185/clipsync/internal/rpc/replicav1"
)

// Options describe how to reach the replica.
type Options struct {
	Addr     string
	Token    string // bearer JWT; subject is the owner id
	Insecure bool   // plaintext connection, for local development only
	CACert   string // PEM file; empty uses the system roots
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string) (credentials.TransportCredentials, error) {
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

// DialOptions builds the transport and per-RPC credentials for o.
func DialOptions(o Options) ([]grpc.DialOption, error) {
	var creds credentials.TransportCredentials
	if o.Insecure {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(o.CACert); err != nil {
			return nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.Token, secure: !o.Insecure}))
	}
	return opts, nil
}

// Store is a remote.DocumentStore backed by the Replica service.
type Store struct {
	cc     *grpc.ClientConn
	cli    pb.ReplicaClient
	health healthpb.HealthClient
}

// Dial creates a lazily connecting client. Extra options are appended after
// the ones derived from o.
func Dial(o Options, extra ...grpc.DialOption) (*Store, error) {
	if o.Addr == "" {
		return nil, errors.New("remote address is not configured")
	}
	opts, err := DialOptions(o)
	if err != nil {
		return nil, err
	}
	cc, err := grpc.NewClient(o.Addr, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	return NewStore(cc), nil
}

// NewStore wraps an existing connection.
func NewStore(cc *grpc.ClientConn) *Store {
	return &Store{cc: cc, cli: pb.NewReplicaClient(cc), health: healthpb.NewHealthClient(cc)}
}

// Close releases the connection.
func (s *Store) Close() error { return s.cc.Close() }

func (s *Store) FetchPage(ctx context.Context, kind model.Kind, cursor string, limit int) (model.Page, error) {
	resp, err := s.cli.FetchPage(ctx, &pb.FetchPageRequest{Kind: string(kind), Cursor: cursor, Limit: int32(limit)})
	if err != nil {
		return model.Page{}, mapErr(err)
	}
	return convert.FromWirePage(kind, resp)
}

func (s *Store) BatchWrite(ctx context.Context, kind model.Kind, docs []model.Document) error {
	_, err := s.cli.BatchWrite(ctx, &pb.BatchWriteRequest{Kind: string(kind), Documents: convert.ToWireDocuments(docs)})
	return mapErr(err)
}

func (s *Store) DeleteOne(ctx context.Context, kind model.Kind, id string) error {
	_, err := s.cli.DeleteOne(ctx, &pb.DeleteOneRequest{Kind: string(kind), ID: id})
	return mapErr(err)
}

// Stats returns the owner's document counts and the replica's batch limit.
func (s *Store) Stats(ctx context.Context) (model.ReplicaStats, error) {
	resp, err := s.cli.Stats(ctx, &pb.StatsRequest{})
	if err != nil {
		return model.ReplicaStats{}, mapErr(err)
	}
	return convert.FromWireStats(resp), nil
}

// Ping asks the server health service whether the replica is serving.
func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: pb.ServiceName})
	if err != nil {
		return mapErr(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("replica status %s", resp.GetStatus())
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", errs.ErrUnauthorized, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", errs.ErrRateLimited, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", errs.ErrValidation, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	}
	return err
}

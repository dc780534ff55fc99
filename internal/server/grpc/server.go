// Package grpc exposes the record and blob services over the daybook sync
// protocol.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/rpc"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"google.golang.org/grpc"
)

// RecordService is the record store used by the handlers.
type RecordService interface {
	FetchByKey(ctx context.Context, userID, collection, key string) (*models.Record, error)
	FetchIndex(ctx context.Context, userID, collection string, year int) ([]string, error)
	FetchChanges(ctx context.Context, userID, collection string, since *time.Time, limit int) ([]*models.Record, bool, error)
	Push(ctx context.Context, userID string, in *models.Record, expected *time.Time) (*models.Record, error)
	Delete(ctx context.Context, userID, collection, id, key string) error
}

// BlobService is the blob store used by the handlers.
type BlobService interface {
	PresignUpload(ctx context.Context, userID string) (string, string, error)
	PresignDownload(ctx context.Context, userID, key string) (string, error)
	Delete(ctx context.Context, userID, key string) error
}

type GRPCServer struct {
	rpc.UnimplementedSyncServiceServer
	address   string
	records   RecordService
	blobs     BlobService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, rs RecordService, bs BlobService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		records:   rs,
		blobs:     bs,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds the grpc.Server with the interceptors and the sync
// service registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterSyncServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

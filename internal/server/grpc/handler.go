package grpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/daybook/internal/rpc"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{ServerTime: time.Now().UTC()}, nil
}

func (s *GRPCServer) FetchByKey(ctx context.Context, req *rpc.FetchByKeyRequest) (*rpc.FetchByKeyResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.FetchByKey(ctx, userID, req.Collection, req.Key)
	if err != nil {
		return nil, s.fail(ctx, "fetch by key", err)
	}
	if rec == nil {
		return &rpc.FetchByKeyResponse{}, nil
	}
	return &rpc.FetchByKeyResponse{Record: toWire(rec)}, nil
}

func (s *GRPCServer) FetchIndex(ctx context.Context, req *rpc.FetchIndexRequest) (*rpc.FetchIndexResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := s.records.FetchIndex(ctx, userID, req.Collection, req.Year)
	if err != nil {
		return nil, s.fail(ctx, "fetch index", err)
	}
	return &rpc.FetchIndexResponse{Keys: keys}, nil
}

func (s *GRPCServer) FetchChanges(ctx context.Context, req *rpc.FetchChangesRequest) (*rpc.FetchChangesResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var since *time.Time
	if req.Cursor != nil {
		t, err := time.Parse(time.RFC3339Nano, *req.Cursor)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "malformed cursor")
		}
		since = &t
	}

	recs, more, err := s.records.FetchChanges(ctx, userID, req.Collection, since, req.Limit)
	if err != nil {
		return nil, s.fail(ctx, "fetch changes", err)
	}

	out := make([]*rpc.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, toWire(r))
	}
	return &rpc.FetchChangesResponse{Records: out, More: more}, nil
}

func (s *GRPCServer) Push(ctx context.Context, req *rpc.PushRequest) (*rpc.PushResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req.Record == nil {
		return nil, status.Error(codes.InvalidArgument, "record is required")
	}

	in := fromWire(req.Collection, req.Record)
	rec, err := s.records.Push(ctx, userID, in, req.Record.ServerUpdatedAt)
	if err != nil {
		return nil, s.fail(ctx, "push", err)
	}

	s.logger.Info(ctx, "record pushed", "user", userID, "collection", req.Collection, "key", rec.Key, "revision", rec.Revision)
	return &rpc.PushResponse{Record: toWire(rec)}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *rpc.DeleteRequest) (*rpc.DeleteResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.records.Delete(ctx, userID, req.Collection, req.ID, req.Key); err != nil {
		return nil, s.fail(ctx, "delete", err)
	}

	s.logger.Info(ctx, "record deleted", "user", userID, "collection", req.Collection, "key", req.Key)
	return &rpc.DeleteResponse{}, nil
}

func (s *GRPCServer) PresignUpload(ctx context.Context, req *rpc.PresignUploadRequest) (*rpc.PresignUploadResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	path, url, err := s.blobs.PresignUpload(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "presign upload", err)
	}
	return &rpc.PresignUploadResponse{Path: path, URL: url}, nil
}

func (s *GRPCServer) PresignDownload(ctx context.Context, req *rpc.PresignDownloadRequest) (*rpc.PresignDownloadResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	url, err := s.blobs.PresignDownload(ctx, userID, req.Path)
	if err != nil {
		return nil, s.fail(ctx, "presign download", err)
	}
	return &rpc.PresignDownloadResponse{URL: url}, nil
}

func (s *GRPCServer) DeleteBlob(ctx context.Context, req *rpc.DeleteBlobRequest) (*rpc.DeleteBlobResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Delete(ctx, userID, req.Path); err != nil {
		return nil, s.fail(ctx, "delete blob", err)
	}
	return &rpc.DeleteBlobResponse{}, nil
}

func toWire(r *models.Record) *rpc.Record {
	sua := r.ServerUpdatedAt
	out := &rpc.Record{
		ID:              r.ID,
		Key:             r.Key,
		KeyID:           r.KeyID,
		Ciphertext:      r.Ciphertext,
		Nonce:           r.Nonce,
		UpdatedAt:       r.UpdatedAt,
		Revision:        r.Revision,
		ServerUpdatedAt: &sua,
		Deleted:         r.Deleted,
	}
	if len(r.Attributes) > 0 {
		out.Attributes = json.RawMessage(r.Attributes)
	}
	return out
}

func fromWire(collection string, r *rpc.Record) *models.Record {
	return &models.Record{
		ID:         r.ID,
		Collection: collection,
		Key:        r.Key,
		KeyID:      r.KeyID,
		Ciphertext: r.Ciphertext,
		Nonce:      r.Nonce,
		UpdatedAt:  r.UpdatedAt,
		Revision:   r.Revision,
		Attributes: r.Attributes,
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/netx"
	"github.com/dmitrijs2005/daybook/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultPageSize = 500

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.SyncServiceClient
	accessToken string
	pageSize    int
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL, accessToken string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken, pageSize: defaultPageSize}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewSyncServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	_, err := s.client.Ping(ctx, &rpc.PingRequest{})
	return mapError("ping", err)
}

// Notes returns the gateway of the note collection.
func (s *GRPCClient) Notes() Gateway {
	return &Collection{c: s, name: common.CollectionNotes}
}

// Images returns the gateway of the image collection.
func (s *GRPCClient) Images() ImageGateway {
	return &Collection{c: s, name: common.CollectionImages}
}

// Collection is the gRPC gateway of one collection.
type Collection struct {
	c    *GRPCClient
	name string
}

func (g *Collection) FetchByKey(ctx context.Context, key string) (*models.RemoteRecord, error) {
	resp, err := g.c.client.FetchByKey(ctx, &rpc.FetchByKeyRequest{Collection: g.name, Key: key})
	if err != nil {
		return nil, mapError("fetch", err)
	}
	if resp.Record == nil {
		return nil, nil
	}
	return fromWire("fetch", resp.Record)
}

func (g *Collection) FetchIndex(ctx context.Context, year int) ([]string, error) {
	resp, err := g.c.client.FetchIndex(ctx, &rpc.FetchIndexRequest{Collection: g.name, Year: year})
	if err != nil {
		return nil, mapError("fetch index", err)
	}
	return resp.Keys, nil
}

func (g *Collection) FetchChangesSince(ctx context.Context, cursor *string) ([]*models.RemoteRecord, error) {
	var out []*models.RemoteRecord
	for {
		resp, err := g.c.client.FetchChanges(ctx, &rpc.FetchChangesRequest{Collection: g.name, Cursor: cursor, Limit: g.c.pageSize})
		if err != nil {
			return nil, mapError("fetch changes", err)
		}
		for _, r := range resp.Records {
			rec, err := fromWire("fetch changes", r)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if !resp.More || len(resp.Records) == 0 {
			return out, nil
		}
		last := out[len(out)-1].ServerUpdatedAt
		if last == nil {
			return nil, common.NewSyncError(common.ErrSyncUnknown, "fetch changes", errors.New("record without server timestamp"))
		}
		c := models.CursorFor(*last)
		cursor = &c
	}
}

func (g *Collection) Push(ctx context.Context, p *models.PushPayload) (*models.RemoteRecord, error) {
	rec, err := toWire(p)
	if err != nil {
		return nil, common.NewSyncError(common.ErrSyncUnknown, "push", err)
	}
	resp, err := g.c.client.Push(ctx, &rpc.PushRequest{Collection: g.name, Record: rec})
	if err != nil {
		return nil, mapError("push", err)
	}
	return fromWire("push", resp.Record)
}

func (g *Collection) Delete(ctx context.Context, req models.DeleteRequest) error {
	_, err := g.c.client.Delete(ctx, &rpc.DeleteRequest{Collection: g.name, ID: req.ID, Key: req.Key})
	return mapError("delete", err)
}

func (g *Collection) UploadBlob(ctx context.Context, data []byte) (string, error) {
	resp, err := g.c.client.PresignUpload(ctx, &rpc.PresignUploadRequest{})
	if err != nil {
		return "", mapError("presign upload", err)
	}
	if err := netx.UploadToPresignedURL(ctx, resp.URL, data); err != nil {
		return "", mapBlobError("upload", err)
	}
	return resp.Path, nil
}

func (g *Collection) DownloadBlob(ctx context.Context, path string) ([]byte, error) {
	resp, err := g.c.client.PresignDownload(ctx, &rpc.PresignDownloadRequest{Path: path})
	if err != nil {
		return nil, mapError("presign download", err)
	}
	b, err := netx.DownloadFromPresignedURL(ctx, resp.URL)
	if err != nil {
		return nil, mapBlobError("download", err)
	}
	return b, nil
}

func (g *Collection) DeleteBlob(ctx context.Context, path string) error {
	_, err := g.c.client.DeleteBlob(ctx, &rpc.DeleteBlobRequest{Path: path})
	return mapError("delete blob", err)
}

func toWire(p *models.PushPayload) (*rpc.Record, error) {
	rec := &rpc.Record{
		ID:              p.ID,
		Key:             p.Key,
		KeyID:           p.KeyID,
		Ciphertext:      p.Ciphertext,
		Nonce:           p.Nonce,
		UpdatedAt:       p.UpdatedAt,
		Revision:        p.Revision,
		ServerUpdatedAt: p.ServerUpdatedAt,
		Deleted:         p.Deleted,
	}
	if p.Image != nil {
		b, err := json.Marshal(p.Image)
		if err != nil {
			return nil, err
		}
		rec.Attributes = b
	}
	return rec, nil
}

func fromWire(op string, r *rpc.Record) (*models.RemoteRecord, error) {
	out := &models.RemoteRecord{
		ID: r.ID,
		Envelope: models.Envelope{
			Key:             r.Key,
			Ciphertext:      r.Ciphertext,
			Nonce:           r.Nonce,
			KeyID:           r.KeyID,
			UpdatedAt:       r.UpdatedAt,
			Revision:        r.Revision,
			ServerUpdatedAt: r.ServerUpdatedAt,
			Deleted:         r.Deleted,
		},
	}
	if len(r.Attributes) > 0 && string(r.Attributes) != "null" {
		var attrs models.ImageAttrs
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, common.NewSyncError(common.ErrSyncUnknown, op, err)
		}
		out.Image = &attrs
	}
	return out, nil
}

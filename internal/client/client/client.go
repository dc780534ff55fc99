package client

import (
	"context"

	"github.com/dmitrijs2005/daybook/internal/client/models"
)

// Gateway is the remote store of one collection.
type Gateway interface {
	// FetchByKey returns (nil, nil) if the remote has never seen key.
	FetchByKey(ctx context.Context, key string) (*models.RemoteRecord, error)
	FetchIndex(ctx context.Context, year int) ([]string, error)
	// FetchChangesSince returns records changed after cursor in ascending
	// serverUpdatedAt order. Tombstones are included.
	FetchChangesSince(ctx context.Context, cursor *string) ([]*models.RemoteRecord, error)
	// Push is a conditional write. See models.PushPayload.
	Push(ctx context.Context, p *models.PushPayload) (*models.RemoteRecord, error)
	Delete(ctx context.Context, req models.DeleteRequest) error
}

// ImageGateway adds blob transfer for image attachments.
type ImageGateway interface {
	Gateway
	// UploadBlob stores data and returns its remote path.
	UploadBlob(ctx context.Context, data []byte) (string, error)
	DownloadBlob(ctx context.Context, path string) ([]byte, error)
	DeleteBlob(ctx context.Context, path string) error
}

// Pinger checks that the remote is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

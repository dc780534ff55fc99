package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/daybook/internal/server/models"
)

// Repository is the persistence contract of the records table. All methods
// are scoped to one user and collection.
type Repository interface {
	// LockUser takes a transaction-scoped advisory lock on userID.
	LockUser(ctx context.Context, userID string) error
	// Get returns the record stored under key, or common.ErrNotFound.
	Get(ctx context.Context, userID, collection, key string) (*models.Record, error)
	// GetForUpdate is Get with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, userID, collection, key string) (*models.Record, error)
	// LastServerUpdatedAt returns the newest server timestamp of the
	// collection, or nil when it is empty.
	LastServerUpdatedAt(ctx context.Context, userID, collection string) (*time.Time, error)
	Insert(ctx context.Context, r *models.Record) error
	Update(ctx context.Context, r *models.Record) error
	MarkDeleted(ctx context.Context, id string, serverUpdatedAt time.Time) error
	// SelectChanges returns up to limit records with server_updated_at after
	// since (all records when since is nil), oldest first.
	SelectChanges(ctx context.Context, userID, collection string, since *time.Time, limit int) ([]*models.Record, error)
	// SelectLiveKeys returns the sorted keys of non-deleted records that
	// start with prefix.
	SelectLiveKeys(ctx context.Context, userID, collection, prefix string) ([]string, error)
}

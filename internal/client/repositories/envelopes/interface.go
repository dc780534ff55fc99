// Package envelopes persists encrypted records and their sync metadata in
// the local SQLite store. Absent keys are reported as (nil, nil); driver
// failures surface as common.StorageError.
package envelopes

import (
	"context"

	"github.com/dmitrijs2005/daybook/internal/client/models"
)

// NoteStore is the local envelope store for notes.
type NoteStore interface {
	GetRecord(ctx context.Context, key string) (*models.Record, error)
	GetMeta(ctx context.Context, key string) (*models.Meta, error)
	GetAllRecords(ctx context.Context) ([]*models.Record, error)
	GetAllMeta(ctx context.Context) ([]*models.Meta, error)

	// SetRecordAndMeta writes both rows in one transaction.
	SetRecordAndMeta(ctx context.Context, rec *models.Record, meta *models.Meta) error

	// SetMetaOnly updates the meta row of an existing key. It returns
	// common.ErrNotFound if the key has no meta.
	SetMetaOnly(ctx context.Context, meta *models.Meta) error

	DeleteRecord(ctx context.Context, key string) error
	DeleteRecordAndMeta(ctx context.Context, key string) error

	// Atomically runs fn against a store bound to a single transaction.
	Atomically(ctx context.Context, fn func(ctx context.Context, s NoteStore) error) error
}

// ImageStore is the local envelope store for image attachments.
type ImageStore interface {
	GetRecord(ctx context.Context, key string) (*models.Record, error)
	GetMeta(ctx context.Context, key string) (*models.ImageMeta, error)
	GetAllRecords(ctx context.Context) ([]*models.Record, error)
	GetAllMeta(ctx context.Context) ([]*models.ImageMeta, error)
	GetMetaByNote(ctx context.Context, noteKey string) ([]*models.ImageMeta, error)
	SetRecordAndMeta(ctx context.Context, rec *models.Record, meta *models.ImageMeta) error
	SetMetaOnly(ctx context.Context, meta *models.ImageMeta) error
	DeleteRecord(ctx context.Context, key string) error
	DeleteRecordAndMeta(ctx context.Context, key string) error
	Atomically(ctx context.Context, fn func(ctx context.Context, s ImageStore) error) error
}

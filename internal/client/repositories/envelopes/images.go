package envelopes

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

var imageRecords = recordTable{name: "image_records"}

const imageMetaColumns = metaColumns + `, note_key, content_hash, mime_type, width, height, byte_size, remote_path`

// ImageRepository implements ImageStore over image_records and image_meta.
type ImageRepository struct {
	exec storage.Executor
}

func NewImageRepository(exec storage.Executor) *ImageRepository {
	return &ImageRepository{exec: exec}
}

type imageMetaRow struct {
	metaRow
	noteKey     string
	contentHash string
	mimeType    string
	width       int
	height      int
	byteSize    int64
	remotePath  sql.NullString
}

func (m *imageMetaRow) dest() []any {
	return append(m.metaRow.dest(),
		&m.noteKey, &m.contentHash, &m.mimeType, &m.width, &m.height, &m.byteSize, &m.remotePath)
}

func (m *imageMetaRow) toImageMeta() (*models.ImageMeta, error) {
	meta, err := m.metaRow.toMeta()
	if err != nil {
		return nil, err
	}
	return &models.ImageMeta{
		Meta: meta,
		ImageAttrs: models.ImageAttrs{
			NoteKey:     m.noteKey,
			ContentHash: m.contentHash,
			MimeType:    m.mimeType,
			Width:       m.width,
			Height:      m.height,
			ByteSize:    m.byteSize,
			RemotePath:  m.remotePath.String,
		},
	}, nil
}

func (r *ImageRepository) GetRecord(ctx context.Context, key string) (rec *models.Record, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		rec, err = imageRecords.get(ctx, db, key)
		return err
	})
	return rec, err
}

func (r *ImageRepository) GetAllRecords(ctx context.Context) (recs []*models.Record, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		recs, err = imageRecords.all(ctx, db)
		return err
	})
	return recs, err
}

func (r *ImageRepository) GetMeta(ctx context.Context, key string) (meta *models.ImageMeta, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var row imageMetaRow
		scanErr := db.QueryRowContext(ctx, `SELECT `+imageMetaColumns+` FROM image_meta WHERE key = ?`, key).Scan(row.dest()...)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return wrap(scanErr, "get image meta", key)
		}
		m, convErr := row.toImageMeta()
		if convErr != nil {
			return wrap(convErr, "get image meta", key)
		}
		meta = m
		return nil
	})
	return meta, err
}

func (r *ImageRepository) listMeta(ctx context.Context, where string, args ...any) (metas []*models.ImageMeta, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		metas = nil
		rows, err := db.QueryContext(ctx, `SELECT `+imageMetaColumns+` FROM image_meta `+where+` ORDER BY key`, args...)
		if err != nil {
			return wrap(err, "list image meta", "")
		}
		defer rows.Close()

		for rows.Next() {
			var row imageMetaRow
			if err := rows.Scan(row.dest()...); err != nil {
				return wrap(err, "list image meta", "")
			}
			m, err := row.toImageMeta()
			if err != nil {
				return wrap(err, "list image meta", row.key)
			}
			metas = append(metas, m)
		}
		if err := rows.Err(); err != nil {
			return wrap(err, "list image meta", "")
		}
		return nil
	})
	return metas, err
}

func (r *ImageRepository) GetAllMeta(ctx context.Context) ([]*models.ImageMeta, error) {
	return r.listMeta(ctx, "")
}

func (r *ImageRepository) GetMetaByNote(ctx context.Context, noteKey string) ([]*models.ImageMeta, error) {
	return r.listMeta(ctx, "WHERE note_key = ?", noteKey)
}

func imageArgs(m *models.ImageMeta) []any {
	return append(metaArgs(&m.Meta),
		m.NoteKey, m.ContentHash, m.MimeType, m.Width, m.Height, m.ByteSize, nullString(m.RemotePath))
}

func (r *ImageRepository) SetRecordAndMeta(ctx context.Context, rec *models.Record, meta *models.ImageMeta) error {
	return r.exec.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := imageRecords.put(ctx, tx, rec); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO image_meta (`+imageMetaColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				revision = excluded.revision,
				remote_id = excluded.remote_id,
				server_updated_at = excluded.server_updated_at,
				last_synced_at = excluded.last_synced_at,
				pending_op = excluded.pending_op,
				note_key = excluded.note_key,
				content_hash = excluded.content_hash,
				mime_type = excluded.mime_type,
				width = excluded.width,
				height = excluded.height,
				byte_size = excluded.byte_size,
				remote_path = excluded.remote_path
		`, imageArgs(meta)...)
		if err != nil {
			return wrap(err, "put image meta", meta.Key)
		}
		return nil
	})
}

func (r *ImageRepository) SetMetaOnly(ctx context.Context, meta *models.ImageMeta) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		res, err := db.ExecContext(ctx, `
			UPDATE image_meta
			SET revision = ?, remote_id = ?, server_updated_at = ?, last_synced_at = ?, pending_op = ?,
				note_key = ?, content_hash = ?, mime_type = ?, width = ?, height = ?, byte_size = ?, remote_path = ?
			WHERE key = ?
		`, meta.Revision, nullString(meta.RemoteID), formatNullTime(meta.ServerUpdatedAt),
			formatNullTime(meta.LastSyncedAt), meta.PendingOp.String(),
			meta.NoteKey, meta.ContentHash, meta.MimeType, meta.Width, meta.Height, meta.ByteSize,
			nullString(meta.RemotePath), meta.Key)
		if err != nil {
			return wrap(err, "set image meta", meta.Key)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrap(err, "set image meta", meta.Key)
		}
		if n == 0 {
			return common.NewStorageError(common.ErrNotFound, "set image meta", meta.Key, nil)
		}
		return nil
	})
}

func (r *ImageRepository) DeleteRecord(ctx context.Context, key string) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return imageRecords.delete(ctx, db, key)
	})
}

func (r *ImageRepository) DeleteRecordAndMeta(ctx context.Context, key string) error {
	return r.exec.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := imageRecords.delete(ctx, tx, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM image_meta WHERE key = ?`, key); err != nil {
			return wrap(err, "delete image meta", key)
		}
		return nil
	})
}

func (r *ImageRepository) Atomically(ctx context.Context, fn func(ctx context.Context, s ImageStore) error) error {
	return r.exec.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewImageRepository(storage.Bound(tx)))
	})
}

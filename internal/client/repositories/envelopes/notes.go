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

var noteRecords = recordTable{name: "note_records"}

// NoteRepository implements NoteStore over note_records and note_meta.
type NoteRepository struct {
	exec storage.Executor
}

func NewNoteRepository(exec storage.Executor) *NoteRepository {
	return &NoteRepository{exec: exec}
}

func (r *NoteRepository) GetRecord(ctx context.Context, key string) (rec *models.Record, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		rec, err = noteRecords.get(ctx, db, key)
		return err
	})
	return rec, err
}

func (r *NoteRepository) GetAllRecords(ctx context.Context) (recs []*models.Record, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		recs, err = noteRecords.all(ctx, db)
		return err
	})
	return recs, err
}

func (r *NoteRepository) GetMeta(ctx context.Context, key string) (meta *models.Meta, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var row metaRow
		scanErr := db.QueryRowContext(ctx, `SELECT `+metaColumns+` FROM note_meta WHERE key = ?`, key).Scan(row.dest()...)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return wrap(scanErr, "get meta", key)
		}
		m, convErr := row.toMeta()
		if convErr != nil {
			return wrap(convErr, "get meta", key)
		}
		meta = &m
		return nil
	})
	return meta, err
}

func (r *NoteRepository) GetAllMeta(ctx context.Context) (metas []*models.Meta, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		metas = nil
		rows, err := db.QueryContext(ctx, `SELECT `+metaColumns+` FROM note_meta ORDER BY key`)
		if err != nil {
			return wrap(err, "list meta", "")
		}
		defer rows.Close()

		for rows.Next() {
			var row metaRow
			if err := rows.Scan(row.dest()...); err != nil {
				return wrap(err, "list meta", "")
			}
			m, err := row.toMeta()
			if err != nil {
				return wrap(err, "list meta", row.key)
			}
			metas = append(metas, &m)
		}
		if err := rows.Err(); err != nil {
			return wrap(err, "list meta", "")
		}
		return nil
	})
	return metas, err
}

func putNoteMeta(ctx context.Context, db dbx.DBTX, m *models.Meta) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO note_meta (`+metaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			revision = excluded.revision,
			remote_id = excluded.remote_id,
			server_updated_at = excluded.server_updated_at,
			last_synced_at = excluded.last_synced_at,
			pending_op = excluded.pending_op
	`, metaArgs(m)...)
	if err != nil {
		return wrap(err, "put meta", m.Key)
	}
	return nil
}

func (r *NoteRepository) SetRecordAndMeta(ctx context.Context, rec *models.Record, meta *models.Meta) error {
	return r.exec.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := noteRecords.put(ctx, tx, rec); err != nil {
			return err
		}
		return putNoteMeta(ctx, tx, meta)
	})
}

func (r *NoteRepository) SetMetaOnly(ctx context.Context, meta *models.Meta) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		res, err := db.ExecContext(ctx, `
			UPDATE note_meta
			SET revision = ?, remote_id = ?, server_updated_at = ?, last_synced_at = ?, pending_op = ?
			WHERE key = ?
		`, meta.Revision, nullString(meta.RemoteID), formatNullTime(meta.ServerUpdatedAt),
			formatNullTime(meta.LastSyncedAt), meta.PendingOp.String(), meta.Key)
		if err != nil {
			return wrap(err, "set meta", meta.Key)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrap(err, "set meta", meta.Key)
		}
		if n == 0 {
			return common.NewStorageError(common.ErrNotFound, "set meta", meta.Key, nil)
		}
		return nil
	})
}

func (r *NoteRepository) DeleteRecord(ctx context.Context, key string) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return noteRecords.delete(ctx, db, key)
	})
}

func (r *NoteRepository) DeleteRecordAndMeta(ctx context.Context, key string) error {
	return r.exec.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := noteRecords.delete(ctx, tx, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_meta WHERE key = ?`, key); err != nil {
			return wrap(err, "delete meta", key)
		}
		return nil
	})
}

func (r *NoteRepository) Atomically(ctx context.Context, fn func(ctx context.Context, s NoteStore) error) error {
	return r.exec.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewNoteRepository(storage.Bound(tx)))
	})
}

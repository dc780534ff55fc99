package envelopes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

// recordTable holds the statements for one *_records table.
type recordTable struct {
	name string
}

func (t recordTable) get(ctx context.Context, db dbx.DBTX, key string) (*models.Record, error) {
	row := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT key, version, key_id, ciphertext, nonce, updated_at FROM %s WHERE key = ?`, t.name), key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "get record", key)
	}
	return rec, nil
}

func (t recordTable) all(ctx context.Context, db dbx.DBTX) ([]*models.Record, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT key, version, key_id, ciphertext, nonce, updated_at FROM %s ORDER BY key`, t.name))
	if err != nil {
		return nil, wrap(err, "list records", "")
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrap(err, "list records", "")
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "list records", "")
	}
	return result, nil
}

func (t recordTable) put(ctx context.Context, db dbx.DBTX, rec *models.Record) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, version, key_id, ciphertext, nonce, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			key_id = excluded.key_id,
			ciphertext = excluded.ciphertext,
			nonce = excluded.nonce,
			updated_at = excluded.updated_at
	`, t.name), rec.Key, models.RecordVersion, rec.KeyID, rec.Ciphertext, rec.Nonce, formatTime(rec.UpdatedAt))
	if err != nil {
		return wrap(err, "put record", rec.Key)
	}
	return nil
}

func (t recordTable) delete(ctx context.Context, db dbx.DBTX, key string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, t.name), key)
	if err != nil {
		return wrap(err, "delete record", key)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		rec       models.Record
		updatedAt string
	)
	if err := s.Scan(&rec.Key, &rec.Version, &rec.KeyID, &rec.Ciphertext, &rec.Nonce, &updatedAt); err != nil {
		return nil, err
	}
	if rec.Version != models.RecordVersion {
		return nil, corrupt(fmt.Errorf("unsupported record version %d", rec.Version))
	}
	ts, err := parseTime(updatedAt)
	if err != nil {
		return nil, corrupt(err)
	}
	rec.UpdatedAt = ts
	return &rec, nil
}

// metaColumns is shared by note_meta and the leading columns of image_meta.
const metaColumns = `key, revision, remote_id, server_updated_at, last_synced_at, pending_op`

type metaRow struct {
	key             string
	revision        int64
	remoteID        sql.NullString
	serverUpdatedAt sql.NullString
	lastSyncedAt    sql.NullString
	pendingOp       string
}

func (m *metaRow) dest() []any {
	return []any{&m.key, &m.revision, &m.remoteID, &m.serverUpdatedAt, &m.lastSyncedAt, &m.pendingOp}
}

func (m *metaRow) toMeta() (models.Meta, error) {
	op, err := models.ParsePendingOp(m.pendingOp)
	if err != nil {
		return models.Meta{}, corrupt(err)
	}
	su, err := parseNullTime(m.serverUpdatedAt)
	if err != nil {
		return models.Meta{}, corrupt(err)
	}
	ls, err := parseNullTime(m.lastSyncedAt)
	if err != nil {
		return models.Meta{}, corrupt(err)
	}
	if m.revision < 1 {
		return models.Meta{}, corrupt(fmt.Errorf("revision %d", m.revision))
	}
	return models.Meta{
		Key:             m.key,
		Revision:        m.revision,
		RemoteID:        m.remoteID.String,
		ServerUpdatedAt: su,
		LastSyncedAt:    ls,
		PendingOp:       op,
	}, nil
}

func metaArgs(m *models.Meta) []any {
	return []any{
		m.Key, m.Revision, nullString(m.RemoteID),
		formatNullTime(m.ServerUpdatedAt), formatNullTime(m.LastSyncedAt), m.PendingOp.String(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type corruptError struct{ err error }

func (e corruptError) Error() string { return e.err.Error() }

func corrupt(err error) error { return corruptError{err: err} }

// wrap maps err to a StorageError. Errors that already are storage errors
// pass through unchanged.
func wrap(err error, op, key string) error {
	var se *common.StorageError
	if errors.As(err, &se) {
		return err
	}
	var ce corruptError
	if errors.As(err, &ce) {
		return common.NewStorageError(common.ErrCorrupt, op, key, ce.err)
	}
	return common.NewStorageError(common.ErrIO, op, key, err)
}

// Package records provides the PostgreSQL-backed repository for the
// server-side envelope store.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/server/models"
)

const selectColumns = `id, user_id, collection, key, key_id, ciphertext, nonce,
	updated_at, revision, server_updated_at, deleted, attributes`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LockUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID)
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, collection, key string) (*models.Record, error) {
	return r.get(ctx, userID, collection, key, "")
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID, collection, key string) (*models.Record, error) {
	return r.get(ctx, userID, collection, key, " FOR UPDATE")
}

func (r *PostgresRepository) get(ctx context.Context, userID, collection, key, suffix string) (*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records
		WHERE user_id = $1 AND collection = $2 AND key = $3` + suffix

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, collection, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) LastServerUpdatedAt(ctx context.Context, userID, collection string) (*time.Time, error) {
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(server_updated_at) FROM records WHERE user_id = $1 AND collection = $2`,
		userID, collection).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("select last server_updated_at: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time.UTC()
	return &t, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (id, user_id, collection, key, key_id, ciphertext, nonce,
			updated_at, revision, server_updated_at, deleted, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Collection, rec.Key, rec.KeyID, rec.Ciphertext, rec.Nonce,
		rec.UpdatedAt, rec.Revision, rec.ServerUpdatedAt, rec.Deleted, attributes(rec.Attributes))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE records SET
			key_id = $2,
			ciphertext = $3,
			nonce = $4,
			updated_at = $5,
			revision = $6,
			server_updated_at = $7,
			deleted = $8,
			attributes = $9
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.KeyID, rec.Ciphertext, rec.Nonce, rec.UpdatedAt, rec.Revision,
		rec.ServerUpdatedAt, rec.Deleted, attributes(rec.Attributes))
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string, serverUpdatedAt time.Time) error {
	query := `
		UPDATE records SET
			deleted = TRUE,
			ciphertext = NULL,
			nonce = NULL,
			server_updated_at = $2
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, serverUpdatedAt)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) SelectChanges(ctx context.Context, userID, collection string, since *time.Time, limit int) ([]*models.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if since == nil {
		rows, err = r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM records
			WHERE user_id = $1 AND collection = $2
			ORDER BY server_updated_at ASC LIMIT $3`, userID, collection, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM records
			WHERE user_id = $1 AND collection = $2 AND server_updated_at > $3
			ORDER BY server_updated_at ASC LIMIT $4`, userID, collection, *since, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SelectLiveKeys(ctx context.Context, userID, collection, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM records
		WHERE user_id = $1 AND collection = $2 AND deleted = FALSE AND starts_with(key, $3)
		ORDER BY key`, userID, collection, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var rec models.Record
	if err := s.Scan(
		&rec.ID, &rec.UserID, &rec.Collection, &rec.Key, &rec.KeyID, &rec.Ciphertext, &rec.Nonce,
		&rec.UpdatedAt, &rec.Revision, &rec.ServerUpdatedAt, &rec.Deleted, &rec.Attributes,
	); err != nil {
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.ServerUpdatedAt = rec.ServerUpdatedAt.UTC()
	return &rec, nil
}

// attributes maps an empty document to SQL NULL.
func attributes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

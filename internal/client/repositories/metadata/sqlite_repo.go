package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

type SQLiteRepository struct {
	exec storage.Executor
}

func NewSQLiteRepository(exec storage.Executor) *SQLiteRepository {
	return &SQLiteRepository{exec: exec}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (value []byte, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		value = nil
		err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return common.NewStorageError(common.ErrIO, "get metadata", key, err)
		}
		return nil
	})
	return value, err
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return common.NewStorageError(common.ErrIO, "set metadata", key, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		_, err := db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
		if err != nil {
			return common.NewStorageError(common.ErrIO, "delete metadata", key, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		_, err := db.ExecContext(ctx, `DELETE FROM metadata`)
		if err != nil {
			return common.NewStorageError(common.ErrIO, "clear metadata", "", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) List(ctx context.Context) (result map[string][]byte, err error) {
	err = r.exec.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		rows, err := db.QueryContext(ctx, `SELECT key, value FROM metadata`)
		if err != nil {
			return common.NewStorageError(common.ErrIO, "list metadata", "", err)
		}
		defer rows.Close()

		result = make(map[string][]byte)
		for rows.Next() {
			var key string
			var value []byte
			if err := rows.Scan(&key, &value); err != nil {
				return common.NewStorageError(common.ErrIO, "list metadata", "", err)
			}
			result[key] = value
		}
		if err := rows.Err(); err != nil {
			return common.NewStorageError(common.ErrIO, "list metadata", "", err)
		}
		return nil
	})
	return result, err
}

// GetJSON decodes the value stored under key into v. It reports false if
// the key is absent.
func GetJSON(ctx context.Context, r Repository, key string, v any) (bool, error) {
	b, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, common.NewStorageError(common.ErrCorrupt, "decode metadata", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, r Repository, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return common.NewStorageError(common.ErrStorageUnknown, "encode metadata", key, err)
	}
	return r.Set(ctx, key, b)
}

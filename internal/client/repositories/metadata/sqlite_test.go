package metadata

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(storage.Bound(db)), db
}

func TestSQLiteRepository_SetGetOverwrite(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, v, "missing key reads as nil")

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	require.NoError(t, r.Set(ctx, "k", []byte("new")))

	v, err = r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestSQLiteRepository_ListDeleteClear(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte{0xAA}))
	require.NoError(t, r.Set(ctx, "b", []byte{0xBB, 0xCC}))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": {0xAA}, "b": {0xBB, 0xCC}}, m)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	v, err := r.Get(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Clear(ctx))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestSQLiteRepository_ClosedDatabase(t *testing.T) {
	tests := []struct {
		name string
		op   func(ctx context.Context, r *SQLiteRepository) error
		msg  string
	}{
		{"get", func(ctx context.Context, r *SQLiteRepository) error { _, err := r.Get(ctx, "k"); return err }, "get metadata"},
		{"set", func(ctx context.Context, r *SQLiteRepository) error { return r.Set(ctx, "k", []byte("v")) }, "set metadata"},
		{"delete", func(ctx context.Context, r *SQLiteRepository) error { return r.Delete(ctx, "k") }, "delete metadata"},
		{"clear", func(ctx context.Context, r *SQLiteRepository) error { return r.Clear(ctx) }, "clear metadata"},
		{"list", func(ctx context.Context, r *SQLiteRepository) error { _, err := r.List(ctx); return err }, "list metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, db := newRepo(t)
			require.NoError(t, db.Close())

			err := tt.op(context.Background(), r)
			require.ErrorIs(t, err, common.ErrIO)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	var keys []string
	ok, err := GetJSON(ctx, r, "remote_index:2024", &keys)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, SetJSON(ctx, r, "remote_index:2024", []string{"2024-01-01", "2024-01-02"}))

	ok, err = GetJSON(ctx, r, "remote_index:2024", &keys)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, keys)

	require.NoError(t, r.Set(ctx, "broken", []byte("{")))
	_, err = GetJSON(ctx, r, "broken", &keys)
	require.ErrorIs(t, err, common.ErrCorrupt)
}

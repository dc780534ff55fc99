package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/records"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 123456789, time.UTC)

// -------- test fakes --------

type fakeRecords struct {
	records.Repository
	mu        sync.Mutex
	rows      map[string]*models.Record
	locked    []string
	lockErr   error
	lastLimit int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{rows: map[string]*models.Record{}}
}

func rowKey(userID, collection, key string) string {
	return userID + "/" + collection + "/" + key
}

func (f *fakeRecords) LockUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return f.lockErr
	}
	f.locked = append(f.locked, userID)
	return nil
}

func (f *fakeRecords) Get(ctx context.Context, userID, collection, key string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[rowKey(userID, collection, key)]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (f *fakeRecords) GetForUpdate(ctx context.Context, userID, collection, key string) (*models.Record, error) {
	return f.Get(ctx, userID, collection, key)
}

func (f *fakeRecords) LastServerUpdatedAt(ctx context.Context, userID, collection string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, r := range f.rows {
		if r.UserID == userID && r.Collection == collection && (last == nil || r.ServerUpdatedAt.After(*last)) {
			t := r.ServerUpdatedAt
			last = &t
		}
	}
	return last, nil
}

func (f *fakeRecords) Insert(ctx context.Context, r *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *r
	f.rows[rowKey(r.UserID, r.Collection, r.Key)] = &c
	return nil
}

func (f *fakeRecords) Update(ctx context.Context, r *models.Record) error {
	return f.Insert(ctx, r)
}

func (f *fakeRecords) MarkDeleted(ctx context.Context, id string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r.Deleted = true
			r.Ciphertext = nil
			r.Nonce = nil
			r.ServerUpdatedAt = ts
			return nil
		}
	}
	return common.ErrNotFound
}

func (f *fakeRecords) SelectChanges(ctx context.Context, userID, collection string, since *time.Time, limit int) ([]*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []*models.Record
	for _, r := range f.rows {
		if r.UserID == userID && r.Collection == collection && (since == nil || r.ServerUpdatedAt.After(*since)) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerUpdatedAt.Before(out[j].ServerUpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRecords) SelectLiveKeys(ctx context.Context, userID, collection, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := []string{}
	for _, r := range f.rows {
		if r.UserID == userID && r.Collection == collection && !r.Deleted && strings.HasPrefix(r.Key, prefix) {
			keys = append(keys, r.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	r *fakeRecords
}

func (m *fakeRepoManager) Records(db dbx.DBTX) records.Repository { return m.r }

// -------- helpers --------

type fixture struct {
	svc   *RecordService
	repo  *fakeRecords
	mock  sqlmock.Sqlmock
	clock *timex.ManualClock
}

func newFixture(t *testing.T, pageSize int) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := newFakeRecords()
	clock := timex.NewManualClock(t0)
	return &fixture{
		svc:   NewRecordService(db, &fakeRepoManager{r: repo}, clock, pageSize),
		repo:  repo,
		mock:  mock,
		clock: clock,
	}
}

func (f *fixture) expectTx(commit bool) {
	f.mock.ExpectBegin()
	if commit {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
}

func note(key string, rev int64) *models.Record {
	return &models.Record{
		Collection: common.CollectionNotes,
		Key:        key,
		KeyID:      "k1",
		Ciphertext: []byte("ct"),
		Nonce:      []byte("nonce"),
		UpdatedAt:  t0,
		Revision:   rev,
	}
}

func (f *fixture) push(t *testing.T, in *models.Record, expected *time.Time) *models.Record {
	t.Helper()
	f.expectTx(true)
	out, err := f.svc.Push(context.Background(), "u1", in, expected)
	require.NoError(t, err)
	return out
}

// -------- tests --------

func TestPush_InsertsNewKey(t *testing.T) {
	f := newFixture(t, 10)

	out := f.push(t, note("2024-05-01", 1), nil)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, t0.Truncate(time.Microsecond), out.ServerUpdatedAt)
	assert.False(t, out.Deleted)
	assert.Equal(t, []string{"u1"}, f.repo.locked)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPush_UpdatesWhenViewIsCurrent(t *testing.T) {
	f := newFixture(t, 10)
	first := f.push(t, note("2024-05-01", 1), nil)

	in := note("2024-05-01", 2)
	in.ID = first.ID
	in.Ciphertext = []byte("ct2")
	expected := first.ServerUpdatedAt
	second := f.push(t, in, &expected)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.Revision)
	// clock did not move, the timestamp still has to grow
	assert.True(t, second.ServerUpdatedAt.After(first.ServerUpdatedAt))

	stored, err := f.repo.Get(context.Background(), "u1", "note", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, []byte("ct2"), stored.Ciphertext)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPush_Conflicts(t *testing.T) {
	f := newFixture(t, 10)
	first := f.push(t, note("2024-05-01", 1), nil)
	good := first.ServerUpdatedAt
	stale := good.Add(-time.Second)

	tests := []struct {
		name     string
		id       string
		expected *time.Time
	}{
		{name: "no id", id: "", expected: &good},
		{name: "other id", id: "other", expected: &good},
		{name: "stale timestamp", id: first.ID, expected: &stale},
		{name: "no timestamp", id: first.ID, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.expectTx(false)
			in := note("2024-05-01", 5)
			in.ID = tt.id

			_, err := f.svc.Push(context.Background(), "u1", in, tt.expected)
			require.ErrorIs(t, err, common.ErrConflict)
		})
	}

	stored, err := f.repo.Get(context.Background(), "u1", "note", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Revision)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPush_ResurrectsTombstone(t *testing.T) {
	f := newFixture(t, 10)
	first := f.push(t, note("2024-05-01", 1), nil)

	f.expectTx(true)
	require.NoError(t, f.svc.Delete(context.Background(), "u1", "note", first.ID, "2024-05-01"))
	tomb, err := f.svc.FetchByKey(context.Background(), "u1", "note", "2024-05-01")
	require.NoError(t, err)
	require.True(t, tomb.Deleted)

	in := note("2024-05-01", 3)
	in.ID = first.ID
	expected := tomb.ServerUpdatedAt
	out := f.push(t, in, &expected)

	assert.False(t, out.Deleted)
	assert.True(t, out.ServerUpdatedAt.After(tomb.ServerUpdatedAt))
}

func TestPush_Validation(t *testing.T) {
	f := newFixture(t, 10)

	badCollection := note("2024-05-01", 1)
	badCollection.Collection = "tasks"
	emptyKey := note("", 1)
	zeroRev := note("2024-05-01", 0)
	badAttrs := note("img", 1)
	badAttrs.Collection = common.CollectionImages
	badAttrs.Attributes = []byte("{not json")

	for _, in := range []*models.Record{badCollection, emptyKey, zeroRev, badAttrs} {
		_, err := f.svc.Push(context.Background(), "u1", in, nil)
		require.ErrorIs(t, err, common.ErrInvalidArgument)
	}
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPush_LockErrorRollsBack(t *testing.T) {
	f := newFixture(t, 10)
	f.repo.lockErr = errors.New("lock timeout")
	f.expectTx(false)

	_, err := f.svc.Push(context.Background(), "u1", note("2024-05-01", 1), nil)
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPush_BeginError(t *testing.T) {
	f := newFixture(t, 10)
	f.mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	_, err := f.svc.Push(context.Background(), "u1", note("2024-05-01", 1), nil)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPush_UsersAreIsolated(t *testing.T) {
	f := newFixture(t, 10)
	f.push(t, note("2024-05-01", 1), nil)

	f.expectTx(true)
	other, err := f.svc.Push(context.Background(), "u2", note("2024-05-01", 1), nil)
	require.NoError(t, err)
	assert.Equal(t, "u2", other.UserID)

	keys, err := f.svc.FetchIndex(context.Background(), "u2", "note", 2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01"}, keys)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, 10)
	rec := f.push(t, note("2024-05-01", 1), nil)

	t.Run("unknown key succeeds", func(t *testing.T) {
		f.expectTx(true)
		require.NoError(t, f.svc.Delete(context.Background(), "u1", "note", "", "2024-01-01"))
	})

	t.Run("id mismatch is rejected", func(t *testing.T) {
		f.expectTx(false)
		err := f.svc.Delete(context.Background(), "u1", "note", "other", "2024-05-01")
		require.ErrorIs(t, err, common.ErrInvalidArgument)
	})

	t.Run("tombstones live record", func(t *testing.T) {
		f.expectTx(true)
		require.NoError(t, f.svc.Delete(context.Background(), "u1", "note", rec.ID, "2024-05-01"))

		got, err := f.svc.FetchByKey(context.Background(), "u1", "note", "2024-05-01")
		require.NoError(t, err)
		assert.True(t, got.Deleted)
		assert.Nil(t, got.Ciphertext)
		assert.True(t, got.ServerUpdatedAt.After(rec.ServerUpdatedAt))
	})

	t.Run("second delete is a no-op", func(t *testing.T) {
		before, err := f.svc.FetchByKey(context.Background(), "u1", "note", "2024-05-01")
		require.NoError(t, err)

		f.expectTx(true)
		require.NoError(t, f.svc.Delete(context.Background(), "u1", "note", "", "2024-05-01"))

		after, err := f.svc.FetchByKey(context.Background(), "u1", "note", "2024-05-01")
		require.NoError(t, err)
		assert.Equal(t, before.ServerUpdatedAt, after.ServerUpdatedAt)
	})

	t.Run("bad collection", func(t *testing.T) {
		err := f.svc.Delete(context.Background(), "u1", "tasks", "", "x")
		require.ErrorIs(t, err, common.ErrInvalidArgument)
	})

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFetchByKey_Missing(t *testing.T) {
	f := newFixture(t, 10)

	got, err := f.svc.FetchByKey(context.Background(), "u1", "note", "2024-05-01")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchChanges_Pages(t *testing.T) {
	f := newFixture(t, 2)
	for _, k := range []string{"2024-05-01", "2024-05-02", "2024-05-03"} {
		f.push(t, note(k, 1), nil)
		f.clock.Advance(time.Second)
	}

	page, more, err := f.svc.FetchChanges(context.Background(), "u1", "note", nil, 100)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 3, f.repo.lastLimit)
	require.Len(t, page, 2)
	assert.Equal(t, "2024-05-01", page[0].Key)
	assert.Equal(t, "2024-05-02", page[1].Key)

	cursor := page[1].ServerUpdatedAt
	page, more, err = f.svc.FetchChanges(context.Background(), "u1", "note", &cursor, 0)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page, 1)
	assert.Equal(t, "2024-05-03", page[0].Key)

	page, more, err = f.svc.FetchChanges(context.Background(), "u1", "note", &page[0].ServerUpdatedAt, 1)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Empty(t, page)
}

func TestFetchChanges_IncludesTombstones(t *testing.T) {
	f := newFixture(t, 10)
	rec := f.push(t, note("2024-05-01", 1), nil)
	cursor := rec.ServerUpdatedAt

	f.expectTx(true)
	require.NoError(t, f.svc.Delete(context.Background(), "u1", "note", rec.ID, rec.Key))

	page, _, err := f.svc.FetchChanges(context.Background(), "u1", "note", &cursor, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].Deleted)
}

func TestFetchIndex(t *testing.T) {
	f := newFixture(t, 10)
	f.push(t, note("2024-05-01", 1), nil)
	f.push(t, note("2024-01-09", 1), nil)
	f.push(t, note("2023-12-31", 1), nil)
	gone := f.push(t, note("2024-02-02", 1), nil)
	f.expectTx(true)
	require.NoError(t, f.svc.Delete(context.Background(), "u1", "note", gone.ID, gone.Key))

	keys, err := f.svc.FetchIndex(context.Background(), "u1", "note", 2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-09", "2024-05-01"}, keys)

	_, err = f.svc.FetchIndex(context.Background(), "u1", "note", 0)
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = f.svc.FetchIndex(context.Background(), "u1", "tasks", 2024)
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestNextServerTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 1500, time.UTC)
	trunc := time.Date(2024, 5, 1, 8, 0, 0, 1000, time.UTC)
	later := trunc.Add(time.Hour)

	assert.Equal(t, trunc, nextServerTime(now, nil))
	assert.Equal(t, trunc, nextServerTime(now, &time.Time{}))
	assert.Equal(t, trunc.Add(time.Microsecond), nextServerTime(now, &trunc))
	assert.Equal(t, later.Add(time.Microsecond), nextServerTime(now, &later))
}

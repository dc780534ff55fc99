package records

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/server/models"
)

var (
	ts0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	ts1 = ts0.Add(time.Second)
)

var columns = []string{"id", "user_id", "collection", "key", "key_id", "ciphertext", "nonce",
	"updated_at", "revision", "server_updated_at", "deleted", "attributes"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func noteRow(rows *sqlmock.Rows, id, key string, sua time.Time, deleted bool) *sqlmock.Rows {
	return rows.AddRow(id, "u1", "note", key, "k1", []byte("ct"), []byte("nonce"), ts0, int64(2), sua, deleted, nil)
}

func TestLockUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.LockUser(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockUser_Error(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnError(errors.New("boom"))

	err := repo.LockUser(context.Background(), "u1")
	if err == nil || !regexp.MustCompile(`advisory lock: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped lock error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM records\s+WHERE user_id = \$1 AND collection = \$2 AND key = \$3$`).
		WithArgs("u1", "note", "2024-05-01").
		WillReturnRows(noteRow(sqlmock.NewRows(columns), "r1", "2024-05-01", ts1, false))

	rec, err := repo.Get(context.Background(), "u1", "note", "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "r1" || rec.Revision != 2 || !rec.ServerUpdatedAt.Equal(ts1) || rec.Attributes != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if string(rec.Ciphertext) != "ct" || string(rec.Nonce) != "nonce" {
		t.Fatalf("unexpected payload: %+v", rec)
	}
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM records .* FOR UPDATE`).
		WithArgs("u1", "note", "2024-05-01").
		WillReturnRows(noteRow(sqlmock.NewRows(columns), "r1", "2024-05-01", ts1, true))

	rec, err := repo.GetForUpdate(context.Background(), "u1", "note", "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Deleted {
		t.Fatalf("expected tombstone, got %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM records`).
		WithArgs("u1", "note", "2024-05-02").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), "u1", "note", "2024-05-02")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM records`).WillReturnError(errors.New("db is down"))

	_, err := repo.Get(context.Background(), "u1", "note", "k")
	if err == nil || errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestLastServerUpdatedAt(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SELECT MAX\(server_updated_at\) FROM records`

	mock.ExpectQuery(q).WithArgs("u1", "note").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	last, err := repo.LastServerUpdatedAt(context.Background(), "u1", "note")
	if err != nil || last != nil {
		t.Fatalf("empty collection: got %v, %v", last, err)
	}

	mock.ExpectQuery(q).WithArgs("u1", "note").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(ts1))
	last, err = repo.LastServerUpdatedAt(context.Background(), "u1", "note")
	if err != nil || last == nil || !last.Equal(ts1) {
		t.Fatalf("got %v, %v", last, err)
	}
}

func TestInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO records .* VALUES`).
		WithArgs("r1", "u1", "image", "img-1", "k1", []byte("ct"), []byte("n"),
			ts0, int64(1), ts1, false, `{"width":3}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.Record{
		ID: "r1", UserID: "u1", Collection: "image", Key: "img-1", KeyID: "k1",
		Ciphertext: []byte("ct"), Nonce: []byte("n"), UpdatedAt: ts0, Revision: 1,
		ServerUpdatedAt: ts1, Attributes: []byte(`{"width":3}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO records`).WillReturnError(errors.New("duplicate key"))

	err := repo.Insert(context.Background(), &models.Record{ID: "r1"})
	if err == nil || !regexp.MustCompile(`insert record: .*duplicate key`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped insert error, got %v", err)
	}
}

func TestUpdate_RowsAffected(t *testing.T) {
	tests := []struct {
		name    string
		result  sql.Result
		wantErr error
		anyErr  bool
	}{
		{name: "one row", result: sqlmock.NewResult(0, 1)},
		{name: "no row", result: sqlmock.NewResult(0, 0), wantErr: common.ErrNotFound},
		{name: "two rows", result: sqlmock.NewResult(0, 2), anyErr: true},
		{name: "rows affected error", result: sqlmock.NewErrorResult(errors.New("rows-err")), anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(`UPDATE records SET .* WHERE id = \$1`).
				WithArgs("r1", "k1", []byte("ct"), []byte("n"), ts0, int64(3), ts1, false, nil).
				WillReturnResult(tt.result)

			err := repo.Update(context.Background(), &models.Record{
				ID: "r1", KeyID: "k1", Ciphertext: []byte("ct"), Nonce: []byte("n"),
				UpdatedAt: ts0, Revision: 3, ServerUpdatedAt: ts1,
			})
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Fatal("expected error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestMarkDeleted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE records SET\s+deleted = TRUE,\s+ciphertext = NULL,\s+nonce = NULL`).
		WithArgs("r1", ts1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkDeleted(context.Background(), "r1", ts1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSelectChanges_WithoutCursor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns)
	noteRow(rows, "r1", "2024-05-01", ts0, false)
	noteRow(rows, "r2", "2024-05-02", ts1, true)

	mock.ExpectQuery(`WHERE user_id = \$1 AND collection = \$2\s+ORDER BY server_updated_at ASC LIMIT \$3`).
		WithArgs("u1", "note", 10).
		WillReturnRows(rows)

	got, err := repo.SelectChanges(context.Background(), "u1", "note", nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || !got[1].Deleted {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestSelectChanges_WithCursor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`AND server_updated_at > \$3\s+ORDER BY server_updated_at ASC LIMIT \$4`).
		WithArgs("u1", "note", ts0, 5).
		WillReturnRows(noteRow(sqlmock.NewRows(columns), "r2", "2024-05-02", ts1, false))

	got, err := repo.SelectChanges(context.Background(), "u1", "note", &ts0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestSelectChanges_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))

	if _, err := repo.SelectChanges(context.Background(), "u1", "note", nil, 5); err == nil {
		t.Fatal("expected scan error")
	}
}

func TestSelectLiveKeys(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT key FROM records .* deleted = FALSE AND starts_with\(key, \$3\)`).
		WithArgs("u1", "note", "2024-").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("2024-01-02").AddRow("2024-03-04"))

	keys, err := repo.SelectLiveKeys(context.Background(), "u1", "note", "2024-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "2024-01-02" || keys[1] != "2024-03-04" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestSelectLiveKeys_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT key FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"key"}))

	keys, err := repo.SelectLiveKeys(context.Background(), "u1", "note", "1999-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys == nil || len(keys) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", keys)
	}
}

package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/google/uuid"
)

// RecordService implements conditional writes and change feeds over the
// records table. Every write runs in one transaction holding the user's
// advisory lock, so server timestamps of a user commit in increasing order
// and a pull cursor never skips a row.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	pageSize    int
}

func NewRecordService(db *sql.DB, repomanager repomanager.RepositoryManager, clock timex.Clock, pageSize int) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: repomanager,
		clock:       clock,
		pageSize:    pageSize,
	}
}

// ValidCollection reports whether name is a known collection.
func ValidCollection(name string) bool {
	return name == common.CollectionNotes || name == common.CollectionImages
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func checkScope(collection, key string) error {
	if !ValidCollection(collection) {
		return invalid("unknown collection %q", collection)
	}
	if key == "" {
		return invalid("empty key")
	}
	return nil
}

// FetchByKey returns the record under key, tombstones included, or nil when
// the key was never written.
func (s *RecordService) FetchByKey(ctx context.Context, userID, collection, key string) (*models.Record, error) {
	if err := checkScope(collection, key); err != nil {
		return nil, err
	}
	rec, err := s.repomanager.Records(s.db).Get(ctx, userID, collection, key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// FetchIndex returns the live keys of collection that belong to year.
func (s *RecordService) FetchIndex(ctx context.Context, userID, collection string, year int) ([]string, error) {
	if !ValidCollection(collection) {
		return nil, invalid("unknown collection %q", collection)
	}
	if year < 1 || year > 9999 {
		return nil, invalid("year %d out of range", year)
	}
	return s.repomanager.Records(s.db).SelectLiveKeys(ctx, userID, collection, fmt.Sprintf("%04d-", year))
}

// FetchChanges returns records changed after since, oldest first. The page
// is capped at the configured page size; more reports that further records
// follow the last one returned.
func (s *RecordService) FetchChanges(ctx context.Context, userID, collection string, since *time.Time, limit int) ([]*models.Record, bool, error) {
	if !ValidCollection(collection) {
		return nil, false, invalid("unknown collection %q", collection)
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	recs, err := s.repomanager.Records(s.db).SelectChanges(ctx, userID, collection, since, limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(recs) > limit {
		return recs[:limit], true, nil
	}
	return recs, false, nil
}

// Push stores in if the caller's view of the record is current: a new key is
// inserted, an existing key is overwritten only when in.ID and expected
// match the stored id and server timestamp. Otherwise common.ErrConflict is
// returned. A pushed record is always live.
func (s *RecordService) Push(ctx context.Context, userID string, in *models.Record, expected *time.Time) (*models.Record, error) {
	if err := checkScope(in.Collection, in.Key); err != nil {
		return nil, err
	}
	if in.Revision < 1 {
		return nil, invalid("revision %d", in.Revision)
	}
	if len(in.Attributes) > 0 && !json.Valid(in.Attributes) {
		return nil, invalid("attributes are not JSON")
	}

	var out *models.Record
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)

		if err := repo.LockUser(ctx, userID); err != nil {
			return err
		}

		cur, err := repo.GetForUpdate(ctx, userID, in.Collection, in.Key)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if cur != nil {
			if in.ID == "" || in.ID != cur.ID || expected == nil || !expected.Equal(cur.ServerUpdatedAt) {
				return common.ErrConflict
			}
		}

		last, err := repo.LastServerUpdatedAt(ctx, userID, in.Collection)
		if err != nil {
			return err
		}

		rec := *in
		rec.UserID = userID
		rec.Deleted = false
		rec.UpdatedAt = in.UpdatedAt.UTC()
		rec.ServerUpdatedAt = nextServerTime(s.clock.Now(), last)

		if cur == nil {
			rec.ID = uuid.NewString()
			err = repo.Insert(ctx, &rec)
		} else {
			rec.ID = cur.ID
			err = repo.Update(ctx, &rec)
		}
		if err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete tombstones the record under key. Deleting an unknown or already
// deleted key succeeds. A non-empty id must match the stored record.
func (s *RecordService) Delete(ctx context.Context, userID, collection, id, key string) error {
	if err := checkScope(collection, key); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)

		if err := repo.LockUser(ctx, userID); err != nil {
			return err
		}

		cur, err := repo.GetForUpdate(ctx, userID, collection, key)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Deleted {
			return nil
		}
		if id != "" && id != cur.ID {
			return invalid("id does not match key")
		}

		last, err := repo.LastServerUpdatedAt(ctx, userID, collection)
		if err != nil {
			return err
		}
		return repo.MarkDeleted(ctx, cur.ID, nextServerTime(s.clock.Now(), last))
	})
}

// nextServerTime returns now at Postgres precision, moved past last if the
// clock has not advanced beyond it.
func nextServerTime(now time.Time, last *time.Time) time.Time {
	t := now.UTC().Truncate(time.Microsecond)
	if last != nil && !t.After(*last) {
		t = last.UTC().Add(time.Microsecond)
	}
	return t
}

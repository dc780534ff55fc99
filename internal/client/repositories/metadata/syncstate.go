package metadata

import (
	"context"

	"github.com/dmitrijs2005/daybook/internal/client/models"
)

const cursorKeyPrefix = "sync_cursor:"

// SyncStateStore persists the pull cursor of one collection.
type SyncStateStore struct {
	repo Repository
	key  string
}

func NewSyncStateStore(repo Repository, collection string) *SyncStateStore {
	return &SyncStateStore{repo: repo, key: cursorKeyPrefix + collection}
}

func (s *SyncStateStore) GetState(ctx context.Context) (models.SyncState, error) {
	b, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return models.SyncState{}, err
	}
	if len(b) == 0 {
		return models.SyncState{}, nil
	}
	c := string(b)
	return models.SyncState{Cursor: &c}, nil
}

func (s *SyncStateStore) SetState(ctx context.Context, st models.SyncState) error {
	if st.Cursor == nil {
		return s.repo.Delete(ctx, s.key)
	}
	return s.repo.Set(ctx, s.key, []byte(*st.Cursor))
}

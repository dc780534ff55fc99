package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/envelopes"
	"github.com/dmitrijs2005/daybook/internal/common"
)

// Sync runs one full pass: pending notes are pushed, then pending images,
// then remote changes of both collections are pulled. Concurrent callers
// join the pass already in flight. Being offline is not an error.
func (s *EnvelopeService) Sync(ctx context.Context) (models.SyncStatus, error) {
	v, err, _ := s.group.Do("sync", func() (any, error) {
		return s.syncPass(ctx)
	})
	st, _ := v.(models.SyncStatus)
	return st, err
}

func (s *EnvelopeService) syncPass(ctx context.Context) (st models.SyncStatus, err error) {
	if !s.isOnline() {
		s.setStatus(models.StatusOffline, nil)
		return models.StatusOffline, nil
	}

	s.setStatus(models.StatusSyncing, nil)
	start := s.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			err = common.NewSyncError(common.ErrSyncUnknown, "sync", fmt.Errorf("panic: %v", r))
			s.logger.Error(ctx, "sync pass panicked", "error", err)
			st = models.StatusError
			s.setStatus(st, err)
		}
	}()

	err = s.runPass(ctx)
	switch {
	case err == nil:
		s.logger.Info(ctx, "sync pass finished", "took", s.clock.Now().Sub(start))
		s.setStatus(models.StatusSynced, nil)
		return models.StatusSynced, nil
	case errors.Is(err, common.ErrOffline):
		s.logger.Info(ctx, "sync pass stopped, remote unreachable", "error", err)
		s.setStatus(models.StatusOffline, nil)
		return models.StatusOffline, nil
	}

	if !isTyped(err) {
		err = common.NewSyncError(common.ErrSyncUnknown, "sync", err)
	}
	s.logger.Error(ctx, "sync pass failed", "error", err)
	s.setStatus(models.StatusError, err)
	return models.StatusError, err
}

func isTyped(err error) bool {
	var se *common.SyncError
	var st *common.StorageError
	var ce *common.CryptoError
	return errors.As(err, &se) || errors.As(err, &st) || errors.As(err, &ce)
}

func (s *EnvelopeService) runPass(ctx context.Context) error {
	if err := s.pushNotes(ctx); err != nil {
		return err
	}
	if err := s.pushImages(ctx); err != nil {
		return err
	}
	if err := s.pullNotes(ctx); err != nil {
		return err
	}
	return s.pullImages(ctx)
}

func (s *EnvelopeService) pushNotes(ctx context.Context) error {
	metas, err := s.notes.GetAllMeta(ctx)
	if err != nil {
		return err
	}

	for _, m := range metas {
		switch m.PendingOp {
		case models.PendingNone:
			continue
		case models.PendingDelete:
			err = s.deleteNoteRemote(ctx, m)
		case models.PendingUpsert:
			err = s.pushNote(ctx, m.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// pushNote pushes the current local copy of key.
func (s *EnvelopeService) pushNote(ctx context.Context, key string) error {
	rec, meta, err := s.noteSnapshot(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil || meta == nil || meta.PendingOp != models.PendingUpsert {
		return nil
	}

	p := &models.PushPayload{ID: meta.RemoteID, Envelope: *models.NewEnvelope(rec, meta)}
	res, err := s.noteGW.Push(ctx, p)
	if err == nil {
		s.logger.Debug(ctx, "note pushed", "key", key, "revision", res.Revision)
		return s.applyNotePush(ctx, meta.Revision, rec, res)
	}
	if !errors.Is(err, common.ErrConflict) {
		return err
	}

	remote, err := s.noteGW.FetchByKey(ctx, key)
	if err != nil {
		return err
	}
	return s.resolveNote(ctx, rec, meta, remote)
}

func (s *EnvelopeService) deleteNoteRemote(ctx context.Context, meta *models.Meta) error {
	if err := s.noteGW.Delete(ctx, models.DeleteRequest{ID: meta.RemoteID, Key: meta.Key}); err != nil {
		return err
	}
	if err := s.indexRemove(ctx, meta.Key); err != nil {
		return err
	}

	return s.notes.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
		cur, err := st.GetMeta(ctx, meta.Key)
		if err != nil {
			return err
		}
		// saved again after the delete was requested
		if cur == nil || cur.PendingOp != models.PendingDelete {
			return nil
		}
		return st.DeleteRecordAndMeta(ctx, meta.Key)
	})
}

func (s *EnvelopeService) pullNotes(ctx context.Context) error {
	state, err := s.noteCursor.GetState(ctx)
	if err != nil {
		return err
	}
	changes, err := s.noteGW.FetchChangesSince(ctx, state.Cursor)
	if err != nil {
		return err
	}

	var last *time.Time
	for _, r := range changes {
		meta, err := s.notes.GetMeta(ctx, r.Key)
		if err != nil {
			return err
		}
		// our own push, with a newer local edit still pending
		ownEcho := meta != nil && meta.PendingOp == models.PendingUpsert && models.SameInstant(meta.ServerUpdatedAt, r.ServerUpdatedAt)
		if !ownEcho {
			if err := s.reconcileNote(ctx, r.Key, r); err != nil {
				return err
			}
		}
		if r.ServerUpdatedAt != nil {
			last = r.ServerUpdatedAt
		}
	}

	if last == nil {
		return nil
	}
	c := models.CursorFor(*last)
	s.logger.Debug(ctx, "notes pulled", "count", len(changes), "cursor", c)
	return s.noteCursor.SetState(ctx, models.SyncState{Cursor: &c})
}

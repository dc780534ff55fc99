package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/envelopes"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type winner int

const (
	localWins winner = iota
	remoteWins
)

// resolveConflict picks the side to keep. The higher revision wins; on
// equal revisions the later updatedAt wins and ties go to local.
func resolveConflict(localRev int64, localAt time.Time, remoteRev int64, remoteAt time.Time) winner {
	if localRev > remoteRev {
		return localWins
	}
	if localRev == remoteRev && !localAt.Before(remoteAt) {
		return localWins
	}
	return remoteWins
}

// rebasedRevision is the revision a winning local copy is pushed with.
func rebasedRevision(localRev, remoteRev int64) int64 {
	return max(localRev, remoteRev+1)
}

// reconcileNote brings one local note in line with remote. remote is nil
// if the remote has never seen the key.
func (s *EnvelopeService) reconcileNote(ctx context.Context, key string, remote *models.RemoteRecord) error {
	rec, meta, err := s.noteSnapshot(ctx, key)
	if err != nil {
		return err
	}

	var pending models.PendingOp
	if meta != nil {
		pending = meta.PendingOp
	}

	switch pending {
	case models.PendingDelete:
		return nil
	case models.PendingUpsert:
		if rec == nil {
			break
		}
		switch {
		case remote == nil:
			return s.pushNote(ctx, key)
		case remote.Deleted:
			// resurrect
			return s.rebasedNotePush(ctx, rec, meta, remote)
		default:
			return s.resolveNote(ctx, rec, meta, remote)
		}
	case models.PendingNone:
	}

	if remote == nil {
		return nil
	}
	var observed int64
	if meta != nil {
		observed = meta.Revision
		if rec != nil && models.SameInstant(meta.ServerUpdatedAt, remote.ServerUpdatedAt) {
			return nil
		}
	}
	if remote.Deleted && meta == nil {
		return s.indexRemove(ctx, key)
	}
	return s.adoptNote(ctx, observed, remote)
}

// resolveNote settles a pending local note against a live remote copy.
func (s *EnvelopeService) resolveNote(ctx context.Context, rec *models.Record, meta *models.Meta, remote *models.RemoteRecord) error {
	if remote == nil {
		return common.NewSyncError(common.ErrSyncUnknown, "resolve", errors.New("conflict reported for unknown key "+rec.Key))
	}
	if remote.Deleted {
		return s.rebasedNotePush(ctx, rec, meta, remote)
	}

	w := resolveConflict(meta.Revision, rec.UpdatedAt, remote.Revision, remote.UpdatedAt)
	s.logger.Info(ctx, "conflict",
		"key", rec.Key,
		"local_revision", meta.Revision,
		"remote_revision", remote.Revision,
		"local_wins", w == localWins)

	if w == localWins {
		return s.rebasedNotePush(ctx, rec, meta, remote)
	}
	return s.adoptNote(ctx, meta.Revision, remote)
}

// rebasedNotePush pushes the local copy on top of remote. If that fails
// for any reason other than being offline the remote copy is accepted.
func (s *EnvelopeService) rebasedNotePush(ctx context.Context, rec *models.Record, meta *models.Meta, remote *models.RemoteRecord) error {
	p := &models.PushPayload{ID: remote.ID, Envelope: *models.NewEnvelope(rec, meta)}
	p.Revision = rebasedRevision(meta.Revision, remote.Revision)
	p.ServerUpdatedAt = remote.ServerUpdatedAt

	res, err := s.noteGW.Push(ctx, p)
	if err == nil {
		return s.applyNotePush(ctx, meta.Revision, rec, res)
	}
	if errors.Is(err, common.ErrOffline) {
		return err
	}

	s.logger.Warn(ctx, "rebased push failed, accepting remote", "key", rec.Key, "error", err)
	return s.adoptNote(ctx, meta.Revision, remote)
}

// adoptNote makes remote the local snapshot of its key. It does nothing
// if the local meta changed since observedRev was read (0 means there was
// no local meta).
func (s *EnvelopeService) adoptNote(ctx context.Context, observedRev int64, remote *models.RemoteRecord) error {
	now := s.clock.Now()
	skipped := false

	err := s.notes.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
		cur, err := st.GetMeta(ctx, remote.Key)
		if err != nil {
			return err
		}
		var curRev int64
		if cur != nil {
			curRev = cur.Revision
		}
		if curRev != observedRev || (cur != nil && cur.PendingOp == models.PendingDelete) {
			skipped = true
			return nil
		}

		if remote.Deleted {
			if cur == nil {
				return nil
			}
			return st.DeleteRecordAndMeta(ctx, remote.Key)
		}

		meta := &models.Meta{
			Key:             remote.Key,
			Revision:        max(remote.Revision, curRev, 1),
			RemoteID:        remote.ID,
			ServerUpdatedAt: remote.ServerUpdatedAt,
			LastSyncedAt:    &now,
			PendingOp:       models.PendingNone,
		}
		return st.SetRecordAndMeta(ctx, remote.Record(), meta)
	})
	if err != nil {
		return err
	}
	if skipped {
		s.logger.Debug(ctx, "local edit raced remote adoption, keeping local", "key", remote.Key)
		return nil
	}

	if remote.Deleted {
		return s.indexRemove(ctx, remote.Key)
	}
	return s.indexAdd(ctx, remote.Key)
}

// applyNotePush stores the result of a successful push. If the note was
// edited while the push was in flight only the server-assigned fields are
// merged and the note stays pending.
func (s *EnvelopeService) applyNotePush(ctx context.Context, observedRev int64, pushed *models.Record, res *models.RemoteRecord) error {
	now := s.clock.Now()

	err := s.notes.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
		cur, err := st.GetMeta(ctx, res.Key)
		if err != nil {
			return err
		}

		switch {
		case cur == nil:
			// dropped locally while in flight; the remote copy still has
			// to go
			return st.SetRecordAndMeta(ctx, pushed, &models.Meta{
				Key:             res.Key,
				Revision:        res.Revision,
				RemoteID:        res.ID,
				ServerUpdatedAt: res.ServerUpdatedAt,
				LastSyncedAt:    &now,
				PendingOp:       models.PendingDelete,
			})
		case cur.PendingOp == models.PendingDelete:
			cur.RemoteID = res.ID
			cur.ServerUpdatedAt = res.ServerUpdatedAt
			return st.SetMetaOnly(ctx, cur)
		case cur.Revision > observedRev:
			cur.RemoteID = res.ID
			cur.ServerUpdatedAt = res.ServerUpdatedAt
			cur.Revision = max(cur.Revision, res.Revision+1)
			s.logger.Debug(ctx, "note edited during push, keeping it pending", "key", res.Key, "revision", cur.Revision)
			return st.SetMetaOnly(ctx, cur)
		}

		return st.SetRecordAndMeta(ctx, pushed, &models.Meta{
			Key:             res.Key,
			Revision:        res.Revision,
			RemoteID:        res.ID,
			ServerUpdatedAt: res.ServerUpdatedAt,
			LastSyncedAt:    &now,
			PendingOp:       models.PendingNone,
		})
	})
	if err != nil {
		return err
	}
	return s.indexAdd(ctx, res.Key)
}

func (s *EnvelopeService) indexAdd(ctx context.Context, key string) error {
	if err := s.index.Add(ctx, key); err != nil {
		s.logger.Warn(ctx, "remote index update failed", "key", key, "error", err)
	}
	return nil
}

func (s *EnvelopeService) indexRemove(ctx context.Context, key string) error {
	if err := s.index.Remove(ctx, key); err != nil {
		s.logger.Warn(ctx, "remote index update failed", "key", key, "error", err)
	}
	return nil
}

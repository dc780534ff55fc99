package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/envelopes"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrUnsupportedImage is returned by SaveImage for data that is not a
// PNG, JPEG or GIF image.
var ErrUnsupportedImage = errors.New("unsupported image format")

// SaveImage encrypts data and attaches it to the note noteKey. Saving the
// same bytes twice for one note returns the existing attachment.
func (s *EnvelopeService) SaveImage(ctx context.Context, noteKey string, data []byte) (*models.ImageMeta, error) {
	if err := validDate(noteKey); err != nil {
		return nil, err
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	existing, err := s.ImagesForNote(ctx, noteKey)
	if err != nil {
		return nil, err
	}
	hash := cryptox.HashHex(data)
	for _, m := range existing {
		if m.ContentHash == hash {
			return m, nil
		}
	}

	sealed, err := s.crypto.EncryptBlob(data, "")
	if err != nil {
		return nil, err
	}

	key := uuid.NewString()
	rec := &models.Record{
		Version:    models.RecordVersion,
		Key:        key,
		KeyID:      sealed.KeyID,
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		UpdatedAt:  s.clock.Now(),
	}
	meta := &models.ImageMeta{
		Meta: models.Meta{Key: key, Revision: 1, PendingOp: models.PendingUpsert},
		ImageAttrs: models.ImageAttrs{
			NoteKey:     noteKey,
			ContentHash: sealed.ContentHash,
			MimeType:    mt.String(),
			Width:       cfg.Width,
			Height:      cfg.Height,
			ByteSize:    sealed.Size,
		},
	}
	if err := s.images.SetRecordAndMeta(ctx, rec, meta); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "image saved", "key", key, "note", noteKey, "bytes", sealed.Size)
	return meta, nil
}

// ImagesForNote lists the attachments of a note.
func (s *EnvelopeService) ImagesForNote(ctx context.Context, noteKey string) ([]*models.ImageMeta, error) {
	metas, err := s.images.GetMetaByNote(ctx, noteKey)
	if err != nil {
		return nil, err
	}
	out := metas[:0]
	for _, m := range metas {
		if m.PendingOp != models.PendingDelete {
			out = append(out, m)
		}
	}
	return out, nil
}

// imageSnapshot reads the record and meta of key in one transaction.
func (s *EnvelopeService) imageSnapshot(ctx context.Context, key string) (rec *models.Record, meta *models.ImageMeta, err error) {
	err = s.images.Atomically(ctx, func(ctx context.Context, st envelopes.ImageStore) error {
		var err error
		if rec, err = st.GetRecord(ctx, key); err != nil {
			return err
		}
		meta, err = st.GetMeta(ctx, key)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, meta, nil
}

// GetImage returns the decrypted attachment key. A pulled image whose blob
// was not downloaded yet is fetched now, which fails with common.ErrOffline
// when the remote is unreachable.
func (s *EnvelopeService) GetImage(ctx context.Context, key string) (*models.Image, error) {
	rec, meta, err := s.imageSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || meta == nil || meta.PendingOp == models.PendingDelete {
		return nil, nil
	}

	if len(rec.Ciphertext) == 0 {
		if rec.Ciphertext, err = s.fetchBlob(ctx, meta); err != nil {
			return nil, err
		}
	}

	data, err := s.crypto.DecryptBlob(rec, meta.MimeType)
	if err != nil {
		return nil, err
	}
	if cryptox.HashHex(data) != meta.ContentHash {
		return nil, common.NewCryptoError(common.ErrDecryptFailed, rec.KeyID, errors.New("content hash mismatch"))
	}
	return &models.Image{Key: key, ImageAttrs: meta.ImageAttrs, Data: data}, nil
}

// fetchBlob downloads the encrypted blob of meta and caches it locally.
func (s *EnvelopeService) fetchBlob(ctx context.Context, meta *models.ImageMeta) ([]byte, error) {
	if meta.RemotePath == "" {
		return nil, common.NewStorageError(common.ErrCorrupt, "get image", meta.Key, errors.New("no blob and no remote path"))
	}
	if !s.isOnline() {
		return nil, common.NewSyncError(common.ErrOffline, "download", nil)
	}
	ct, err := s.imageGW.DownloadBlob(ctx, meta.RemotePath)
	if err != nil {
		return nil, err
	}

	err = s.images.Atomically(ctx, func(ctx context.Context, st envelopes.ImageStore) error {
		cur, err := st.GetRecord(ctx, meta.Key)
		if err != nil || cur == nil || len(cur.Ciphertext) > 0 {
			return err
		}
		curMeta, err := st.GetMeta(ctx, meta.Key)
		if err != nil || curMeta == nil {
			return err
		}
		cur.Ciphertext = ct
		return st.SetRecordAndMeta(ctx, cur, curMeta)
	})
	if err != nil {
		s.logger.Warn(ctx, "caching downloaded blob failed", "key", meta.Key, "error", err)
	}
	return ct, nil
}

// DeleteImage removes an attachment, going through the remote when it
// was ever pushed.
func (s *EnvelopeService) DeleteImage(ctx context.Context, key string) error {
	return s.images.Atomically(ctx, func(ctx context.Context, st envelopes.ImageStore) error {
		meta, err := st.GetMeta(ctx, key)
		if err != nil || meta == nil {
			return err
		}
		if !meta.HasRemote() {
			return st.DeleteRecordAndMeta(ctx, key)
		}
		meta.PendingOp = models.PendingDelete
		return st.SetMetaOnly(ctx, meta)
	})
}

func (s *EnvelopeService) pushImages(ctx context.Context) error {
	metas, err := s.images.GetAllMeta(ctx)
	if err != nil {
		return err
	}

	for _, m := range metas {
		switch m.PendingOp {
		case models.PendingNone:
			continue
		case models.PendingDelete:
			err = s.deleteImageRemote(ctx, m)
		case models.PendingUpsert:
			err = s.pushImage(ctx, m.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *EnvelopeService) pushImage(ctx context.Context, key string) error {
	rec, meta, err := s.imageSnapshot(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil || meta == nil || meta.PendingOp != models.PendingUpsert {
		return nil
	}

	res, attrs, err := s.registerImage(ctx, rec, meta, meta.RemoteID, meta.ServerUpdatedAt, meta.Revision)
	if err == nil {
		return s.applyImagePush(ctx, meta.Revision, rec, attrs, res)
	}
	if !errors.Is(err, common.ErrConflict) {
		return err
	}

	remote, err := s.imageGW.FetchByKey(ctx, key)
	if err != nil {
		return err
	}
	return s.resolveImage(ctx, rec, meta, remote)
}

// registerImage uploads the blob if it has no remote path yet, then pushes
// the image metadata. An uploaded blob is deleted again if the push fails.
func (s *EnvelopeService) registerImage(ctx context.Context, rec *models.Record, meta *models.ImageMeta, id string, serverUpdatedAt *time.Time, revision int64) (*models.RemoteRecord, models.ImageAttrs, error) {
	attrs := meta.ImageAttrs
	uploaded := false
	if attrs.RemotePath == "" {
		if len(rec.Ciphertext) == 0 {
			return nil, attrs, common.NewStorageError(common.ErrCorrupt, "push image", rec.Key, errors.New("no blob to upload"))
		}
		path, err := s.imageGW.UploadBlob(ctx, rec.Ciphertext)
		if err != nil {
			return nil, attrs, err
		}
		attrs.RemotePath = path
		uploaded = true
	}

	env := models.NewEnvelope(rec, &meta.Meta)
	env.Ciphertext = nil
	env.ServerUpdatedAt = serverUpdatedAt
	env.Revision = revision
	p := &models.PushPayload{ID: id, Envelope: *env, Image: &attrs}

	res, err := s.imageGW.Push(ctx, p)
	if err != nil {
		if uploaded {
			if derr := s.imageGW.DeleteBlob(ctx, attrs.RemotePath); derr != nil {
				s.logger.Warn(ctx, "blob rollback failed", "key", rec.Key, "path", attrs.RemotePath, "error", derr)
			}
			attrs.RemotePath = ""
		}
		return nil, attrs, err
	}
	return res, attrs, nil
}

func (s *EnvelopeService) resolveImage(ctx context.Context, rec *models.Record, meta *models.ImageMeta, remote *models.RemoteRecord) error {
	if remote == nil {
		return common.NewSyncError(common.ErrSyncUnknown, "resolve", errors.New("conflict reported for unknown image "+rec.Key))
	}
	if !remote.Deleted && resolveConflict(meta.Revision, rec.UpdatedAt, remote.Revision, remote.UpdatedAt) == remoteWins {
		return s.adoptImage(ctx, meta.Revision, remote)
	}

	res, attrs, err := s.registerImage(ctx, rec, meta, remote.ID, remote.ServerUpdatedAt, rebasedRevision(meta.Revision, remote.Revision))
	if err == nil {
		return s.applyImagePush(ctx, meta.Revision, rec, attrs, res)
	}
	if errors.Is(err, common.ErrOffline) {
		return err
	}
	s.logger.Warn(ctx, "rebased image push failed, accepting remote", "key", rec.Key, "error", err)
	return s.adoptImage(ctx, meta.Revision, remote)
}

func (s *EnvelopeService) applyImagePush(ctx context.Context, observedRev int64, pushed *models.Record, attrs models.ImageAttrs, res *models.RemoteRecord) error {
	now := s.clock.Now()

	return s.images.Atomically(ctx, func(ctx context.Context, st envelopes.ImageStore) error {
		cur, err := st.GetMeta(ctx, res.Key)
		if err != nil {
			return err
		}

		switch {
		case cur == nil:
			return st.SetRecordAndMeta(ctx, pushed, &models.ImageMeta{
				Meta: models.Meta{
					Key:             res.Key,
					Revision:        res.Revision,
					RemoteID:        res.ID,
					ServerUpdatedAt: res.ServerUpdatedAt,
					LastSyncedAt:    &now,
					PendingOp:       models.PendingDelete,
				},
				ImageAttrs: attrs,
			})
		case cur.PendingOp == models.PendingDelete || cur.Revision > observedRev:
			cur.RemoteID = res.ID
			cur.ServerUpdatedAt = res.ServerUpdatedAt
			cur.RemotePath = attrs.RemotePath
			if cur.PendingOp != models.PendingDelete {
				cur.Revision = max(cur.Revision, res.Revision+1)
			}
			return st.SetMetaOnly(ctx, cur)
		}

		return st.SetRecordAndMeta(ctx, pushed, &models.ImageMeta{
			Meta: models.Meta{
				Key:             res.Key,
				Revision:        res.Revision,
				RemoteID:        res.ID,
				ServerUpdatedAt: res.ServerUpdatedAt,
				LastSyncedAt:    &now,
				PendingOp:       models.PendingNone,
			},
			ImageAttrs: attrs,
		})
	})
}

func (s *EnvelopeService) deleteImageRemote(ctx context.Context, meta *models.ImageMeta) error {
	if err := s.imageGW.Delete(ctx, models.DeleteRequest{ID: meta.RemoteID, Key: meta.Key}); err != nil {
		return err
	}
	if meta.RemotePath != "" {
		if err := s.imageGW.DeleteBlob(ctx, meta.RemotePath); err != nil {
			s.logger.Warn(ctx, "blob delete failed", "key", meta.Key, "path", meta.RemotePath, "error", err)
		}
	}

	return s.images.Atomically(ctx, func(ctx context.Context, st envelopes.ImageStore) error {
		cur, err := st.GetMeta(ctx, meta.Key)
		if err != nil {
			return err
		}
		if cur == nil || cur.PendingOp != models.PendingDelete {
			return nil
		}
		return st.DeleteRecordAndMeta(ctx, meta.Key)
	})
}

func (s *EnvelopeService) pullImages(ctx context.Context) error {
	state, err := s.imageCursor.GetState(ctx)
	if err != nil {
		return err
	}
	changes, err := s.imageGW.FetchChangesSince(ctx, state.Cursor)
	if err != nil {
		return err
	}

	var last *time.Time
	for _, r := range changes {
		if err := s.reconcileImage(ctx, r); err != nil {
			return err
		}
		if r.ServerUpdatedAt != nil {
			last = r.ServerUpdatedAt
		}
	}

	if last == nil {
		return nil
	}
	c := models.CursorFor(*last)
	return s.imageCursor.SetState(ctx, models.SyncState{Cursor: &c})
}

func (s *EnvelopeService) reconcileImage(ctx context.Context, remote *models.RemoteRecord) error {
	rec, meta, err := s.imageSnapshot(ctx, remote.Key)
	if err != nil {
		return err
	}

	var observed int64
	if meta != nil {
		observed = meta.Revision
		if rec != nil && models.SameInstant(meta.ServerUpdatedAt, remote.ServerUpdatedAt) {
			return nil
		}
		switch meta.PendingOp {
		case models.PendingDelete:
			return nil
		case models.PendingUpsert:
			if rec != nil {
				return s.resolveImage(ctx, rec, meta, remote)
			}
		case models.PendingNone:
		}
	}

	if remote.Deleted && meta == nil {
		return nil
	}
	return s.adoptImage(ctx, observed, remote)
}

// adoptImage makes remote the local copy of an image and downloads its
// blob. A failed download leaves the blob to be fetched by GetImage.
func (s *EnvelopeService) adoptImage(ctx context.Context, observedRev int64, remote *models.RemoteRecord) error {
	if !remote.Deleted && remote.Image == nil {
		return common.NewSyncError(common.ErrSyncUnknown, "pull", errors.New("image record without attributes: "+remote.Key))
	}

	var blob []byte
	if !remote.Deleted {
		local, err := s.localBlob(ctx, remote)
		if err != nil {
			return err
		}
		blob = local
	}
	if !remote.Deleted && blob == nil && remote.Image.RemotePath != "" {
		b, err := s.imageGW.DownloadBlob(ctx, remote.Image.RemotePath)
		if err != nil {
			s.logger.Warn(ctx, "blob download deferred", "key", remote.Key, "error", err)
		} else {
			blob = b
		}
	}

	now := s.clock.Now()
	return s.images.Atomically(ctx, func(ctx context.Context, st envelopes.ImageStore) error {
		cur, err := st.GetMeta(ctx, remote.Key)
		if err != nil {
			return err
		}
		var curRev int64
		if cur != nil {
			curRev = cur.Revision
		}
		if curRev != observedRev || (cur != nil && cur.PendingOp == models.PendingDelete) {
			return nil
		}

		if remote.Deleted {
			if cur == nil {
				return nil
			}
			return st.DeleteRecordAndMeta(ctx, remote.Key)
		}

		rec := remote.Record()
		rec.Ciphertext = blob
		return st.SetRecordAndMeta(ctx, rec, &models.ImageMeta{
			Meta: models.Meta{
				Key:             remote.Key,
				Revision:        max(remote.Revision, curRev, 1),
				RemoteID:        remote.ID,
				ServerUpdatedAt: remote.ServerUpdatedAt,
				LastSyncedAt:    &now,
				PendingOp:       models.PendingNone,
			},
			ImageAttrs: *remote.Image,
		})
	})
}

// localBlob returns the stored blob of remote's key if it holds the same
// content under the same nonce.
func (s *EnvelopeService) localBlob(ctx context.Context, remote *models.RemoteRecord) ([]byte, error) {
	rec, meta, err := s.imageSnapshot(ctx, remote.Key)
	if err != nil || meta == nil || meta.ContentHash != remote.Image.ContentHash {
		return nil, err
	}
	if rec == nil || !bytes.Equal(rec.Nonce, remote.Nonce) || len(rec.Ciphertext) == 0 {
		return nil, nil
	}
	return rec.Ciphertext, nil
}

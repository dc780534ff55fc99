// Package services contains the client-side sync engine. EnvelopeService
// encrypts and stores notes and image attachments locally, pushes pending
// changes to the remote with revision-conditioned writes, resolves
// conflicts and pulls remote changes through a cursor.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/client"
	"github.com/dmitrijs2005/daybook/internal/client/e2ee"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/envelopes"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidDate is returned for note keys that are not YYYY-MM-DD dates.
var ErrInvalidDate = errors.New("note key must be a date (YYYY-MM-DD)")

// Connectivity reports whether the remote is reachable.
type Connectivity interface {
	IsOnline() bool
}

// SyncStateStore persists the pull cursor of one collection.
type SyncStateStore interface {
	GetState(ctx context.Context) (models.SyncState, error)
	SetState(ctx context.Context, st models.SyncState) error
}

// RemoteIndex caches which note keys exist remotely.
type RemoteIndex interface {
	Refresh(ctx context.Context, year int) error
	Contains(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, year int) ([]string, error)
	Add(ctx context.Context, key string) error
	Remove(ctx context.Context, key string) error
}

// Deps are the collaborators of EnvelopeService.
type Deps struct {
	Notes        envelopes.NoteStore
	Images       envelopes.ImageStore
	NoteGateway  client.Gateway
	ImageGateway client.ImageGateway
	NoteCursor   SyncStateStore
	ImageCursor  SyncStateStore
	Index        RemoteIndex
	Crypto       *e2ee.Service
	Online       Connectivity
	Clock        timex.Clock
	Logger       logging.Logger
}

type EnvelopeService struct {
	notes       envelopes.NoteStore
	images      envelopes.ImageStore
	noteGW      client.Gateway
	imageGW     client.ImageGateway
	noteCursor  SyncStateStore
	imageCursor SyncStateStore
	index       RemoteIndex
	crypto      *e2ee.Service
	online      Connectivity
	clock       timex.Clock
	logger      logging.Logger

	group singleflight.Group

	statusMu sync.Mutex
	status   models.SyncStatus
	lastErr  error
	subs     map[int]StatusListener
	nextSub  int
}

func NewEnvelopeService(d Deps) *EnvelopeService {
	clock := d.Clock
	if clock == nil {
		clock = timex.SystemClock{}
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &EnvelopeService{
		notes:       d.Notes,
		images:      d.Images,
		noteGW:      d.NoteGateway,
		imageGW:     d.ImageGateway,
		noteCursor:  d.NoteCursor,
		imageCursor: d.ImageCursor,
		index:       d.Index,
		crypto:      d.Crypto,
		online:      d.Online,
		clock:       clock,
		logger:      logger.With("module", "envelopes"),
		status:      models.StatusIdle,
		subs:        make(map[int]StatusListener),
	}
}

func validDate(key string) error {
	if _, err := time.Parse(time.DateOnly, key); err != nil {
		return fmt.Errorf("%q: %w", key, ErrInvalidDate)
	}
	return nil
}

// noteSnapshot reads the record and meta of key in one transaction so that
// both belong to the same revision.
func (s *EnvelopeService) noteSnapshot(ctx context.Context, key string) (rec *models.Record, meta *models.Meta, err error) {
	err = s.notes.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
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

// GetEnvelope returns the local envelope of key, or nil if there is none
// or it is waiting to be deleted.
func (s *EnvelopeService) GetEnvelope(ctx context.Context, key string) (*models.Envelope, error) {
	rec, meta, err := s.noteSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || meta == nil || meta.PendingOp == models.PendingDelete {
		return nil, nil
	}
	return models.NewEnvelope(rec, meta), nil
}

// ReadNote returns the decrypted content of key. ok is false if the note
// is not available locally.
func (s *EnvelopeService) ReadNote(ctx context.Context, key string) (content string, ok bool, err error) {
	env, err := s.GetEnvelope(ctx, key)
	if err != nil || env == nil {
		return "", false, err
	}
	content, err = s.crypto.DecryptRecord(env.Record())
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

// SaveEnvelope encrypts content and stores it as the next revision of key.
func (s *EnvelopeService) SaveEnvelope(ctx context.Context, key string, content string) (*models.Envelope, error) {
	if err := validDate(key); err != nil {
		return nil, err
	}
	sealed, err := s.crypto.EncryptContent(content, "")
	if err != nil {
		return nil, err
	}

	rec := &models.Record{
		Version:    models.RecordVersion,
		Key:        key,
		KeyID:      sealed.KeyID,
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		UpdatedAt:  s.clock.Now(),
	}

	var meta *models.Meta
	err = s.notes.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
		cur, err := st.GetMeta(ctx, key)
		if err != nil {
			return err
		}
		if cur == nil {
			meta = &models.Meta{Key: key, Revision: 1}
		} else {
			meta = cur
			meta.Revision++
		}
		meta.PendingOp = models.PendingUpsert
		return st.SetRecordAndMeta(ctx, rec, meta)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "note saved", "key", key, "revision", meta.Revision)
	return models.NewEnvelope(rec, meta), nil
}

// DeleteEnvelope removes key. A key the remote never saw is dropped at
// once; otherwise it is marked for deletion and removed after the next
// successful push. Attached images are deleted as well.
func (s *EnvelopeService) DeleteEnvelope(ctx context.Context, key string) error {
	err := s.notes.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
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
	if err != nil {
		return err
	}

	imgs, err := s.images.GetMetaByNote(ctx, key)
	if err != nil {
		return err
	}
	for _, m := range imgs {
		if err := s.DeleteImage(ctx, m.Key); err != nil {
			return err
		}
	}
	return nil
}

// HasPendingOp reports whether key has a change the remote has not
// confirmed yet.
func (s *EnvelopeService) HasPendingOp(ctx context.Context, key string) (bool, error) {
	meta, err := s.notes.GetMeta(ctx, key)
	if err != nil {
		return false, err
	}
	return meta != nil && meta.PendingOp != models.PendingNone, nil
}

// HasPendingOps reports whether any note or image is waiting to be pushed.
func (s *EnvelopeService) HasPendingOps(ctx context.Context) (bool, error) {
	metas, err := s.notes.GetAllMeta(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range metas {
		if m.PendingOp != models.PendingNone {
			return true, nil
		}
	}
	imgs, err := s.images.GetAllMeta(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range imgs {
		if m.PendingOp != models.PendingNone {
			return true, nil
		}
	}
	return false, nil
}

// GetAllDates returns the keys of all locally available notes.
func (s *EnvelopeService) GetAllDates(ctx context.Context) ([]string, error) {
	metas, err := s.notes.GetAllMeta(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(metas))
	for _, m := range metas {
		if m.PendingOp != models.PendingDelete {
			out = append(out, m.Key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetAllDatesForYear returns the note keys of year known locally or from
// the remote index. The index is refreshed first when online.
func (s *EnvelopeService) GetAllDatesForYear(ctx context.Context, year int) ([]string, error) {
	if s.isOnline() {
		if err := s.index.Refresh(ctx, year); err != nil {
			s.logger.Warn(ctx, "remote index refresh failed", "year", year, "error", err)
		}
	}

	metas, err := s.notes.GetAllMeta(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := s.index.Keys(ctx, year)
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%04d-", year)
	set := make(map[string]bool)
	for _, k := range remote {
		set[k] = true
	}
	for _, m := range metas {
		if len(m.Key) < len(prefix) || m.Key[:len(prefix)] != prefix {
			continue
		}
		set[m.Key] = m.PendingOp != models.PendingDelete
	}

	out := make([]string, 0, len(set))
	for k, keep := range set {
		if keep {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Open loads key for display. When the note is not stored locally it is
// fetched if the remote is reachable; otherwise the remote index decides
// between an offline stub and a new note.
func (s *EnvelopeService) Open(ctx context.Context, key string) (*models.OpenResult, error) {
	env, err := s.GetEnvelope(ctx, key)
	if err != nil {
		return nil, err
	}
	if env != nil {
		return &models.OpenResult{Envelope: env, State: models.DocumentLocal}, nil
	}

	if s.isOnline() {
		env, err := s.RefreshEnvelope(ctx, key)
		switch {
		case err == nil && env != nil:
			return &models.OpenResult{Envelope: env, State: models.DocumentLocal}, nil
		case err == nil:
			return &models.OpenResult{State: models.DocumentNew}, nil
		case !errors.Is(err, common.ErrOffline):
			return nil, err
		}
	}

	known, err := s.index.Contains(ctx, key)
	if err != nil {
		return nil, err
	}
	if known {
		return &models.OpenResult{State: models.DocumentRemoteOnly}, nil
	}
	return &models.OpenResult{State: models.DocumentNew}, nil
}

// RefreshEnvelope reconciles key with the remote copy and returns the
// resulting local envelope. Offline it returns the local envelope.
func (s *EnvelopeService) RefreshEnvelope(ctx context.Context, key string) (*models.Envelope, error) {
	if !s.isOnline() {
		return s.GetEnvelope(ctx, key)
	}

	remote, err := s.noteGW.FetchByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.reconcileNote(ctx, key, remote); err != nil {
		return nil, err
	}
	return s.GetEnvelope(ctx, key)
}

func (s *EnvelopeService) isOnline() bool {
	return s.online == nil || s.online.IsOnline()
}

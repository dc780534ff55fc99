package services

import (
	"bytes"
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/client"
	"github.com/dmitrijs2005/daybook/internal/client/e2ee"
	"github.com/dmitrijs2005/daybook/internal/client/indexcache"
	"github.com/dmitrijs2005/daybook/internal/client/keyring"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/envelopes"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fakeOnline struct {
	offline atomic.Bool
}

func (f *fakeOnline) IsOnline() bool { return !f.offline.Load() }

// remote is the shared server side of a test: one gateway per collection.
type remote struct {
	clock  *timex.ManualClock
	notes  *client.MemoryGateway
	images *client.MemoryGateway
}

func newRemote() *remote {
	clock := timex.NewManualClock(t0)
	return &remote{
		clock:  clock,
		notes:  client.NewMemoryGateway(clock),
		images: client.NewMemoryGateway(clock),
	}
}

// device is one client installation with its own local store.
type device struct {
	svc    *EnvelopeService
	notes  *envelopes.NoteRepository
	images *envelopes.ImageRepository
	meta   metadata.Repository
	online *fakeOnline
	crypto *e2ee.Service
}

func newDevice(t *testing.T, r *remote) *device {
	t.Helper()
	conn := storage.NewConn(storage.Options{
		Path:      filepath.Join(t.TempDir(), "daybook.db"),
		BaseDelay: time.Millisecond,
	}, logging.NopLogger{})
	t.Cleanup(func() { _ = conn.Close() })

	meta := metadata.NewSQLiteRepository(conn)
	notes := envelopes.NewNoteRepository(conn)
	images := envelopes.NewImageRepository(conn)
	online := &fakeOnline{}
	crypto := e2ee.New(keyring.NewStatic("k1", bytes.Repeat([]byte{9}, 32)))

	svc := NewEnvelopeService(Deps{
		Notes:        notes,
		Images:       images,
		NoteGateway:  r.notes,
		ImageGateway: r.images,
		NoteCursor:   metadata.NewSyncStateStore(meta, common.CollectionNotes),
		ImageCursor:  metadata.NewSyncStateStore(meta, common.CollectionImages),
		Index:        indexcache.New(r.notes, meta, r.clock, time.Nanosecond, logging.NopLogger{}),
		Crypto:       crypto,
		Online:       online,
		Clock:        r.clock,
		Logger:       logging.NopLogger{},
	})
	return &device{svc: svc, notes: notes, images: images, meta: meta, online: online, crypto: crypto}
}

func (d *device) save(t *testing.T, key, content string) {
	t.Helper()
	_, err := d.svc.SaveEnvelope(context.Background(), key, content)
	require.NoError(t, err)
}

func (d *device) sync(t *testing.T) models.SyncStatus {
	t.Helper()
	st, err := d.svc.Sync(context.Background())
	require.NoError(t, err)
	return st
}

func (d *device) read(t *testing.T, key string) string {
	t.Helper()
	content, ok, err := d.svc.ReadNote(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "note %s not available", key)
	return content
}

func (d *device) pending(t *testing.T, key string) bool {
	t.Helper()
	p, err := d.svc.HasPendingOp(context.Background(), key)
	require.NoError(t, err)
	return p
}

// remoteContent decrypts what the remote holds for key.
func (d *device) remoteContent(t *testing.T, r *remote, key string) string {
	t.Helper()
	rec := r.notes.Record(key)
	require.NotNil(t, rec)
	out, err := d.crypto.DecryptRecord(rec.Record())
	require.NoError(t, err)
	return out
}

// hookedNotes wraps a note store. afterRead runs once, right after the
// first read of a record has completed, and failWrite can reject writes of
// selected keys.
type hookedNotes struct {
	envelopes.NoteStore
	afterRead func()
	failWrite func(key string) error
}

// hookNotes installs a hookedNotes in front of the device's note store.
func (d *device) hookNotes() *hookedNotes {
	h := &hookedNotes{NoteStore: d.notes}
	d.svc.notes = h
	return h
}

func (h *hookedNotes) fireAfterRead() {
	if f := h.afterRead; f != nil {
		h.afterRead = nil
		f()
	}
}

func (h *hookedNotes) GetRecord(ctx context.Context, key string) (*models.Record, error) {
	rec, err := h.NoteStore.GetRecord(ctx, key)
	h.fireAfterRead()
	return rec, err
}

func (h *hookedNotes) SetRecordAndMeta(ctx context.Context, rec *models.Record, meta *models.Meta) error {
	if h.failWrite != nil {
		if err := h.failWrite(rec.Key); err != nil {
			return err
		}
	}
	return h.NoteStore.SetRecordAndMeta(ctx, rec, meta)
}

func (h *hookedNotes) Atomically(ctx context.Context, fn func(ctx context.Context, s envelopes.NoteStore) error) error {
	read := false
	err := h.NoteStore.Atomically(ctx, func(ctx context.Context, st envelopes.NoteStore) error {
		return fn(ctx, &hookedTx{NoteStore: st, h: h, read: &read})
	})
	if err == nil && read {
		h.fireAfterRead()
	}
	return err
}

// hookedTx is the transaction-bound side of hookedNotes. Its reads only
// count once the transaction commits.
type hookedTx struct {
	envelopes.NoteStore
	h    *hookedNotes
	read *bool
}

func (x *hookedTx) GetRecord(ctx context.Context, key string) (*models.Record, error) {
	*x.read = true
	return x.NoteStore.GetRecord(ctx, key)
}

func (x *hookedTx) SetRecordAndMeta(ctx context.Context, rec *models.Record, meta *models.Meta) error {
	if x.h.failWrite != nil {
		if err := x.h.failWrite(rec.Key); err != nil {
			return err
		}
	}
	return x.NoteStore.SetRecordAndMeta(ctx, rec, meta)
}

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/google/uuid"
)

// MemoryGateway is an in-process ImageGateway. It applies the same
// conditional-write rules as the server.
type MemoryGateway struct {
	// BeforePush, if set, runs at the start of every Push without the
	// lock held.
	BeforePush func(ctx context.Context, p *models.PushPayload)

	mu      sync.Mutex
	clock   timex.Clock
	last    time.Time
	records map[string]*models.RemoteRecord
	blobs   map[string][]byte
	errs    map[string]error
	calls   map[string]int
}

func NewMemoryGateway(clock timex.Clock) *MemoryGateway {
	return &MemoryGateway{
		clock:   clock,
		records: make(map[string]*models.RemoteRecord),
		blobs:   make(map[string][]byte),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// SetError makes op ("push", "delete", "fetch", ...) fail with err until it
// is cleared with a nil err.
func (g *MemoryGateway) SetError(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, op)
		return
	}
	g.errs[op] = err
}

// Calls returns how many times op was invoked.
func (g *MemoryGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Record returns a copy of the stored record for key.
func (g *MemoryGateway) Record(key string) *models.RemoteRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return clone(g.records[key])
}

// Blob returns the stored blob at path.
func (g *MemoryGateway) Blob(path string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.blobs[path]
	return bytes.Clone(b), ok
}

// Put writes env unconditionally, as another device would.
func (g *MemoryGateway) Put(env models.Envelope, image *models.ImageAttrs) *models.RemoteRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec := g.records[env.Key]
	if rec == nil {
		rec = &models.RemoteRecord{ID: uuid.NewString()}
		g.records[env.Key] = rec
	}
	rec.Envelope = env
	rec.Image = image
	ts := g.tick()
	rec.ServerUpdatedAt = &ts
	return clone(rec)
}

func (g *MemoryGateway) enter(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	return g.errs[op]
}

// tick returns a server timestamp strictly after the previous one.
func (g *MemoryGateway) tick() time.Time {
	now := g.clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(g.last) {
		now = g.last.Add(time.Microsecond)
	}
	g.last = now
	return now
}

func (g *MemoryGateway) FetchByKey(ctx context.Context, key string) (*models.RemoteRecord, error) {
	if err := g.enter("fetch"); err != nil {
		return nil, err
	}
	return g.Record(key), nil
}

func (g *MemoryGateway) FetchIndex(ctx context.Context, year int) ([]string, error) {
	if err := g.enter("fetch index"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := fmt.Sprintf("%04d-", year)
	keys := []string{}
	for k, r := range g.records {
		if !r.Deleted && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (g *MemoryGateway) FetchChangesSince(ctx context.Context, cursor *string) ([]*models.RemoteRecord, error) {
	if err := g.enter("fetch changes"); err != nil {
		return nil, err
	}

	var since time.Time
	if cursor != nil {
		t, err := models.ParseCursor(*cursor)
		if err != nil {
			return nil, common.NewSyncError(common.ErrRemoteRejected, "fetch changes", err)
		}
		since = t
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []*models.RemoteRecord
	for _, r := range g.records {
		if cursor == nil || r.ServerUpdatedAt.After(since) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServerUpdatedAt.Before(*out[j].ServerUpdatedAt)
	})
	return out, nil
}

func (g *MemoryGateway) Push(ctx context.Context, p *models.PushPayload) (*models.RemoteRecord, error) {
	if g.BeforePush != nil {
		g.BeforePush(ctx, p)
	}
	if err := g.enter("push"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.records[p.Key]
	if cur != nil {
		if p.ID == "" || p.ID != cur.ID || !models.SameInstant(p.ServerUpdatedAt, cur.ServerUpdatedAt) {
			return nil, common.NewSyncError(common.ErrConflict, "push", errors.New("remote record changed"))
		}
	} else {
		cur = &models.RemoteRecord{ID: uuid.NewString()}
		g.records[p.Key] = cur
	}

	cur.Envelope = p.Envelope
	cur.Envelope.Ciphertext = bytes.Clone(p.Ciphertext)
	cur.Envelope.Nonce = bytes.Clone(p.Nonce)
	cur.Deleted = false
	cur.Image = p.Image
	ts := g.tick()
	cur.ServerUpdatedAt = &ts
	return clone(cur), nil
}

func (g *MemoryGateway) Delete(ctx context.Context, req models.DeleteRequest) error {
	if err := g.enter("delete"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.records[req.Key]
	if cur == nil || cur.Deleted {
		return nil
	}
	if req.ID != "" && req.ID != cur.ID {
		return common.NewSyncError(common.ErrRemoteRejected, "delete", errors.New("id does not match key"))
	}
	cur.Deleted = true
	cur.Ciphertext = nil
	cur.Nonce = nil
	ts := g.tick()
	cur.ServerUpdatedAt = &ts
	return nil
}

func (g *MemoryGateway) UploadBlob(ctx context.Context, data []byte) (string, error) {
	if err := g.enter("upload"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	path := "mem/images/" + uuid.NewString()
	g.blobs[path] = bytes.Clone(data)
	return path, nil
}

func (g *MemoryGateway) DownloadBlob(ctx context.Context, path string) ([]byte, error) {
	if err := g.enter("download"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.blobs[path]
	if !ok {
		return nil, common.NewSyncError(common.ErrRemoteRejected, "download", common.ErrNotFound)
	}
	return bytes.Clone(b), nil
}

func (g *MemoryGateway) DeleteBlob(ctx context.Context, path string) error {
	if err := g.enter("delete blob"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blobs, path)
	return nil
}

func (g *MemoryGateway) Ping(ctx context.Context) error {
	return g.enter("ping")
}

func clone(r *models.RemoteRecord) *models.RemoteRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Ciphertext = bytes.Clone(r.Ciphertext)
	out.Nonce = bytes.Clone(r.Nonce)
	if r.ServerUpdatedAt != nil {
		ts := *r.ServerUpdatedAt
		out.ServerUpdatedAt = &ts
	}
	if r.Image != nil {
		img := *r.Image
		out.Image = &img
	}
	return &out
}

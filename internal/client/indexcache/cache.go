// Package indexcache remembers which note keys exist on the remote, per
// year. It lets the client tell a note it cannot load while offline apart
// from a note that does not exist.
package indexcache

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"golang.org/x/sync/singleflight"
)

// DefaultCooldown is how long a completed refresh suppresses new ones.
const DefaultCooldown = 2 * time.Second

const metaKeyPrefix = "remote_index:"

// Fetcher loads the remote index of one year.
type Fetcher interface {
	FetchIndex(ctx context.Context, year int) ([]string, error)
}

type yearIndex struct {
	keys        map[string]struct{}
	refreshedAt time.Time
}

type Cache struct {
	fetcher  Fetcher
	meta     metadata.Repository
	clock    timex.Clock
	cooldown time.Duration
	logger   logging.Logger

	group singleflight.Group

	mu    sync.Mutex
	years map[int]*yearIndex
}

func New(fetcher Fetcher, meta metadata.Repository, clock timex.Clock, cooldown time.Duration, logger logging.Logger) *Cache {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Cache{
		fetcher:  fetcher,
		meta:     meta,
		clock:    clock,
		cooldown: cooldown,
		logger:   logger.With("module", "indexcache"),
		years:    make(map[int]*yearIndex),
	}
}

// YearOf returns the year of a date key such as "2024-05-01".
func YearOf(key string) (int, bool) {
	if len(key) < 5 || key[4] != '-' {
		return 0, false
	}
	y, err := strconv.Atoi(key[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}

// Refresh reloads the index of year from the remote. Concurrent calls for
// the same year share one request; calls within the cooldown of the last
// completed refresh return without a request.
func (c *Cache) Refresh(ctx context.Context, year int) error {
	c.mu.Lock()
	idx := c.years[year]
	fresh := idx != nil && !idx.refreshedAt.IsZero() && c.clock.Now().Sub(idx.refreshedAt) < c.cooldown
	c.mu.Unlock()
	if fresh {
		return nil
	}

	_, err, shared := c.group.Do(strconv.Itoa(year), func() (any, error) {
		keys, err := c.fetcher.FetchIndex(ctx, year)
		if err != nil {
			return nil, err
		}
		c.store(year, keys, c.clock.Now())
		if err := metadata.SetJSON(ctx, c.meta, metaKeyPrefix+strconv.Itoa(year), keys); err != nil {
			c.logger.Warn(ctx, "persist remote index failed", "year", year, "error", err)
		}
		return nil, nil
	})
	if shared {
		c.logger.Debug(ctx, "joined in-flight index refresh", "year", year)
	}
	return err
}

func (c *Cache) store(year int, keys []string, at time.Time) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	c.mu.Lock()
	c.years[year] = &yearIndex{keys: set, refreshedAt: at}
	c.mu.Unlock()
}

// load returns the index of year, reading the persisted copy on first use.
func (c *Cache) load(ctx context.Context, year int) (*yearIndex, error) {
	c.mu.Lock()
	idx := c.years[year]
	c.mu.Unlock()
	if idx != nil {
		return idx, nil
	}

	var keys []string
	if _, err := metadata.GetJSON(ctx, c.meta, metaKeyPrefix+strconv.Itoa(year), &keys); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.years[year]; idx != nil {
		return idx, nil
	}
	idx = &yearIndex{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		idx.keys[k] = struct{}{}
	}
	c.years[year] = idx
	return idx, nil
}

// Contains reports whether key is known to exist on the remote.
func (c *Cache) Contains(ctx context.Context, key string) (bool, error) {
	year, ok := YearOf(key)
	if !ok {
		return false, nil
	}
	idx, err := c.load(ctx, year)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, found := idx.keys[key]
	return found, nil
}

// Keys returns the known remote keys of year in ascending order.
func (c *Cache) Keys(ctx context.Context, year int) ([]string, error) {
	idx, err := c.load(ctx, year)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	out := make([]string, 0, len(idx.keys))
	for k := range idx.keys {
		out = append(out, k)
	}
	c.mu.Unlock()
	sort.Strings(out)
	return out, nil
}

// Add records key as present on the remote.
func (c *Cache) Add(ctx context.Context, key string) error {
	return c.update(ctx, key, true)
}

// Remove forgets key.
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.update(ctx, key, false)
}

func (c *Cache) update(ctx context.Context, key string, present bool) error {
	year, ok := YearOf(key)
	if !ok {
		return nil
	}
	idx, err := c.load(ctx, year)
	if err != nil {
		return err
	}

	c.mu.Lock()
	_, had := idx.keys[key]
	if had == present {
		c.mu.Unlock()
		return nil
	}
	if present {
		idx.keys[key] = struct{}{}
	} else {
		delete(idx.keys, key)
	}
	keys := make([]string, 0, len(idx.keys))
	for k := range idx.keys {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return metadata.SetJSON(ctx, c.meta, metaKeyPrefix+strconv.Itoa(year), keys)
}

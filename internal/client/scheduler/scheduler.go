// Package scheduler decides when the sync engine runs. Callers express
// intent (now, soon after a burst of edits, or when idle) and the
// scheduler turns it into Sync calls.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

const (
	DefaultDebounce  = 2000 * time.Millisecond
	DefaultIdleDelay = 4000 * time.Millisecond
)

// Syncer is the part of the sync engine the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context) (models.SyncStatus, error)
	HasPendingOps(ctx context.Context) (bool, error)
}

type Options struct {
	Debounce  time.Duration
	IdleDelay time.Duration
}

type Scheduler struct {
	syncer    Syncer
	debounce  time.Duration
	idleDelay time.Duration
	logger    logging.Logger

	mu       sync.Mutex
	disposed bool

	// gen invalidates debounce timers that fired after being replaced
	gen       uint64
	debounced *time.Timer
	idle      *time.Timer
	wg        sync.WaitGroup
}

func New(syncer Syncer, opts Options, logger logging.Logger) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = DefaultIdleDelay
	}
	return &Scheduler{
		syncer:    syncer,
		debounce:  opts.Debounce,
		idleDelay: opts.IdleDelay,
		logger:    logger.With("module", "scheduler"),
	}
}

// RequestImmediate starts a sync now and drops a pending debounced one.
func (s *Scheduler) RequestImmediate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.stopDebounceLocked()
	s.dispatchLocked("immediate")
}

// RequestDebounced schedules a sync after the debounce window. Every call
// restarts the window.
func (s *Scheduler) RequestDebounced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.stopDebounceLocked()
	gen := s.gen
	s.debounced = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.disposed || gen != s.gen {
			return
		}
		s.debounced = nil
		s.dispatchLocked("debounced")
	})
}

// RequestIdle syncs after the idle delay if anything is pending. A call
// made while an idle request is waiting is ignored.
func (s *Scheduler) RequestIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.idle != nil {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.idleDelay, func() {
		s.mu.Lock()
		disposed := s.disposed
		s.mu.Unlock()
		if disposed {
			return
		}

		ctx := context.Background()
		pending, err := s.syncer.HasPendingOps(ctx)
		if err != nil {
			s.logger.Warn(ctx, "idle check failed", "error", err)
		}

		// the request stays outstanding until the decision is made
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.idle == timer {
			s.idle = nil
		}
		if err == nil && pending && !s.disposed {
			s.dispatchLocked("idle")
		}
	})
	s.idle = timer
}

// Dispose stops both timers. No sync is started afterwards; a pass that
// is already running is left to finish.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.stopDebounceLocked()
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	s.mu.Unlock()
}

// Wait blocks until every dispatched sync has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) stopDebounceLocked() {
	s.gen++
	if s.debounced != nil {
		s.debounced.Stop()
		s.debounced = nil
	}
}

func (s *Scheduler) dispatchLocked(reason string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.Background()
		st, err := s.syncer.Sync(ctx)
		if err != nil {
			s.logger.Warn(ctx, "scheduled sync failed", "reason", reason, "error", err)
			return
		}
		s.logger.Debug(ctx, "scheduled sync done", "reason", reason, "status", st)
	}()
}

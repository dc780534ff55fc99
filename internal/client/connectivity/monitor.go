// Package connectivity tracks whether the sync server is reachable by
// pinging it periodically.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/daybook/internal/logging"
)

const pingTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor implements IsOnline for the sync engine.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger
	online   atomic.Bool

	mu        sync.Mutex
	listeners []func(online bool)
}

func NewMonitor(p Pinger, interval time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{pinger: p, interval: interval, logger: logger.With("module", "connectivity")}
}

func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// OnChange registers fn to be called after every online/offline switch.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Check pings once and updates the state.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := m.pinger.Ping(ctx)
	cancel()

	online := err == nil
	if m.online.Swap(online) != online {
		if online {
			m.logger.Info(ctx, "server reachable")
		} else {
			m.logger.Info(ctx, "server unreachable", "error", err)
		}
		m.mu.Lock()
		listeners := append([]func(bool){}, m.listeners...)
		m.mu.Unlock()
		for _, fn := range listeners {
			fn(online)
		}
	}
	return online
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

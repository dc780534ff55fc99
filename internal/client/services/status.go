package services

import (
	"github.com/dmitrijs2005/daybook/internal/client/models"
)

// StatusListener is called on every sync status transition. err is set
// only for StatusError.
type StatusListener func(status models.SyncStatus, err error)

func (s *EnvelopeService) setStatus(st models.SyncStatus, err error) {
	s.statusMu.Lock()
	s.status = st
	s.lastErr = err
	subs := make([]StatusListener, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.statusMu.Unlock()

	for _, fn := range subs {
		fn(st, err)
	}
}

// GetSyncStatus returns the current status and, for StatusError, the
// error of the last pass.
func (s *EnvelopeService) GetSyncStatus() (models.SyncStatus, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status, s.lastErr
}

// OnSyncStatusChange registers fn and returns a function that removes it.
func (s *EnvelopeService) OnSyncStatusChange(fn StatusListener) (unsubscribe func()) {
	s.statusMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.statusMu.Unlock()

	return func() {
		s.statusMu.Lock()
		delete(s.subs, id)
		s.statusMu.Unlock()
	}
}

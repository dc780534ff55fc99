package models

// SyncStatus is the engine-wide sync state reported to observers.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusOffline SyncStatus = "offline"
	StatusError   SyncStatus = "error"
)

// DocumentState tells callers how to present a key that may be missing
// locally.
type DocumentState int

const (
	// DocumentLocal means the envelope is available in the local store.
	DocumentLocal DocumentState = iota
	// DocumentRemoteOnly means the remote has the key but it is not cached
	// locally and cannot be fetched right now.
	DocumentRemoteOnly
	// DocumentNew means neither side knows the key.
	DocumentNew
)

func (s DocumentState) String() string {
	switch s {
	case DocumentLocal:
		return "local"
	case DocumentRemoteOnly:
		return "remote-only"
	default:
		return "new"
	}
}

// OpenResult is returned by Open.
type OpenResult struct {
	Envelope *Envelope
	State    DocumentState
}

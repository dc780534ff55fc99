// Package models defines the client-side data model of the sync engine:
// encrypted records, their sync bookkeeping and the envelopes exchanged
// with the remote.
package models

import (
	"time"
)

// RecordVersion is the on-disk record format version.
const RecordVersion = 1

// Record is the encrypted body of a document as kept in the local store.
// It never carries plaintext.
type Record struct {
	Version    int
	Key        string
	KeyID      string
	Ciphertext []byte
	Nonce      []byte
	// UpdatedAt is the local write time.
	UpdatedAt time.Time
}

// Meta is the sync bookkeeping kept next to every Record.
type Meta struct {
	Key             string
	Revision        int64
	RemoteID        string
	ServerUpdatedAt *time.Time
	LastSyncedAt    *time.Time
	PendingOp       PendingOp
}

// HasRemote reports whether the key was ever confirmed by the remote.
func (m *Meta) HasRemote() bool {
	return m.RemoteID != "" || m.ServerUpdatedAt != nil
}

// Envelope joins a Record with its Meta. It is what gets pushed to and
// pulled from the remote.
type Envelope struct {
	Key             string
	Ciphertext      []byte
	Nonce           []byte
	KeyID           string
	UpdatedAt       time.Time
	Revision        int64
	ServerUpdatedAt *time.Time
	Deleted         bool
}

// NewEnvelope builds the envelope view of a stored record.
func NewEnvelope(r *Record, m *Meta) *Envelope {
	return &Envelope{
		Key:             r.Key,
		Ciphertext:      r.Ciphertext,
		Nonce:           r.Nonce,
		KeyID:           r.KeyID,
		UpdatedAt:       r.UpdatedAt,
		Revision:        m.Revision,
		ServerUpdatedAt: m.ServerUpdatedAt,
	}
}

// Record returns the record part of the envelope.
func (e *Envelope) Record() *Record {
	return &Record{
		Version:    RecordVersion,
		Key:        e.Key,
		KeyID:      e.KeyID,
		Ciphertext: e.Ciphertext,
		Nonce:      e.Nonce,
		UpdatedAt:  e.UpdatedAt,
	}
}

// RemoteRecord is the remote's view of an envelope. ID is assigned by the
// remote on first insert and never changes afterwards.
type RemoteRecord struct {
	ID string
	Envelope
	// Image is set for records of the image collection.
	Image *ImageAttrs
}

// PushPayload is a conditional write. When ID is set the remote accepts it
// only if its serverUpdatedAt still equals Envelope.ServerUpdatedAt.
type PushPayload struct {
	ID string
	Envelope
	Image *ImageAttrs
}

// DeleteRequest identifies a remote record to tombstone.
type DeleteRequest struct {
	ID  string
	Key string
}

// SyncState is the persisted pull position.
type SyncState struct {
	Cursor *string
}

// CursorFor encodes a serverUpdatedAt value as a pull cursor.
func CursorFor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseCursor decodes a cursor produced by CursorFor.
func ParseCursor(c string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, c)
}

// SameInstant compares two optional timestamps.
func SameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

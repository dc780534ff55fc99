// Package common defines shared constants and sentinel errors used across
// client and server layers of daybook. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrCorrupt        = errors.New("corrupt record")
	ErrIO             = errors.New("storage i/o failure")
	ErrStorageUnknown = errors.New("unknown storage error")

	// Crypto errors.
	ErrKeyMissing    = errors.New("encryption key missing")
	ErrEncryptFailed = errors.New("encrypt failed")
	ErrDecryptFailed = errors.New("decrypt failed")
	ErrCryptoUnknown = errors.New("unknown crypto error")

	// Sync errors.
	ErrOffline        = errors.New("offline")
	ErrConflict       = errors.New("conflict")
	ErrRemoteRejected = errors.New("remote rejected request")
	ErrSyncUnknown    = errors.New("unknown sync error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")

	// Request errors returned by the server.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StorageError reports a failed local store operation.
type StorageError struct {
	Kind error
	Op   string
	Key  string
	Err  error
}

func (e *StorageError) Error() string {
	msg := "storage " + e.Op
	if e.Key != "" {
		msg += " [" + e.Key + "]"
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() []error { return []error{e.Kind, e.Err} }

// CryptoError reports a failed encryption or decryption.
type CryptoError struct {
	Kind  error
	KeyID string
	Err   error
}

func (e *CryptoError) Error() string {
	msg := e.Kind.Error()
	if e.KeyID != "" {
		msg += " (key " + e.KeyID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CryptoError) Unwrap() []error { return []error{e.Kind, e.Err} }

// SyncError reports a failed gateway call.
type SyncError struct {
	Kind error
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	msg := "sync " + e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() []error { return []error{e.Kind, e.Err} }

// NewStorageError wraps err as a storage failure of the given kind.
func NewStorageError(kind error, op, key string, err error) error {
	return &StorageError{Kind: kind, Op: op, Key: key, Err: err}
}

// NewCryptoError wraps err as a crypto failure of the given kind.
func NewCryptoError(kind error, keyID string, err error) error {
	return &CryptoError{Kind: kind, KeyID: keyID, Err: err}
}

// NewSyncError wraps err as a sync failure of the given kind.
func NewSyncError(kind error, op string, err error) error {
	return &SyncError{Kind: kind, Op: op, Err: err}
}

// SyncKind returns the sync sentinel err matches, or ErrSyncUnknown.
func SyncKind(err error) error {
	for _, k := range []error{ErrOffline, ErrConflict, ErrRemoteRejected} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrSyncUnknown
}

// StorageKind returns the storage sentinel err matches, or ErrStorageUnknown.
func StorageKind(err error) error {
	for _, k := range []error{ErrNotFound, ErrCorrupt, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrStorageUnknown
}

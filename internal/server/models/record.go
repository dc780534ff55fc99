// Package models holds the server-side persistence types.
package models

import "time"

// Record is one row of the records table: an encrypted envelope owned by a
// user within a collection. The server never sees plaintext.
type Record struct {
	ID              string
	UserID          string
	Collection      string
	Key             string
	KeyID           string
	Ciphertext      []byte
	Nonce           []byte
	UpdatedAt       time.Time
	Revision        int64
	ServerUpdatedAt time.Time
	Deleted         bool
	// Attributes is a raw JSON document (image metadata) or nil.
	Attributes []byte
}

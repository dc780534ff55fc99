// Package keyring resolves key identifiers to encryption keys.
package keyring

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
)

const (
	saltKey     = "keyring_salt"
	verifierKey = "keyring_verifier"

	verifierInfo = "daybook/verifier/v1"
	saltInfo     = "daybook/salt/v1:"
)

var (
	// ErrWrongPassphrase is returned when the passphrase does not match the
	// verifier stored on first unlock.
	ErrWrongPassphrase = errors.New("wrong passphrase")
	// ErrSaltMismatch is returned when the local store was set up with a
	// different salt than the one requested.
	ErrSaltMismatch = errors.New("local store belongs to another account")
)

// Keyring maps key ids to keys. GetKey returns nil for unknown ids.
type Keyring interface {
	ActiveKeyID() string
	GetKey(keyID string) []byte
}

// Static is a Keyring over a fixed set of keys.
type Static struct {
	active string
	keys   map[string][]byte
}

// NewStatic returns a keyring with a single active key.
func NewStatic(keyID string, key []byte) *Static {
	return &Static{active: keyID, keys: map[string][]byte{keyID: key}}
}

// Add registers an additional (non-active) key.
func (s *Static) Add(keyID string, key []byte) {
	s.keys[keyID] = key
}

func (s *Static) ActiveKeyID() string { return s.active }

func (s *Static) GetKey(keyID string) []byte {
	return s.keys[keyID]
}

// Wipe zeroes all key material.
func (s *Static) Wipe() {
	for _, k := range s.keys {
		common.WipeByteArray(k)
	}
}

// AccountSalt is the salt shared by every device of one account, so that
// they all derive the same key from the same passphrase.
func AccountSalt(accountID string) []byte {
	sum := sha256.Sum256([]byte(saltInfo + accountID))
	return sum[:]
}

// FromPassphrase derives the master key from passphrase and the salt kept
// in the local metadata table. On first use the salt is want, or random
// bytes if want is nil, and a verifier is stored; later calls check the
// passphrase against it.
func FromPassphrase(ctx context.Context, repo metadata.Repository, passphrase, want []byte) (*Static, error) {
	salt, err := repo.Get(ctx, saltKey)
	if err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}

	first := salt == nil
	switch {
	case first && want != nil:
		salt = want
	case first:
		salt = common.GenerateRandByteArray(32)
	case want != nil && subtle.ConstantTimeCompare(salt, want) == 0:
		return nil, ErrSaltMismatch
	}

	master := cryptox.DeriveMasterKey(passphrase, salt)
	verifier, err := makeVerifier(master)
	if err != nil {
		return nil, err
	}

	if first {
		if err := repo.Set(ctx, saltKey, salt); err != nil {
			return nil, fmt.Errorf("save salt: %w", err)
		}
		if err := repo.Set(ctx, verifierKey, verifier); err != nil {
			return nil, fmt.Errorf("save verifier: %w", err)
		}
	} else {
		saved, err := repo.Get(ctx, verifierKey)
		if err != nil {
			return nil, fmt.Errorf("load verifier: %w", err)
		}
		if subtle.ConstantTimeCompare(saved, verifier) == 0 {
			common.WipeByteArray(master)
			return nil, ErrWrongPassphrase
		}
	}

	return NewStatic(KeyID(verifier), master), nil
}

func makeVerifier(master []byte) ([]byte, error) {
	sub, err := cryptox.DeriveSubkey(master, verifierInfo)
	if err != nil {
		return nil, common.NewCryptoError(common.ErrCryptoUnknown, "", err)
	}
	return []byte(cryptox.HashHex(sub)), nil
}

// KeyID derives a short public identifier from a verifier.
func KeyID(verifier []byte) string {
	return "k1-" + string(verifier[:16])
}

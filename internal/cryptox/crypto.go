// Package cryptox wraps the primitives used for end-to-end encryption:
// AES-GCM sealing, argon2id passphrase stretching, HKDF subkeys and
// SHA-256 content hashes.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var ErrInvalidKey = errors.New("invalid key length")

// randReader is a test seam for the nonce source.
var randReader io.Reader = rand.Reader

// DeriveMasterKey stretches a passphrase into a 32-byte key with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	x := argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
	return x
}

// DeriveSubkey derives a purpose-bound key from base with HKDF-SHA256.
// Different info strings yield independent keys; base cannot be recovered
// from the result.
func DeriveSubkey(base []byte, info string) ([]byte, error) {
	if len(base) != KeySize {
		return nil, ErrInvalidKey
	}
	out := make([]byte, KeySize)
	r := hkdf.New(sha256.New, base, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key. A fresh nonce of the
// cipher's nonce size is drawn for every call and returned separately.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open reverses Seal. It fails if the key, nonce or ciphertext was altered.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, errors.New("invalid nonce length")
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// HashHex returns the lowercase hex SHA-256 of b.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

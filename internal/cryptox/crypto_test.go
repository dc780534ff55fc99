package cryptox

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, KeySize)
}

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	// snapshot
	expectedHex := "9290403300158e19f27e48e7087f7383b03065bf5b25ef23ebc40229616cd8b3"
	if hex.EncodeToString(key1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(key1))
	}
}

func TestDeriveMasterKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveMasterKey(password, []byte("salt-1"))
	key2 := DeriveMasterKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey()
	plain := []byte("<p>dear diary</p>")

	ct, nonce, err := Seal(plain, key)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	assert.NotEqual(t, plain, ct)

	got, err := Open(ct, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key := testKey()
	_, n1, err := Seal([]byte("x"), key)
	require.NoError(t, err)
	_, n2, err := Seal([]byte("x"), key)
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
}

func TestSeal_RandFailure(t *testing.T) {
	orig := randReader
	randReader = failingReader{}
	t.Cleanup(func() { randReader = orig })

	_, _, err := Seal([]byte("x"), testKey())
	require.Error(t, err)
}

func TestOpen_Failures(t *testing.T) {
	key := testKey()
	ct, nonce, err := Seal([]byte("secret"), key)
	require.NoError(t, err)

	other := bytes.Repeat([]byte{0x01}, KeySize)
	_, err = Open(ct, nonce, other)
	assert.Error(t, err, "wrong key")

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xff
	_, err = Open(tampered, nonce, key)
	assert.Error(t, err, "tampered ciphertext")

	_, err = Open(ct, nonce[:4], key)
	assert.Error(t, err, "short nonce")

	_, err = Open(ct, nonce, []byte("short"))
	assert.Error(t, err, "bad key size")
}

func TestDeriveSubkey(t *testing.T) {
	base := testKey()

	a, err := DeriveSubkey(base, "purpose/a")
	require.NoError(t, err)
	a2, err := DeriveSubkey(base, "purpose/a")
	require.NoError(t, err)
	b, err := DeriveSubkey(base, "purpose/b")
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.Equal(t, a, a2)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, base, a)

	_, err = DeriveSubkey([]byte("short"), "x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestHashHex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashHex(nil))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

// Package e2ee encrypts note content and image attachments before they
// reach the local store or the remote. Keys are resolved through a
// keyring.Keyring; failures are reported as common.CryptoError.
package e2ee

import (
	"github.com/dmitrijs2005/daybook/internal/client/keyring"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

// attachmentInfo binds the attachment subkey to its purpose.
const attachmentInfo = "daybook/attachment/v1"

// Sealed is an encrypted payload together with the key that sealed it.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	KeyID      string
}

// SealedBlob is an encrypted attachment.
type SealedBlob struct {
	Sealed
	// ContentHash is the hex SHA-256 of the plaintext.
	ContentHash string
	Size        int64
}

type Service struct {
	keys   keyring.Keyring
	policy *bluemonday.Policy
}

func New(keys keyring.Keyring) *Service {
	return &Service{
		keys:   keys,
		policy: bluemonday.UGCPolicy(),
	}
}

// Sanitize strips scripts and disallowed attributes from rich text.
func (s *Service) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

func (s *Service) resolve(keyID string) (string, []byte, error) {
	if keyID == "" {
		keyID = s.keys.ActiveKeyID()
	}
	key := s.keys.GetKey(keyID)
	if key == nil {
		return keyID, nil, common.NewCryptoError(common.ErrKeyMissing, keyID, nil)
	}
	return keyID, key, nil
}

// EncryptContent sanitizes and encrypts note content. An empty keyID
// selects the active key.
func (s *Service) EncryptContent(plaintext string, keyID string) (*Sealed, error) {
	keyID, key, err := s.resolve(keyID)
	if err != nil {
		return nil, err
	}

	ct, nonce, err := cryptox.Seal([]byte(s.Sanitize(plaintext)), key)
	if err != nil {
		return nil, common.NewCryptoError(common.ErrEncryptFailed, keyID, err)
	}
	return &Sealed{Ciphertext: ct, Nonce: nonce, KeyID: keyID}, nil
}

// DecryptRecord returns the plaintext of a note record. Records written
// without a key id are opened with the active key.
func (s *Service) DecryptRecord(rec *models.Record) (string, error) {
	keyID, key, err := s.resolve(rec.KeyID)
	if err != nil {
		return "", err
	}
	b, err := cryptox.Open(rec.Ciphertext, rec.Nonce, key)
	if err != nil {
		return "", common.NewCryptoError(common.ErrDecryptFailed, keyID, err)
	}
	return string(b), nil
}

func (s *Service) blobKey(keyID string) (string, []byte, error) {
	keyID, base, err := s.resolve(keyID)
	if err != nil {
		return keyID, nil, err
	}
	sub, err := cryptox.DeriveSubkey(base, attachmentInfo)
	if err != nil {
		return keyID, nil, common.NewCryptoError(common.ErrCryptoUnknown, keyID, err)
	}
	return keyID, sub, nil
}

// EncryptBlob encrypts attachment bytes under the attachment subkey.
func (s *Service) EncryptBlob(data []byte, keyID string) (*SealedBlob, error) {
	keyID, key, err := s.blobKey(keyID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ct, nonce, err := cryptox.Seal(data, key)
	if err != nil {
		return nil, common.NewCryptoError(common.ErrEncryptFailed, keyID, err)
	}
	return &SealedBlob{
		Sealed:      Sealed{Ciphertext: ct, Nonce: nonce, KeyID: keyID},
		ContentHash: cryptox.HashHex(data),
		Size:        int64(len(data)),
	}, nil
}

// DecryptBlob reverses EncryptBlob. When mimeType is set the decrypted
// bytes must sniff as that type.
func (s *Service) DecryptBlob(rec *models.Record, mimeType string) ([]byte, error) {
	keyID, key, err := s.blobKey(rec.KeyID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	b, err := cryptox.Open(rec.Ciphertext, rec.Nonce, key)
	if err != nil {
		return nil, common.NewCryptoError(common.ErrDecryptFailed, keyID, err)
	}
	if mimeType != "" && !mimetype.Detect(b).Is(mimeType) {
		return nil, common.NewCryptoError(common.ErrDecryptFailed, keyID, errMimeMismatch(mimeType))
	}
	return b, nil
}

type errMimeMismatch string

func (e errMimeMismatch) Error() string {
	return "decrypted content is not " + string(e)
}

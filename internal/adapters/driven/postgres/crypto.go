package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// secretVersion is the leading byte of every sealed blob
	secretVersion = 0x01

	nonceSize = 12
	keySize   = 32

	credentialKeySalt = "adsync-core/credentials/v1"
	credentialKeyInfo = "connection credential AES-256-GCM key"
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the sealed blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported secret blob version")

	// ErrDecryptionFailed is returned on a wrong key or corrupted data.
	ErrDecryptionFailed = errors.New("failed to decrypt secret blob")

	// ErrEmptySecret is returned when no key material is configured.
	ErrEmptySecret = errors.New("credential secret is empty")
)

// DeriveCredentialKey stretches an operator secret into an AES-256 key with
// HKDF-SHA256. The same secret always yields the same key.
func DeriveCredentialKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	r := hkdf.New(sha256.New, []byte(secret), []byte(credentialKeySalt), []byte(credentialKeyInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("read hkdf output: %w", err)
	}
	return key, nil
}

// SecretEncryptor seals connection credentials with AES-256-GCM.
// Blob layout: version(1) || nonce(12) || ciphertext(N)
type SecretEncryptor struct {
	gcm cipher.AEAD
}

// NewSecretEncryptor creates an encryptor with the given 32-byte key
func NewSecretEncryptor(key []byte) (*SecretEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &SecretEncryptor{gcm: gcm}, nil
}

// NewSecretEncryptorFromSecret derives the key from secret and builds an encryptor
func NewSecretEncryptorFromSecret(secret string) (*SecretEncryptor, error) {
	key, err := DeriveCredentialKey(secret)
	if err != nil {
		return nil, err
	}
	return NewSecretEncryptor(key)
}

// Seal encrypts plaintext into a versioned blob. The connection ID is bound
// as additional data so a blob cannot be moved to another row.
func (e *SecretEncryptor) Seal(plaintext, boundTo string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), []byte(boundTo))

	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = secretVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)
	return blob, nil
}

// Open decrypts a blob produced by Seal for the same boundTo value
func (e *SecretEncryptor) Open(blob []byte, boundTo string) (string, error) {
	if len(blob) < 1+nonceSize+e.gcm.Overhead() {
		return "", ErrInvalidBlobSize
	}
	if blob[0] != secretVersion {
		return "", fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := e.gcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], []byte(boundTo))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

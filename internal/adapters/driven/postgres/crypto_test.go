package postgres

import (
	"bytes"
	"errors"
	"testing"
)

func testEncryptor(t *testing.T) *SecretEncryptor {
	t.Helper()
	enc, err := NewSecretEncryptor([]byte("01234567890123456789012345678901"))
	if err != nil {
		t.Fatalf("NewSecretEncryptor: %v", err)
	}
	return enc
}

func TestSecretEncryptor_RoundTrip(t *testing.T) {
	enc := testEncryptor(t)

	blob, err := enc.Seal("EAAB-long-lived-token", "conn-1")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(blob) < 1+nonceSize {
		t.Fatalf("blob too short: %d bytes", len(blob))
	}
	if blob[0] != secretVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], secretVersion)
	}
	if bytes.Contains(blob, []byte("EAAB-long-lived-token")) {
		t.Error("blob contains the plaintext")
	}

	got, err := enc.Open(blob, "conn-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "EAAB-long-lived-token" {
		t.Errorf("Open: got %q", got)
	}
}

func TestSecretEncryptor_NonceIsRandom(t *testing.T) {
	enc := testEncryptor(t)

	a, _ := enc.Seal("same", "conn-1")
	b, _ := enc.Seal("same", "conn-1")
	if bytes.Equal(a, b) {
		t.Error("two seals of the same value produced identical blobs")
	}
}

func TestSecretEncryptor_BoundToConnection(t *testing.T) {
	enc := testEncryptor(t)

	blob, err := enc.Seal("token", "conn-1")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := enc.Open(blob, "conn-2"); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Open with another connection ID: got %v, want ErrDecryptionFailed", err)
	}
}

func TestSecretEncryptor_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"too short", 16},
		{"too long", 64},
		{"empty", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSecretEncryptor(make([]byte, tt.keySize))
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("got %v, want ErrInvalidKeySize", err)
			}
		})
	}
}

func TestSecretEncryptor_OpenRejectsBadBlobs(t *testing.T) {
	enc := testEncryptor(t)
	blob, err := enc.Seal("token", "conn-1")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	wrongVersion := append([]byte(nil), blob...)
	wrongVersion[0] = 0x02

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"empty", nil, ErrInvalidBlobSize},
		{"truncated", blob[:nonceSize], ErrInvalidBlobSize},
		{"wrong version", wrongVersion, ErrUnsupportedVersion},
		{"tampered", tampered, ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Open(tt.blob, "conn-1"); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSecretEncryptor_WrongKey(t *testing.T) {
	enc := testEncryptor(t)
	blob, _ := enc.Seal("token", "conn-1")

	other, err := NewSecretEncryptor([]byte("abcdefghijklmnopqrstuvwxyz012345"))
	if err != nil {
		t.Fatalf("NewSecretEncryptor: %v", err)
	}
	if _, err := other.Open(blob, "conn-1"); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestDeriveCredentialKey(t *testing.T) {
	a, err := DeriveCredentialKey("operator-secret")
	if err != nil {
		t.Fatalf("DeriveCredentialKey: %v", err)
	}
	if len(a) != keySize {
		t.Fatalf("key length: got %d, want %d", len(a), keySize)
	}

	b, _ := DeriveCredentialKey("operator-secret")
	if !bytes.Equal(a, b) {
		t.Error("derivation is not deterministic")
	}

	c, _ := DeriveCredentialKey("another-secret")
	if bytes.Equal(a, c) {
		t.Error("different secrets derived the same key")
	}

	if _, err := DeriveCredentialKey(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("empty secret: got %v, want ErrEmptySecret", err)
	}
}

func TestNewSecretEncryptorFromSecret(t *testing.T) {
	enc, err := NewSecretEncryptorFromSecret("operator-secret")
	if err != nil {
		t.Fatalf("NewSecretEncryptorFromSecret: %v", err)
	}
	blob, _ := enc.Seal("token", "conn-1")

	again, _ := NewSecretEncryptorFromSecret("operator-secret")
	got, err := again.Open(blob, "conn-1")
	if err != nil || got != "token" {
		t.Errorf("Open with re-derived key: got %q, %v", got, err)
	}
}

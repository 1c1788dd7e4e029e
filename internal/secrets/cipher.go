// Package secrets provides encryption for database connection credentials.
//
// Credentials are encrypted with age using a scrypt recipient derived
// from a process-wide hex-encoded key supplied via configuration. The
// age payload is authenticated, so tampered blobs fail decryption.
//
// Credentials are stored encrypted at rest and only decrypted in memory
// for privileged callers.
package secrets

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/dbaasd/dbaasd/internal/models"
)

const (
	// keyHexLength is the required length of the configured key: 32
	// random bytes, hex encoded.
	keyHexLength = 64

	// scryptWorkFactor is the log2 scrypt cost passed to age. The
	// configured key is already 256-bit random, not a human passphrase.
	scryptWorkFactor = 10
)

// Cipher encrypts and decrypts credential bundles with a process-wide
// symmetric key. A missing or malformed key is a configuration error
// surfaced at construction time, never per call.
type Cipher struct {
	passphrase string
}

// NewCipher validates the hex-encoded key and returns a ready cipher.
func NewCipher(hexKey string) (*Cipher, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, errors.New("encryption key is required")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(raw)*2 != keyHexLength {
		return nil, fmt.Errorf("encryption key must be %d hex characters", keyHexLength)
	}
	return &Cipher{passphrase: hexKey}, nil
}

// Encrypt serializes the credentials and encrypts them into an opaque
// blob suitable for storage.
func (c *Cipher) Encrypt(creds models.Credentials) ([]byte, error) {
	if c == nil {
		return nil, errors.New("cipher is nil")
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}
	recipient, err := age.NewScryptRecipient(c.passphrase)
	if err != nil {
		return nil, fmt.Errorf("build recipient: %w", err)
	}
	recipient.SetWorkFactor(scryptWorkFactor)
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("write credentials: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("seal credentials: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt reverses Encrypt. Fails on a wrong key or a tampered blob.
func (c *Cipher) Decrypt(blob []byte) (models.Credentials, error) {
	if c == nil {
		return models.Credentials{}, errors.New("cipher is nil")
	}
	if len(blob) == 0 {
		return models.Credentials{}, errors.New("credentials blob is empty")
	}
	identity, err := age.NewScryptIdentity(c.passphrase)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("build identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(blob), identity)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("decrypt credentials: %w", err)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var creds models.Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return models.Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

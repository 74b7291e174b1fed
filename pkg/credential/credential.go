// Package credential stores per-service upstream login credentials with the
// password encrypted at rest, keyed by a PBKDF2-HMAC-SHA256 key derived from
// a process-wide master secret (§3 Credential, §9 key management).
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	keyLength        = 32 // AES-256
)

// envelope is the plaintext structure encrypted into the ciphertext column,
// matching the source's JSON-envelope-then-encrypt approach.
type envelope struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Cipher derives an AES-256-GCM key via PBKDF2-HMAC-SHA256 and
// encrypts/decrypts credential envelopes. The derivation (SHA256, 100000
// iterations, 32-byte key) is preserved exactly per §9; the at-rest
// ciphertext format is AES-GCM rather than the source's Fernet scheme — see
// the design ledger for why byte-for-byte Fernet compatibility was not carried forward.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives the encryption key from masterSecret and salt.
func NewCipher(masterSecret, salt string) (*Cipher, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("credential master secret is not configured")
	}

	key := pbkdf2.Key([]byte(masterSecret), []byte(salt), pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM mode: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Encrypt seals (username, password) into an opaque base64 ciphertext.
func (c *Cipher) Encrypt(username, password string) (string, error) {
	plaintext, err := json.Marshal(envelope{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshaling credential envelope: %w", err)
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext and returns the plaintext username/password. The
// plaintext exists only in memory for the caller's immediate use (§3
// Credential invariant).
func (c *Cipher) Decrypt(ciphertext string) (username, password string, err error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", "", fmt.Errorf("decrypting credential: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return "", "", fmt.Errorf("unmarshaling credential envelope: %w", err)
	}
	return env.Username, env.Password, nil
}

// Credential is the service_name-keyed row described in §3. Password holds
// the plaintext password once decrypted for immediate use by a collector —
// it is never the on-disk representation.
type Credential struct {
	ServiceName        string
	Username           string
	Password           string
	Enabled            bool
	CollectionInterval int
	LastCollection     *time.Time
}

// Package pgstore is the pgx/v5 implementation of credential storage,
// transparently decrypting the password column on read (§9 key management).
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/blacklistguard/pkg/credential"
)

// Store is a pgxpool-backed credential store. Passwords are always stored
// encrypted; cipher performs the PBKDF2-derived AES-GCM seal/open.
type Store struct {
	pool   *pgxpool.Pool
	cipher *credential.Cipher
}

// NewStore wraps pool and cipher.
func NewStore(pool *pgxpool.Pool, cipher *credential.Cipher) *Store {
	return &Store{pool: pool, cipher: cipher}
}

// Get returns the decrypted username/password for serviceName, or nil if no
// row exists. The decrypted password exists only in the returned struct and
// the caller's stack; it is never logged or re-persisted in the clear.
func (s *Store) Get(ctx context.Context, serviceName string) (*credential.Credential, error) {
	var (
		username, ciphertext string
		encrypted, enabled   bool
		interval             int
		lastCollection       *time.Time
	)

	err := s.pool.QueryRow(ctx, `
		SELECT username, password, encrypted, enabled, collection_interval, last_collection
		FROM collection_credentials
		WHERE service_name = $1
	`, serviceName).Scan(&username, &ciphertext, &encrypted, &enabled, &interval, &lastCollection)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting credential for %s: %w", serviceName, err)
	}

	password := ciphertext
	if encrypted && ciphertext != "" {
		_, decrypted, decErr := s.cipher.Decrypt(ciphertext)
		if decErr != nil {
			return nil, fmt.Errorf("decrypting credential for %s: %w", serviceName, decErr)
		}
		password = decrypted
	}

	return &credential.Credential{
		ServiceName:        serviceName,
		Username:           username,
		Password:           password,
		Enabled:            enabled,
		CollectionInterval: interval,
		LastCollection:     lastCollection,
	}, nil
}

// Upsert stores username/password for serviceName, always encrypting the
// password before it touches the database.
func (s *Store) Upsert(ctx context.Context, serviceName, username, password string, enabled bool, intervalSeconds int) error {
	ciphertext, err := s.cipher.Encrypt(username, password)
	if err != nil {
		return fmt.Errorf("encrypting credential for %s: %w", serviceName, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO collection_credentials
			(service_name, username, password, encrypted, enabled, collection_interval, created_at, updated_at)
		VALUES ($1, $2, $3, true, $4, $5, now(), now())
		ON CONFLICT (service_name) DO UPDATE SET
			username            = EXCLUDED.username,
			password            = EXCLUDED.password,
			encrypted           = true,
			enabled             = EXCLUDED.enabled,
			collection_interval = EXCLUDED.collection_interval,
			updated_at          = now()
	`, serviceName, username, ciphertext, enabled, intervalSeconds)
	if err != nil {
		return fmt.Errorf("upserting credential for %s: %w", serviceName, err)
	}
	return nil
}

// UpdateSettings changes enabled/interval without requiring the caller to
// resupply the password (§3 Credential settings-only update path).
func (s *Store) UpdateSettings(ctx context.Context, serviceName string, enabled bool, intervalSeconds int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE collection_credentials
		SET enabled = $2, collection_interval = $3, updated_at = now()
		WHERE service_name = $1
	`, serviceName, enabled, intervalSeconds)
	if err != nil {
		return fmt.Errorf("updating credential settings for %s: %w", serviceName, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TouchLastCollection records that a collection attempt just ran.
func (s *Store) TouchLastCollection(ctx context.Context, serviceName string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE collection_credentials SET last_collection = $2 WHERE service_name = $1`,
		serviceName, at)
	if err != nil {
		return fmt.Errorf("touching last_collection for %s: %w", serviceName, err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SetWithTTL stores a value under key, replacing any existing entry.
// A ttl of zero or less stores the entry without expiry.
func (d *Database) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	encryptedValue, err := d.encryptor.EncryptIfEnabled(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt value: %w", err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl).UTC()
		expiresAt = &t
	}

	query := `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`

	return retryableKVOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, key, encryptedValue, expiresAt)
		if err != nil {
			return fmt.Errorf("failed to save entry: %w", err)
		}
		return nil
	}, "set")
}

// Get returns the value stored under key. An expired entry is treated as
// absent; expiry is passive, no deletion call is needed.
func (d *Database) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value, expires_at FROM kv_entries WHERE key = ?
	`

	var encryptedValue string
	var expiresAt sql.NullTime

	err := d.db.QueryRowContext(ctx, query, key).Scan(&encryptedValue, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get entry: %w", err)
	}

	if expiresAt.Valid && !expiresAt.Time.After(time.Now().UTC()) {
		return "", false, nil
	}

	value, err := d.encryptor.DecryptIfEnabled(encryptedValue)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt value: %w", err)
	}

	return value, true, nil
}

// Delete removes the entry stored under key. Deleting an absent key is a
// silent no-op.
func (d *Database) Delete(ctx context.Context, key string) error {
	return retryableKVOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		return nil
	}, "delete")
}

// CleanupExpired removes entries whose expiry has elapsed and returns the
// number of rows purged.
func (d *Database) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned entries: %w", err)
	}
	return rows, nil
}

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableKVOperation_SucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := retryableKVOperation(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	}, "set")

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryableKVOperation_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	err := retryableKVOperation(context.Background(), func() error {
		attempts++
		return errors.New("UNIQUE constraint failed")
	}, "set")

	assert.ErrorContains(t, err, "non-retryable")
	assert.Equal(t, 1, attempts)
}

func TestRetryableKVOperation_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := retryableKVOperation(context.Background(), func() error {
		attempts++
		return errors.New("SQLITE_BUSY")
	}, "delete")

	assert.ErrorContains(t, err, "failed after")
	assert.Greater(t, attempts, 1)
}

func TestRetryableKVOperation_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryableKVOperation(ctx, func() error {
		return errors.New("database is locked")
	}, "set")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableDBError(t *testing.T) {
	assert.False(t, isRetryableDBError(nil))
	assert.True(t, isRetryableDBError(errors.New("database is locked")))
	assert.True(t, isRetryableDBError(errors.New("disk I/O error")))
	assert.False(t, isRetryableDBError(errors.New("no such table: kv_entries")))
}

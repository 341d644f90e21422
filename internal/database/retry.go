package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
)

// retryableKVOperation executes a store operation with bounded retries for
// transient sqlite failures.
func retryableKVOperation(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error

	maxAttempts := constants.DefaultDatabaseRetryAttempts
	initialBackoff := time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryableDBError(err) {
			return fmt.Errorf("%s failed (non-retryable): %w", operationName, err)
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * initialBackoff
		if backoff > time.Duration(constants.DefaultMaxBackoffMs)*time.Millisecond {
			backoff = time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Lock contention and busy handlers are transient
	if strings.Contains(errStr, "database is locked") {
		return true
	}
	if strings.Contains(errStr, "database table is locked") {
		return true
	}
	if strings.Contains(errStr, "disk I/O error") {
		return true
	}
	if strings.Contains(errStr, "SQLITE_BUSY") {
		return true
	}

	return false
}

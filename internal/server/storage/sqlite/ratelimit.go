package sqlite

import (
	"context"
	"fmt"
	"time"
)

// Increment atomically increments the fixed-window counter for key.
// A missing or expired row restarts at 1 with a fresh window; the whole
// statement is a single UPSERT, so concurrent requests cannot both read a stale count.
func (s *Storage) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()
	nowMs := toMillis(now)
	expiresMs := toMillis(now.Add(window))

	query := `
		INSERT INTO rate_limits (key, count, expires_at)
		VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN rate_limits.expires_at <= ? THEN 1 ELSE rate_limits.count + 1 END,
			expires_at = CASE WHEN rate_limits.expires_at <= ? THEN excluded.expires_at ELSE rate_limits.expires_at END
		RETURNING count, expires_at
	`

	var (
		count     int64
		expiresAt int64
	)

	if err := s.db.QueryRowContext(ctx, query, key, expiresMs, nowMs, nowMs).Scan(&count, &expiresAt); err != nil {
		return 0, 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	ttl := time.Duration(expiresAt-nowMs) * time.Millisecond
	return count, ttl, nil
}

// DeleteExpiredCounters removes counters whose window has ended
// Returns number of deleted rows
func (s *Storage) DeleteExpiredCounters(ctx context.Context) (int, error) {
	rows, err := s.exec(ctx, `DELETE FROM rate_limits WHERE expires_at <= ?`, toMillis(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired counters: %w", err)
	}

	return int(rows), nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// MarkProcessed records (or overwrites) a processed log entry.
func (s *Store) MarkProcessed(ctx context.Context, entry LogEntry) error {
	if entry.Key == "" {
		return errors.New("processed entry key is empty")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO processed_log (item_key, display_name, score, reason, processed_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(item_key) DO UPDATE SET
            display_name = excluded.display_name, score = excluded.score,
            reason = excluded.reason, processed_at = excluded.processed_at`,
		entry.Key, nullableString(entry.DisplayName), entry.Score, nullableString(entry.Reason), s.timestamp())
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", entry.Key, err)
	}
	return nil
}

// RemoveProcessed deletes a processed log entry.
func (s *Store) RemoveProcessed(ctx context.Context, key string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM processed_log WHERE item_key = ?`, key); err != nil {
		return fmt.Errorf("remove processed %s: %w", key, err)
	}
	return nil
}

// GetProcessed returns the processed entry for key, or nil.
func (s *Store) GetProcessed(ctx context.Context, key string) (*LogEntry, error) {
	var (
		entry  LogEntry
		name   sql.NullString
		reason sql.NullString
		atRaw  sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT item_key, display_name, score, reason, processed_at FROM processed_log WHERE item_key = ?`, key,
	).Scan(&entry.Key, &name, &entry.Score, &reason, &atRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processed %s: %w", key, err)
	}
	entry.DisplayName = name.String
	entry.Reason = reason.String
	entry.At = parseNullTime(atRaw)
	return &entry, nil
}

// ProcessedKeys returns up to limit keys, most recently processed first.
func (s *Store) ProcessedKeys(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT item_key FROM processed_log ORDER BY processed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// MarkFailed records (or overwrites) a failed log entry.
func (s *Store) MarkFailed(ctx context.Context, entry LogEntry) error {
	if entry.Key == "" {
		return errors.New("failed entry key is empty")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO failed_log (item_key, display_name, reason, failed_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(item_key) DO UPDATE SET
            display_name = excluded.display_name, reason = excluded.reason, failed_at = excluded.failed_at`,
		entry.Key, nullableString(entry.DisplayName), nullableString(entry.Reason), s.timestamp())
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", entry.Key, err)
	}
	return nil
}

// ClearFailed removes a failed log entry after a later successful run.
func (s *Store) ClearFailed(ctx context.Context, key string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM failed_log WHERE item_key = ?`, key); err != nil {
		return fmt.Errorf("clear failed %s: %w", key, err)
	}
	return nil
}

// ListFailed returns failed entries, newest first.
func (s *Store) ListFailed(ctx context.Context) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT item_key, display_name, reason, failed_at FROM failed_log ORDER BY failed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	defer rows.Close()
	var entries []LogEntry
	for rows.Next() {
		var (
			entry  LogEntry
			name   sql.NullString
			reason sql.NullString
			atRaw  sql.NullString
		)
		if err := rows.Scan(&entry.Key, &name, &reason, &atRaw); err != nil {
			return nil, err
		}
		entry.DisplayName = name.String
		entry.Reason = reason.String
		entry.At = parseNullTime(atRaw)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneProcessed drops processed entries older than the cutoff.
func (s *Store) PruneProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM processed_log WHERE processed_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune processed: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts rows across the media tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	queries := []struct {
		dest  *int
		query string
	}{
		{&stats.Records, `SELECT COUNT(1) FROM media_records`},
		{&stats.InLibrary, `SELECT COUNT(1) FROM media_records WHERE in_library = 1`},
		{&stats.Children, `SELECT COUNT(1) FROM media_children`},
		{&stats.Actors, `SELECT COUNT(1) FROM actors`},
		{&stats.Processed, `SELECT COUNT(1) FROM processed_log`},
		{&stats.Failed, `SELECT COUNT(1) FROM failed_log`},
		{&stats.Review, `SELECT COUNT(1) FROM review_queue`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return stats, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetReview returns the review entry for key, or nil.
func (s *Store) GetReview(ctx context.Context, key string) (*ReviewEntry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT item_key, display_name, reason, score, created_at, updated_at FROM review_queue WHERE item_key = ?`, key)
	entry, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review %s: %w", key, err)
	}
	return entry, nil
}

func scanReview(scanner interface{ Scan(dest ...any) error }) (*ReviewEntry, error) {
	var (
		entry      ReviewEntry
		name       sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&entry.Key, &name, &entry.Reason, &entry.Score, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	entry.DisplayName = name.String
	entry.CreatedAt = parseNullTime(createdRaw)
	entry.UpdatedAt = parseNullTime(updatedRaw)
	return &entry, nil
}

// UpsertReview writes a review entry. When an entry with the same reason and
// score already exists nothing is written and changed is false.
func (s *Store) UpsertReview(ctx context.Context, entry ReviewEntry) (bool, error) {
	if entry.Key == "" {
		return false, errors.New("review entry key is empty")
	}
	existing, err := s.GetReview(ctx, entry.Key)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Reason == entry.Reason && existing.Score == entry.Score {
		return false, nil
	}
	now := s.timestamp()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO review_queue (item_key, display_name, reason, score, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_key) DO UPDATE SET
            display_name = excluded.display_name, reason = excluded.reason,
            score = excluded.score, updated_at = excluded.updated_at`,
		entry.Key, nullableString(entry.DisplayName), entry.Reason, entry.Score, now, now)
	if err != nil {
		return false, fmt.Errorf("upsert review %s: %w", entry.Key, err)
	}
	return true, nil
}

// ClearReview removes the review entry for key and reports whether one existed.
func (s *Store) ClearReview(ctx context.Context, key string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM review_queue WHERE item_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("clear review %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListReview returns every review entry, lowest score first.
func (s *Store) ListReview(ctx context.Context) ([]ReviewEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT item_key, display_name, reason, score, created_at, updated_at FROM review_queue ORDER BY score, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list review: %w", err)
	}
	defer rows.Close()
	var entries []ReviewEntry
	for rows.Next() {
		entry, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

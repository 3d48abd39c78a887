package api

import (
	"curator/internal/pipeline"
	"curator/internal/store"
)

// FromReviewEntry converts a review row to its API representation.
func FromReviewEntry(entry store.ReviewEntry) ReviewItem {
	item := ReviewItem{
		Key:         entry.Key,
		DisplayName: entry.DisplayName,
		Reason:      entry.Reason,
		Score:       entry.Score,
	}
	if key, err := store.ParseKey(entry.Key); err == nil {
		item.ItemType = string(key.ItemType)
		item.ExternalID = key.ExternalID
	}
	if !entry.CreatedAt.IsZero() {
		item.CreatedAt = entry.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !entry.UpdatedAt.IsZero() {
		item.UpdatedAt = entry.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return item
}

// FromReviewEntries converts a slice of review rows, preserving order.
func FromReviewEntries(entries []store.ReviewEntry) []ReviewItem {
	out := make([]ReviewItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromReviewEntry(entry))
	}
	return out
}

// FromStoreStats converts store row counts.
func FromStoreStats(stats store.Stats) StoreStats {
	return StoreStats{
		Records:   stats.Records,
		InLibrary: stats.InLibrary,
		Children:  stats.Children,
		Actors:    stats.Actors,
		Processed: stats.Processed,
		Failed:    stats.Failed,
		Review:    stats.Review,
	}
}

// FromDispatchStats converts dispatcher counters.
func FromDispatchStats(stats pipeline.DispatchStats) DispatchStats {
	return DispatchStats{
		Dispatched: stats.Dispatched,
		Completed:  stats.Completed,
		Failed:     stats.Failed,
		Skipped:    stats.Skipped,
		Panics:     stats.Panics,
		Running:    stats.Running,
	}
}

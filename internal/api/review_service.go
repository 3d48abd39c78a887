package api

import (
	"context"
	"fmt"
	"strings"

	"curator/internal/services"
	"curator/internal/store"
)

// ReviewStore abstracts the review queue persistence the API needs.
type ReviewStore interface {
	ListReview(ctx context.Context) ([]store.ReviewEntry, error)
	ClearReview(ctx context.Context, key string) (bool, error)
}

// ReviewService exposes review queue operations returning API DTOs.
type ReviewService struct {
	store ReviewStore
}

// NewReviewService constructs a ReviewService around the provided store.
func NewReviewService(st ReviewStore) *ReviewService {
	if st == nil {
		return nil
	}
	return &ReviewService{store: st}
}

// List returns every review row, lowest score first.
func (s *ReviewService) List(ctx context.Context) ([]ReviewItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.ListReview(ctx)
	if err != nil {
		return nil, err
	}
	return FromReviewEntries(entries), nil
}

// Clear removes the review row for itemType/externalID.
func (s *ReviewService) Clear(ctx context.Context, itemType, externalID string) (ReviewClearResponse, error) {
	if s == nil || s.store == nil {
		return ReviewClearResponse{}, fmt.Errorf("%w: review store unavailable", services.ErrConfiguration)
	}
	key, err := ReviewKey(itemType, externalID)
	if err != nil {
		return ReviewClearResponse{}, err
	}
	removed, err := s.store.ClearReview(ctx, key)
	if err != nil {
		return ReviewClearResponse{}, err
	}
	return ReviewClearResponse{Key: key, Removed: removed}, nil
}

// ReviewKey validates and renders a review key. Unresolved units use a
// "host:<id>" external id, which is accepted as-is.
func ReviewKey(itemType, externalID string) (string, error) {
	parsed, ok := store.ParseItemType(itemType)
	if !ok {
		return "", fmt.Errorf("%w: unknown item type %q", services.ErrValidation, itemType)
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", fmt.Errorf("%w: external id is required", services.ErrValidation)
	}
	return store.Key{ExternalID: externalID, ItemType: parsed}.String(), nil
}

package pipeline

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultProcessedSize = 5000

// ProcessedSource lists recently processed keys for warm-up.
type ProcessedSource interface {
	ProcessedKeys(ctx context.Context, limit int) ([]string, error)
}

// ProcessedSet is the bounded in-memory mirror of the processed log. It is a
// fast-path filter only; the store stays authoritative.
type ProcessedSet struct {
	size  int
	cache *lru.Cache[string, struct{}]
}

// NewProcessedSet returns an empty set holding at most size keys.
func NewProcessedSet(size int) (*ProcessedSet, error) {
	if size <= 0 {
		size = defaultProcessedSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("processed set: %w", err)
	}
	return &ProcessedSet{size: size, cache: cache}, nil
}

// Warm loads the most recent processed keys from src.
func (p *ProcessedSet) Warm(ctx context.Context, src ProcessedSource) (int, error) {
	keys, err := src.ProcessedKeys(ctx, p.size)
	if err != nil {
		return 0, fmt.Errorf("warm processed set: %w", err)
	}
	// Oldest first so the newest keys end up most recently used.
	for i := len(keys) - 1; i >= 0; i-- {
		p.cache.Add(keys[i], struct{}{})
	}
	return len(keys), nil
}

func (p *ProcessedSet) Contains(key string) bool { return p.cache.Contains(key) }

func (p *ProcessedSet) Add(key string) { p.cache.Add(key, struct{}{}) }

func (p *ProcessedSet) Remove(key string) { p.cache.Remove(key) }

func (p *ProcessedSet) Len() int { return p.cache.Len() }

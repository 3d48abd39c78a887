package intake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"curator/internal/host"
	"curator/internal/logging"
)

// ParentResolver looks up host items to find a leaf's container.
type ParentResolver interface {
	GetItemDetails(ctx context.Context, id string, fields ...string) (*host.Item, error)
}

// DispatchFunc receives every coalesced WorkItem.
type DispatchFunc func(WorkItem)

type bucket struct {
	item  WorkItem
	timer *time.Timer
	gen   uint64
}

// Coalescer debounces events per Key. Each new event for a key restarts the
// key's timer; when it fires the buffered events become one WorkItem.
type Coalescer struct {
	window   time.Duration
	resolver ParentResolver
	dispatch DispatchFunc
	logger   *slog.Logger

	mu       sync.Mutex
	pending  map[Key]*bucket
	stopped  bool
	inflight sync.WaitGroup
}

// NewCoalescer builds a coalescer with the given quiet window.
func NewCoalescer(window time.Duration, resolver ParentResolver, dispatch DispatchFunc, logger *slog.Logger) *Coalescer {
	return &Coalescer{
		window:   window,
		resolver: resolver,
		dispatch: dispatch,
		logger:   logging.NewComponentLogger(logger, "coalescer"),
		pending:  make(map[Key]*bucket),
	}
}

// Enqueue buffers ev and never blocks on I/O. Leaf events without a known
// parent are resolved on a separate goroutine; a failed lookup drops the
// event.
func (c *Coalescer) Enqueue(ctx context.Context, ev Event) {
	if ev.ItemID == "" {
		return
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	if !ev.IsLeaf() {
		c.add(Key(ev.ItemID), ev)
		return
	}
	if ev.ParentID != "" {
		c.add(Key(ev.ParentID), ev)
		return
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.inflight.Done()
		c.resolveAndAdd(ctx, ev)
	}()
}

func (c *Coalescer) resolveAndAdd(ctx context.Context, ev Event) {
	if c.resolver == nil {
		return
	}
	item, err := c.resolver.GetItemDetails(ctx, ev.ItemID, "ParentId", "SeriesId")
	if err != nil || item.ContainerID() == "" {
		attrs := []logging.Attr{
			logging.String("item_id", ev.ItemID),
			logging.String("item_type", ev.ItemType),
			logging.String(logging.FieldImpact, "event dropped; a later event for the series will pick it up"),
		}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		logging.WarnWithContext(c.logger, "parent lookup failed", "coalescer_parent_miss", attrs...)
		return
	}
	ev.ParentID = item.ContainerID()
	c.add(Key(ev.ParentID), ev)
}

func (c *Coalescer) add(key Key, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	b, ok := c.pending[key]
	if !ok {
		parentType := ev.ItemType
		if ev.IsLeaf() {
			parentType = host.TypeSeries
		}
		b = &bucket{item: NewWorkItem(string(key), parentType)}
		c.pending[key] = b
	}
	b.item.absorb(ev)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(c.window, func() { c.fire(key, gen) })
	c.logger.Debug("event buffered",
		logging.String(logging.FieldWorkKey, string(key)),
		logging.String("kind", string(ev.Kind)),
		logging.Int("events", b.item.Events),
	)
}

func (c *Coalescer) fire(key Key, gen uint64) {
	c.mu.Lock()
	b, ok := c.pending[key]
	if !ok || b.gen != gen || c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	c.mu.Unlock()

	c.logger.Debug("work item ready",
		logging.String(logging.FieldWorkKey, string(key)),
		logging.Int("events", b.item.Events),
		logging.Int("children", len(b.item.ChildLeafIDs)),
	)
	if c.dispatch != nil {
		c.dispatch(b.item)
	}
}

// Pending returns the number of keys still waiting for their window.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop cancels every pending timer and waits for in-flight parent lookups.
// Buffered events are discarded; the count of dropped keys is returned.
func (c *Coalescer) Stop() int {
	c.mu.Lock()
	c.stopped = true
	dropped := len(c.pending)
	for key, b := range c.pending {
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(c.pending, key)
	}
	c.mu.Unlock()
	c.inflight.Wait()
	if dropped > 0 {
		c.logger.Info("coalescer stopped with pending work", logging.Int("dropped_keys", dropped))
	}
	return dropped
}

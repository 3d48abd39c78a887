package intake_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/host"
	"curator/internal/intake"
	"curator/internal/services"
)

type scriptedSource struct {
	readyAfter int
	notFound   bool
	calls      atomic.Int32
	active     atomic.Int32
	peak       atomic.Int32
	hold       time.Duration
}

func (s *scriptedSource) GetItemDetails(_ context.Context, id string, _ ...string) (*host.Item, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(s.hold)
	call := int(s.calls.Add(1))
	if s.notFound {
		return nil, services.ErrNotFound
	}
	item := &host.Item{ID: id, Type: host.TypeMovie}
	if s.readyAfter > 0 && call >= s.readyAfter {
		item.MediaStreams = []host.MediaStream{{Type: "Video", Codec: "hevc", Width: 3840}}
	}
	return item, nil
}

func newPoller(source intake.StreamSource, retries, permits int) *intake.Poller {
	return intake.NewPoller(source, config.Poller{MaxRetries: retries, Concurrency: permits}, nil).
		WithInterval(5 * time.Millisecond)
}

func TestPollerWaitsForValidStream(t *testing.T) {
	source := &scriptedSource{readyAfter: 3}
	res, err := newPoller(source, 10, 1).Await(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !res.Ready || res.Attempts != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPollerTimesOut(t *testing.T) {
	source := &scriptedSource{}
	res, err := newPoller(source, 3, 1).Await(context.Background(), "m1")
	if !errors.Is(err, services.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if res.Ready || res.Attempts != 3 || source.calls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d calls", res, source.calls.Load())
	}
}

func TestPollerAbandonsVanishedItem(t *testing.T) {
	source := &scriptedSource{notFound: true}
	_, err := newPoller(source, 5, 1).Await(context.Background(), "m1")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected no retries after NotFound, got %d", source.calls.Load())
	}
}

func TestPollerBoundsConcurrency(t *testing.T) {
	source := &scriptedSource{readyAfter: 1, hold: 20 * time.Millisecond}
	poller := newPoller(source, 1, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := poller.Await(context.Background(), "m"); err != nil {
				t.Errorf("Await: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak := source.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent polls, saw %d", peak)
	}
}

func TestPollerHonoursCancellation(t *testing.T) {
	source := &scriptedSource{}
	poller := intake.NewPoller(source, config.Poller{MaxRetries: 100, Concurrency: 1, IntervalSeconds: 60}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := poller.Await(ctx, "m1"); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

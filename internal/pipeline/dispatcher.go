package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"curator/internal/intake"
	"curator/internal/logging"
	"curator/internal/services"
)

// Processor handles one work item.
type Processor interface {
	Process(ctx context.Context, work intake.WorkItem) Outcome
}

// PanicHandler records a unit that panicked.
type PanicHandler func(ctx context.Context, work intake.WorkItem, err error)

// DispatchStats counts dispatcher activity since start.
type DispatchStats struct {
	Dispatched int64
	Completed  int64
	Failed     int64
	Skipped    int64
	Panics     int64
	Running    int64
}

// Dispatcher runs work items on a bounded pool. Dispatch never blocks the
// caller; items wait for a free worker in submission goroutines.
type Dispatcher struct {
	ctx     context.Context
	proc    Processor
	onPanic PanicHandler
	pool    *pool.Pool
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	submit sync.WaitGroup

	dispatched atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
	panics     atomic.Int64
	running    atomic.Int64
}

// NewDispatcher builds a dispatcher running at most maxConcurrent units.
// Units run under ctx; cancelling it aborts running units.
func NewDispatcher(ctx context.Context, proc Processor, maxConcurrent int, onPanic PanicHandler, logger *slog.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		ctx:     ctx,
		proc:    proc,
		onPanic: onPanic,
		pool:    pool.New().WithMaxGoroutines(maxConcurrent),
		logger:  logging.NewComponentLogger(logger, "dispatcher"),
	}
}

// Dispatch queues work. It satisfies intake.DispatchFunc.
func (d *Dispatcher) Dispatch(work intake.WorkItem) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Debug("dispatcher closed, work dropped", logging.String(logging.FieldWorkKey, work.ParentID))
		return
	}
	d.dispatched.Add(1)
	d.submit.Add(1)
	go func() {
		defer d.submit.Done()
		d.pool.Go(func() { d.run(work) })
	}()
}

func (d *Dispatcher) run(work intake.WorkItem) {
	d.running.Add(1)
	defer d.running.Add(-1)
	defer func() {
		if recovered := recover(); recovered != nil {
			d.panics.Add(1)
			d.failed.Add(1)
			err := fmt.Errorf("%w: panic processing %s: %v", services.ErrUnitFatal, work.ParentID, recovered)
			attrs := []logging.Attr{
				logging.String(logging.FieldWorkKey, work.ParentID),
				logging.String("name", work.Name),
				logging.Error(err),
			}
			if d.logger.Enabled(d.ctx, slog.LevelDebug) {
				attrs = append(attrs, logging.String("stack", string(debug.Stack())))
			}
			logging.ErrorWithContext(d.logger, "unit panicked", "unit_panic", attrs...)
			if d.onPanic != nil {
				d.onPanic(context.WithoutCancel(d.ctx), work, err)
			}
		}
	}()
	if d.ctx.Err() != nil {
		d.skipped.Add(1)
		return
	}
	out := d.proc.Process(d.ctx, work)
	switch {
	case out.Err != nil:
		d.failed.Add(1)
	case out.Skipped:
		d.skipped.Add(1)
	default:
		d.completed.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Dispatched: d.dispatched.Load(),
		Completed:  d.completed.Load(),
		Failed:     d.failed.Load(),
		Skipped:    d.skipped.Load(),
		Panics:     d.panics.Load(),
		Running:    d.running.Load(),
	}
}

// Close stops accepting work and waits for queued and running units.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.submit.Wait()
	d.pool.Wait()
}

// RecordPanic is the default PanicHandler: the unit is written to the
// failed log and review queue under its host id.
func (o *Orchestrator) RecordPanic(ctx context.Context, work intake.WorkItem, err error) {
	out := Outcome{WorkKey: work.ParentID, DisplayName: work.Name, Err: err}
	o.fail(ctx, &unit{work: work}, &out, err)
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"curator/internal/api"
	"curator/internal/config"
	"curator/internal/host"
	"curator/internal/intake"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/pipeline"
	"curator/internal/services"
	"curator/internal/store"
)

// Options carries the daemon's collaborators. Notifier is optional.
type Options struct {
	Store        *store.Store
	Host         pipeline.HostLibrary
	Orchestrator *pipeline.Orchestrator
	Notifier     notifications.Service
	OverrideRoot string
	Logger       *slog.Logger
}

// Daemon owns the intake chain and the dispatcher for one process.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *store.Store
	host         pipeline.HostLibrary
	orch         *pipeline.Orchestrator
	notifier     notifications.Service
	reviews      *api.ReviewService
	overrideRoot string

	lockPath string
	lock     *flock.Flock

	mu     sync.Mutex
	active atomic.Pointer[session]
	cancel context.CancelFunc
	server *apiServer

	scanMu   sync.Mutex
	scanning atomic.Bool
	scans    sync.WaitGroup
}

// session holds the components built for one Start/Stop cycle. Request
// handlers read it without taking the lifecycle lock.
type session struct {
	ctx        context.Context
	startedAt  time.Time
	dispatcher *pipeline.Dispatcher
	coalescer  *intake.Coalescer
	intake     *intake.Intake
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil || opts.Store == nil || opts.Host == nil || opts.Orchestrator == nil {
		return nil, errors.New("daemon requires config, store, host and orchestrator")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(opts.Logger, "daemon"),
		store:        opts.Store,
		host:         opts.Host,
		orch:         opts.Orchestrator,
		notifier:     notifier,
		reviews:      api.NewReviewService(opts.Store),
		overrideRoot: opts.OverrideRoot,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock, warms the advisory set and
// begins accepting webhooks.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active.Load() != nil {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another curator daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if n, err := d.orch.Processed().Warm(runCtx, d.store); err != nil {
		logging.WarnWithContext(d.logger, "advisory set warm-up failed", "advisory_warm_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "already processed items are re-checked against the stores"),
		)
	} else {
		d.logger.Debug("advisory set warmed", logging.Int("keys", n))
	}

	sess := &session{ctx: runCtx, startedAt: time.Now()}
	sess.dispatcher = pipeline.NewDispatcher(runCtx, d.orch, d.cfg.Workflow.MaxConcurrentUnits, d.orch.RecordPanic, d.logger)
	sess.coalescer = intake.NewCoalescer(d.cfg.DebounceWindow(), d.host, sess.dispatcher.Dispatch, d.logger)
	poller := intake.NewPoller(d.host, d.cfg.Poller, d.logger)
	sess.intake = intake.New(runCtx, sess.coalescer, poller, d.orch, d.logger)
	d.active.Store(sess)

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = server.start(runCtx)
	}
	if err != nil {
		d.shutdown(sess)
		return err
	}
	d.server = server
	d.logger.Info("curator daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("max_concurrent_units", d.cfg.Workflow.MaxConcurrentUnits),
		logging.Duration("debounce", d.cfg.DebounceWindow()),
	)
	return nil
}

// Stop cancels running units, drops buffered events and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess := d.active.Load()
	if sess == nil {
		return
	}
	d.shutdown(sess)
	d.logger.Info("curator daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) shutdown(sess *session) {
	d.scanMu.Lock()
	d.active.Store(nil)
	d.scanMu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.stop()
		d.server = nil
	}
	d.scans.Wait()
	sess.coalescer.Stop()
	sess.intake.Wait()
	sess.dispatcher.Close()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may report another instance running"),
		)
	}
	d.cancel = nil
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the API listener address, or "" when the API is disabled.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// Handler returns the router serving the webhook and API routes.
func (d *Daemon) Handler() http.Handler {
	return newRouter(d, d.cfg.Paths.APIToken, d.logger)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	sess := d.active.Load()
	status := api.DaemonStatus{
		Running:        sess != nil,
		PID:            os.Getpid(),
		DatabasePath:   d.store.Path(),
		LockFilePath:   d.lockPath,
		OverrideRoot:   d.overrideRoot,
		AdvisoryKeys:   d.orch.Processed().Len(),
		ScanInProgress: d.scanning.Load(),
	}
	if sess != nil {
		status.StartedAt = sess.startedAt.UTC().Format(time.RFC3339)
		status.PendingKeys = sess.coalescer.Pending()
		status.Dispatch = api.FromDispatchStats(sess.dispatcher.Stats())
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		status.StoreError = err.Error()
	} else {
		status.Store = api.FromStoreStats(stats)
	}
	return status
}

// Reprocess looks the host item up and dispatches it directly, bypassing
// the debounce window. Leaf items are reprocessed through their series.
func (d *Daemon) Reprocess(ctx context.Context, hostItemID string, deep bool) (api.ReprocessResponse, error) {
	sess, err := d.session()
	if err != nil {
		return api.ReprocessResponse{}, err
	}
	item, err := d.host.GetItemDetails(ctx, hostItemID, host.DefaultFields...)
	if err != nil {
		return api.ReprocessResponse{}, err
	}
	if item.Type == host.TypeEpisode || item.Type == host.TypeSeason {
		seriesID := item.SeriesID
		if seriesID == "" {
			return api.ReprocessResponse{}, fmt.Errorf("%w: %s %s has no series", services.ErrValidation, item.Type, item.ID)
		}
		if item, err = d.host.GetItemDetails(ctx, seriesID, host.DefaultFields...); err != nil {
			return api.ReprocessResponse{}, err
		}
	}
	if item.Type != host.TypeMovie && item.Type != host.TypeSeries {
		return api.ReprocessResponse{}, fmt.Errorf("%w: cannot reprocess a %q", services.ErrValidation, item.Type)
	}
	work := pipeline.WorkItemForHost(*item, deep)
	sess.dispatcher.Dispatch(work)
	d.logger.Info("manual reprocess dispatched",
		logging.String(logging.FieldEventType, "reprocess_dispatched"),
		logging.String(logging.FieldWorkKey, work.ParentID),
		logging.String("name", item.Name),
		logging.Bool("deep", deep),
	)
	return api.ReprocessResponse{HostItemID: work.ParentID, ItemType: item.Type, DisplayName: item.Name, Deep: deep}, nil
}

// StartScan pages through the host library in the background. Only one scan
// runs at a time; started is false when one is already in progress.
func (d *Daemon) StartScan(deep bool) (bool, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()
	sess, err := d.session()
	if err != nil {
		return false, err
	}
	if !d.scanning.CompareAndSwap(false, true) {
		return false, nil
	}
	ctx, dispatch := sess.ctx, sess.dispatcher.Dispatch
	d.scans.Add(1)
	go func() {
		defer d.scans.Done()
		defer d.scanning.Store(false)
		n, err := d.orch.Scan(ctx, deep, dispatch)
		switch {
		case errors.Is(err, services.ErrCancelled):
			d.logger.Info("library scan cancelled", logging.Int("dispatched", n))
		case err != nil:
			logging.ErrorWithContext(d.logger, "library scan failed", "scan_failed",
				logging.Int("dispatched", n),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check host connectivity and api key"),
			)
		}
	}()
	return true, nil
}

// ListReview returns the review queue.
func (d *Daemon) ListReview(ctx context.Context) ([]api.ReviewItem, error) {
	return d.reviews.List(ctx)
}

// ClearReview removes one review row.
func (d *Daemon) ClearReview(ctx context.Context, itemType, externalID string) (api.ReviewClearResponse, error) {
	return d.reviews.Clear(ctx, itemType, externalID)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}

func (d *Daemon) session() (*session, error) {
	sess := d.active.Load()
	if sess == nil {
		return nil, fmt.Errorf("%w: daemon is not running", services.ErrConfiguration)
	}
	return sess, nil
}

func (d *Daemon) webhook() http.Handler {
	if sess := d.active.Load(); sess != nil {
		return sess.intake
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"curator/internal/cast"
	"curator/internal/host"
	"curator/internal/intake"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/provider/douban"
	"curator/internal/provider/tmdb"
	"curator/internal/quality"
	"curator/internal/services"
	"curator/internal/store"
)

// HostLibrary is the slice of the host client the orchestrator uses.
type HostLibrary interface {
	GetItemDetails(ctx context.Context, id string, fields ...string) (*host.Item, error)
	GetItemsByIDs(ctx context.Context, ids []string, fields ...string) ([]host.Item, error)
	ListItems(ctx context.Context, types []string, start, limit int) ([]host.Item, int, error)
	RefreshByID(ctx context.Context, id string) error
}

// MetadataProvider is the primary provider surface.
type MetadataProvider interface {
	GetDetails(ctx context.Context, id int64, mediaType, language string) (*tmdb.Details, error)
	Search(ctx context.Context, query, mediaType string, year int) (*tmdb.Response, error)
	AggregateSeriesData(ctx context.Context, id int64) (*tmdb.SeriesAggregate, error)
}

// SecondaryProvider is the crowd-sourced cast provider surface.
type SecondaryProvider interface {
	MatchIdentity(ctx context.Context, name, imdbID, mediaType string, year int) (*douban.Subject, error)
	GetCredits(ctx context.Context, subjectID, mediaType string) ([]douban.Credit, error)
}

// CastReconciler merges candidate lists into the authoritative cast.
type CastReconciler interface {
	Reconcile(ctx context.Context, in cast.Input) (cast.Result, error)
}

// RecordStore is the relational store surface beyond the dual write.
type RecordStore interface {
	HierarchyStore
	FindByHostItemID(ctx context.Context, hostItemID string) (*store.Record, error)
	SetInLibrary(ctx context.Context, key store.Key, inLibrary bool, hostItemID string) (bool, error)
	MarkChildrenOffline(ctx context.Context, hostItemID string) (int64, error)
	MarkChildrenInLibrary(ctx context.Context, parentExternalID string, refs []store.ChildRef) (int64, error)
	MarkProcessed(ctx context.Context, entry store.LogEntry) error
	MarkFailed(ctx context.Context, entry store.LogEntry) error
	ClearFailed(ctx context.Context, key string) error
}

// ReviewGate scores a unit and maintains its review entry.
type ReviewGate interface {
	Evaluate(ctx context.Context, in quality.Input) (quality.Verdict, error)
}

// Dependencies wires an Orchestrator. Secondary and Notifier are optional.
type Dependencies struct {
	Host      HostLibrary
	Primary   MetadataProvider
	Secondary SecondaryProvider
	Cast      CastReconciler
	Store     RecordStore
	Writer    *DualWriter
	Gate      ReviewGate
	Notifier  notifications.Service
	Processed *ProcessedSet
	Language  string
	CastCap   int
	PageSize  int
	Logger    *slog.Logger
}

// Orchestrator processes one work item at a time per call; it keeps no state
// between items apart from the advisory processed set.
type Orchestrator struct {
	host      HostLibrary
	primary   MetadataProvider
	secondary SecondaryProvider
	cast      CastReconciler
	store     RecordStore
	writer    *DualWriter
	gate      ReviewGate
	notifier  notifications.Service
	processed *ProcessedSet
	language  string
	castCap   int
	pageSize  int
	logger    *slog.Logger
}

// NewOrchestrator validates deps and builds an orchestrator.
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	var missing []string
	if deps.Host == nil {
		missing = append(missing, "host")
	}
	if deps.Primary == nil {
		missing = append(missing, "primary provider")
	}
	if deps.Cast == nil {
		missing = append(missing, "cast engine")
	}
	if deps.Store == nil {
		missing = append(missing, "store")
	}
	if deps.Writer == nil {
		missing = append(missing, "dual writer")
	}
	if deps.Gate == nil {
		missing = append(missing, "quality gate")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: orchestrator missing %s", services.ErrConfiguration, strings.Join(missing, ", "))
	}
	processed := deps.Processed
	if processed == nil {
		var err error
		if processed, err = NewProcessedSet(0); err != nil {
			return nil, err
		}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Orchestrator{
		host:      deps.Host,
		primary:   deps.Primary,
		secondary: deps.Secondary,
		cast:      deps.Cast,
		store:     deps.Store,
		writer:    deps.Writer,
		gate:      deps.Gate,
		notifier:  notifier,
		processed: processed,
		language:  deps.Language,
		castCap:   deps.CastCap,
		pageSize:  deps.PageSize,
		logger:    logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// Processed exposes the advisory set.
func (o *Orchestrator) Processed() *ProcessedSet {
	return o.processed
}

// Outcome summarises one processed work item.
type Outcome struct {
	WorkKey     string
	Key         store.Key
	DisplayName string
	Action      Action
	Skipped     bool
	Score       float64
	Review      bool
	Duration    time.Duration
	Err         error
}

type unit struct {
	work        intake.WorkItem
	item        *host.Item
	itemType    store.ItemType
	tmdbID      int64
	key         store.Key
	displayName string
}

func (u *unit) name() string {
	if u == nil {
		return ""
	}
	if u.displayName != "" {
		return u.displayName
	}
	if u.item != nil && u.item.Name != "" {
		return displayName(u.item.Name, u.item.ProductionYear)
	}
	return u.work.Name
}

// Process runs one work item through the decision matrix. Errors never
// escape: they are classified, logged and recorded on the Outcome.
func (o *Orchestrator) Process(ctx context.Context, work intake.WorkItem) Outcome {
	start := time.Now()
	ctx = services.WithWorkKey(ctx, work.ParentID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)

	out := Outcome{WorkKey: work.ParentID}
	u, err := o.prepare(ctx, work)
	if err == nil {
		err = o.run(ctx, u, &out)
	}
	out.Duration = time.Since(start)
	if u != nil {
		out.Key = u.key
		out.DisplayName = u.name()
	}
	if err != nil {
		out.Err = err
		o.fail(ctx, u, &out, err)
		return out
	}
	if out.Skipped {
		logger.Debug("unit skipped", logging.String("key", out.Key.String()))
		return out
	}
	logger.Info("unit processed",
		logging.String(logging.FieldEventType, "unit_processed"),
		logging.String("key", out.Key.String()),
		logging.String("title", out.DisplayName),
		logging.String("action", string(out.Action)),
		logging.Score(out.Score),
		logging.Bool("review", out.Review),
		logging.Duration("latency", out.Duration),
	)
	return out
}

// prepare looks up the parent on the host and resolves as much of the
// canonical key as can be found without provider calls.
func (o *Orchestrator) prepare(ctx context.Context, work intake.WorkItem) (*unit, error) {
	if strings.TrimSpace(work.ParentID) == "" {
		return nil, services.Wrap(services.ErrValidation, "prepare", "work item", "empty parent id", nil)
	}
	item, err := o.host.GetItemDetails(ctx, work.ParentID, host.DefaultFields...)
	if err != nil {
		if c := services.Cancelled(ctx.Err()); c != nil {
			return nil, c
		}
		return nil, services.Wrap(services.ErrTransientMiss, "prepare", "host lookup", work.ParentID, err)
	}
	itemType, ok := store.ParseItemType(item.Type)
	if !ok || itemType.IsLeaf() {
		return nil, services.Wrap(services.ErrTransientMiss, "prepare", "host lookup",
			fmt.Sprintf("%s is a %q, not a movie or series", work.ParentID, item.Type), nil)
	}
	u := &unit{work: work, item: item, itemType: itemType}
	if id := explicitID(item, work.ExternalIDs); id > 0 {
		u.tmdbID = id
	} else if id := idFromPath(item.Path); id > 0 {
		u.tmdbID = id
	}
	if u.tmdbID > 0 {
		u.key = store.Key{ExternalID: fmt.Sprint(u.tmdbID), ItemType: itemType}
		return u, nil
	}
	// No id on the host side: a record bound to this host item still
	// locates both stores.
	rec, err := o.store.FindByHostItemID(ctx, item.ID)
	if err != nil {
		return u, services.Wrap(services.ErrPersistence, "prepare", "find by host id", item.ID, err)
	}
	if rec != nil && rec.ItemType == itemType {
		u.key = rec.Key
		u.tmdbID = parseID(rec.ExternalID)
	}
	return u, nil
}

// locate reads both stores for the unit's key. A record the host no longer
// has purges the key from the advisory set.
func (o *Orchestrator) locate(ctx context.Context, u *unit) (StoreState, *store.Record, error) {
	if !u.key.Valid() {
		return StoreState{}, nil, nil
	}
	state, rec, err := o.writer.State(ctx, u.key)
	if err != nil {
		return state, nil, err
	}
	keyStr := u.key.String()
	if rec != nil && !rec.InLibrary && o.processed.Contains(keyStr) {
		logging.WithContext(ctx, o.logger).Info("processed entry is stale, reprocessing",
			logging.String("key", keyStr),
			logging.String(logging.FieldEventType, "advisory_purged"),
		)
		o.processed.Remove(keyStr)
	}
	return state, rec, nil
}

func (o *Orchestrator) run(ctx context.Context, u *unit, out *Outcome) error {
	logger := logging.WithContext(ctx, o.logger)
	state, rec, err := o.locate(ctx, u)
	if err != nil {
		return err
	}
	action := Decide(state, u.work.DeepRefresh)
	if action == ActionFullResolution && u.tmdbID == 0 {
		mediaType := tmdb.MediaMovie
		if u.itemType == store.ItemSeries {
			mediaType = tmdb.MediaTV
		}
		id, err := o.searchID(ctx, firstNonEmpty(u.item.OriginalTitle, u.item.Name, u.work.Name), mediaType, u.item.ProductionYear)
		if err != nil {
			return err
		}
		u.tmdbID = id
		u.key = store.Key{ExternalID: fmt.Sprint(id), ItemType: u.itemType}
		// The search may land on a key both stores already know.
		if state, rec, err = o.locate(ctx, u); err != nil {
			return err
		}
		action = Decide(state, u.work.DeepRefresh)
	}
	if action == ActionFullResolution && !u.work.DeepRefresh && o.processed.Contains(u.key.String()) {
		out.Skipped = true
		return nil
	}
	out.Action = action
	if rec != nil {
		u.displayName = rec.DisplayName()
	}
	logger.Debug("decision",
		logging.String("key", u.key.String()),
		logging.Bool("record", state.Record),
		logging.Bool("record_in_library", state.RecordInLibrary),
		logging.Bool("file", state.File),
		logging.Bool("deep", u.work.DeepRefresh),
		logging.String("action", string(action)),
	)

	var (
		payload Payload
		members int
	)
	switch action {
	case ActionConfirm, ActionConfirmOffline:
		if action == ActionConfirmOffline || rec.HostItemID != u.item.ID {
			if _, err := o.store.SetInLibrary(ctx, u.key, true, u.item.ID); err != nil {
				return services.Wrap(services.ErrPersistence, "confirm", "set in library", u.key.String(), err)
			}
		}
		changed, err := o.syncLeaves(ctx, u)
		if err != nil {
			return err
		}
		if !changed && len(u.work.InvalidStreams) == 0 {
			o.acknowledge(ctx, u)
			o.processed.Add(u.key.String())
			return nil
		}
		// New or broken leaves: the override tree follows the flags and the
		// gate sees the leaves.
		rec.InLibrary = true
		rec.HostItemID = u.item.ID
		if changed {
			if payload, err = o.writer.Materialize(ctx, rec); err != nil {
				return err
			}
		} else {
			payload = Payload{Record: rec}
		}
		members = len(rec.Cast)
	case ActionMaterialize:
		if !rec.InLibrary || rec.HostItemID != u.item.ID {
			rec.InLibrary = true
			rec.HostItemID = u.item.ID
			if _, err := o.store.SetInLibrary(ctx, u.key, true, u.item.ID); err != nil {
				return services.Wrap(services.ErrPersistence, "materialize", "set in library", u.key.String(), err)
			}
		}
		if payload, err = o.writer.Materialize(ctx, rec); err != nil {
			return err
		}
		members = len(rec.Cast)
	case ActionBackfill:
		if payload, err = o.writer.Backfill(ctx, u.key, u.item.ID); err != nil {
			return err
		}
		u.displayName = payload.Record.DisplayName()
		members = len(payload.Record.Cast)
	case ActionFullResolution:
		var result cast.Result
		if payload, result, err = o.fullResolution(ctx, u, rec); err != nil {
			return err
		}
		members = len(result.Members)
	}

	verdict, err := o.gate.Evaluate(ctx, o.qualityInput(u, payload.Record, members))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "quality", "evaluate", u.key.String(), err)
	}
	out.Score = verdict.Score
	out.Review = verdict.Review
	entry := store.LogEntry{Key: u.key.String(), DisplayName: u.name(), Score: verdict.Score, Reason: verdict.Reason}
	if err := o.store.MarkProcessed(ctx, entry); err != nil {
		return services.Wrap(services.ErrPersistence, "quality", "mark processed", entry.Key, err)
	}
	if err := o.store.ClearFailed(ctx, entry.Key); err != nil {
		logger.Debug("clear failed entry", logging.Error(err))
	}
	o.processed.Add(entry.Key)
	if verdict.Review && verdict.Changed {
		o.publish(ctx, notifications.EventReviewRequired, notifications.Payload{
			"key":         entry.Key,
			"displayName": entry.DisplayName,
			"reason":      verdict.Reason,
			"score":       verdict.Score,
		})
	}
	o.acknowledge(ctx, u)
	return nil
}

func (o *Orchestrator) qualityInput(u *unit, rec *store.Record, members int) quality.Input {
	in := quality.Input{
		Key:             u.key,
		DisplayName:     u.name(),
		ActualCast:      members,
		InvalidChildren: u.work.InvalidIDs(),
	}
	if rec != nil {
		in.ExpectedCast = rec.ExpectedCast
		in.Genres = rec.Genres
	}
	if _, ok := u.work.InvalidStreams[u.item.ID]; ok && u.itemType == store.ItemMovie {
		in.StreamInvalid = true
		in.InvalidChildren = nil
	}
	return in
}

// acknowledge asks the host to re-read the item. Failure only delays the
// host picking up the new files.
func (o *Orchestrator) acknowledge(ctx context.Context, u *unit) {
	if err := o.host.RefreshByID(ctx, u.item.ID); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "host refresh failed", "host_refresh_failed",
			logging.String("host_item_id", u.item.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "host shows stale metadata until its next scheduled refresh"),
		)
	}
}

// fail classifies err and records it. Dropped units leave no trace beyond
// the log; everything else lands in the failed log and the review queue.
func (o *Orchestrator) fail(ctx context.Context, u *unit, out *Outcome, err error) {
	logger := logging.WithContext(ctx, o.logger)
	disposition := services.FailureDisposition(err)
	switch disposition {
	case services.DispositionDrop:
		if errors.Is(err, services.ErrCancelled) {
			logger.Debug("unit cancelled", logging.String("title", out.DisplayName))
			return
		}
		logging.WarnWithContext(logger, "unit dropped", "unit_dropped",
			logging.String("title", out.DisplayName),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next event for this item retries it"),
			logging.String(logging.FieldImpact, "item not processed"),
		)
		return
	}

	key := out.Key
	if !key.Valid() && u != nil && u.item != nil {
		key = store.Key{ExternalID: "host:" + u.item.ID, ItemType: u.itemType}
	}
	if !key.Valid() {
		key = store.Key{ExternalID: "host:" + out.WorkKey, ItemType: store.ItemMovie}
		if t, ok := store.ParseItemType(unitType(u)); ok {
			key.ItemType = t
		}
	}
	reason := failureReason(err)
	logging.ErrorWithContext(logger, "unit failed", "unit_failed",
		logging.String("key", key.String()),
		logging.String("title", out.DisplayName),
		logging.String("disposition", string(disposition)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "see the review queue; reprocess once the cause is fixed"),
	)
	// Recording a failure must outlive the unit's cancellation window.
	recordCtx := context.WithoutCancel(ctx)
	entry := store.LogEntry{Key: key.String(), DisplayName: out.DisplayName, Reason: reason}
	if werr := o.store.MarkFailed(recordCtx, entry); werr != nil {
		logger.Error("failed to record failure", logging.Error(werr))
	}
	if disposition == services.DispositionReview {
		if werr := o.store.MarkProcessed(recordCtx, entry); werr != nil {
			logger.Error("failed to mark failed unit processed", logging.Error(werr))
		} else {
			o.processed.Add(entry.Key)
		}
	}
	verdict, gerr := o.gate.Evaluate(recordCtx, quality.Input{Key: key, DisplayName: out.DisplayName, Failure: reason})
	if gerr != nil {
		logger.Error("failed to queue unit for review", logging.Error(gerr))
	}
	out.Review = gerr == nil && verdict.Review
	o.publish(recordCtx, notifications.EventUnitFailed, notifications.Payload{
		"key":         entry.Key,
		"displayName": firstNonEmpty(out.DisplayName, entry.Key),
		"error":       reason,
	})
}

func unitType(u *unit) string {
	if u == nil {
		return ""
	}
	if u.item != nil {
		return u.item.Type
	}
	return u.work.ParentType
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, services.ErrUnitFatal):
		return "unit fatal: " + err.Error()
	case errors.Is(err, services.ErrProviderFetch):
		return "provider fetch failed: " + err.Error()
	case errors.Is(err, services.ErrPersistence):
		return "persistence failed: " + err.Error()
	}
	return err.Error()
}

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		o.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

// MarkRemoved handles an item-removed notification: the matching record
// goes offline and its advisory entry is purged. Episodes flip their child
// row instead.
func (o *Orchestrator) MarkRemoved(ctx context.Context, ev intake.Event) error {
	logger := logging.WithContext(ctx, o.logger)
	if ev.IsLeaf() {
		n, err := o.store.MarkChildrenOffline(ctx, ev.ItemID)
		if err != nil {
			return services.Wrap(services.ErrPersistence, "remove", "mark child offline", ev.ItemID, err)
		}
		logger.Debug("child marked offline", logging.String("host_item_id", ev.ItemID), logging.Int64("rows", n))
		return nil
	}
	var key store.Key
	itemType, ok := store.ParseItemType(ev.ItemType)
	if id := explicitID(nil, ev.ExternalIDs); id > 0 && ok {
		key = store.Key{ExternalID: fmt.Sprint(id), ItemType: itemType}
	} else {
		rec, err := o.store.FindByHostItemID(ctx, ev.ItemID)
		if err != nil {
			return services.Wrap(services.ErrPersistence, "remove", "find by host id", ev.ItemID, err)
		}
		if rec == nil {
			logger.Debug("removed item has no record", logging.String("host_item_id", ev.ItemID))
			return nil
		}
		key = rec.Key
	}
	touched, err := o.store.SetInLibrary(ctx, key, false, "")
	if err != nil {
		return services.Wrap(services.ErrPersistence, "remove", "set offline", key.String(), err)
	}
	o.processed.Remove(key.String())
	logger.Info("item removed from library",
		logging.String(logging.FieldEventType, "item_removed"),
		logging.String("key", key.String()),
		logging.Bool("record_found", touched),
	)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

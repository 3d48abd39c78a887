package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"curator/internal/logging"
	"curator/internal/services"
)

const maxEnvelopeBytes = 1 << 20

// Remover handles item-removed notifications.
type Remover interface {
	MarkRemoved(ctx context.Context, ev Event) error
}

// Intake routes decoded events to the poller, coalescer or remover. Async
// work runs under the context given to New, not the request context.
type Intake struct {
	ctx       context.Context
	coalescer *Coalescer
	poller    *Poller
	remover   Remover
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// New builds an Intake. poller and remover may be nil.
func New(ctx context.Context, coalescer *Coalescer, poller *Poller, remover Remover, logger *slog.Logger) *Intake {
	return &Intake{
		ctx:       ctx,
		coalescer: coalescer,
		poller:    poller,
		remover:   remover,
		logger:    logging.NewComponentLogger(logger, "intake"),
		now:       time.Now,
	}
}

type envelope struct {
	Kind  string       `json:"kind"`
	Event string       `json:"event"`
	Item  envelopeItem `json:"item"`
}

type envelopeItem struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	ExternalIDs map[string]string `json:"externalIds"`
	ProviderIDs map[string]string `json:"providerIds"`
	ParentID    string            `json:"parentId"`
	SeriesID    string            `json:"seriesId"`
}

// Decode parses a host envelope. ok is false for unrecognized kinds.
func Decode(r io.Reader) (Event, bool, error) {
	var env envelope
	if err := json.NewDecoder(io.LimitReader(r, maxEnvelopeBytes)).Decode(&env); err != nil {
		return Event{}, false, err
	}
	raw := env.Kind
	if raw == "" {
		raw = env.Event
	}
	kind, ok := ParseKind(raw)
	if !ok {
		return Event{Kind: Kind(raw)}, false, nil
	}
	ids := make(map[string]string, len(env.Item.ExternalIDs)+len(env.Item.ProviderIDs))
	for _, src := range []map[string]string{env.Item.ProviderIDs, env.Item.ExternalIDs} {
		for k, v := range src {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.TrimSpace(v) != "" {
				ids[k] = strings.TrimSpace(v)
			}
		}
	}
	parent := env.Item.SeriesID
	if parent == "" {
		parent = env.Item.ParentID
	}
	ev := Event{
		ItemID:      strings.TrimSpace(env.Item.ID),
		ItemType:    strings.TrimSpace(env.Item.Type),
		Kind:        kind,
		Name:        strings.TrimSpace(env.Item.Name),
		Path:        strings.TrimSpace(env.Item.Path),
		ExternalIDs: ids,
	}
	if ev.IsLeaf() {
		ev.ParentID = strings.TrimSpace(parent)
	}
	return ev, true, nil
}

// ServeHTTP accepts a webhook and acknowledges with 202 before any work runs.
func (in *Intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ev, ok, err := Decode(r.Body)
	if err != nil {
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	if !ok {
		in.logger.Debug("unrecognized event kind dropped", logging.String("kind", string(ev.Kind)))
		return
	}
	ev.ReceivedAt = in.now()
	if rid, ok := services.RequestIDFromContext(r.Context()); ok {
		in.logger.Debug("webhook accepted", logging.String(logging.FieldCorrelationID, rid), logging.String("kind", string(ev.Kind)))
	}
	in.Handle(ev)
}

// Handle routes one event. It never blocks on I/O.
func (in *Intake) Handle(ev Event) {
	if ev.ItemID == "" {
		in.logger.Debug("event without item id dropped", logging.String("kind", string(ev.Kind)))
		return
	}
	switch ev.Kind {
	case KindItemAdded:
		if ev.NeedsStreamCheck() && in.poller != nil {
			in.async(func(ctx context.Context) { in.pollThenEnqueue(ctx, ev) })
			return
		}
		in.coalescer.Enqueue(in.ctx, ev)
	case KindMetadataChanged, KindImageChanged:
		in.coalescer.Enqueue(in.ctx, ev)
	case KindItemRemoved:
		if in.remover == nil {
			return
		}
		in.async(func(ctx context.Context) {
			if err := in.remover.MarkRemoved(ctx, ev); err != nil {
				logging.WarnWithContext(in.logger, "item removal not recorded", "intake_remove_failed",
					logging.String("item_id", ev.ItemID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "record stays marked in library until the next scan"),
				)
			}
		})
	case KindCollectionChanged:
		in.logger.Info("collection membership changed",
			logging.String("item_id", ev.ItemID),
			logging.String("name", ev.Name),
		)
	}
}

func (in *Intake) pollThenEnqueue(ctx context.Context, ev Event) {
	_, err := in.poller.Await(ctx, ev.ItemID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrPollTimeout):
		ev.StreamInvalid = true
	case errors.Is(err, services.ErrNotFound):
		logging.WarnWithContext(in.logger, "item vanished while polling", "poll_item_gone",
			logging.String("item_id", ev.ItemID),
			logging.String(logging.FieldImpact, "item abandoned"),
		)
		return
	default:
		in.logger.Debug("poll aborted", logging.String("item_id", ev.ItemID), logging.Error(err))
		return
	}
	in.coalescer.Enqueue(ctx, ev)
}

func (in *Intake) async(fn func(ctx context.Context)) {
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		fn(in.ctx)
	}()
}

// Wait blocks until every async poll and removal finished.
func (in *Intake) Wait() {
	in.wg.Wait()
}

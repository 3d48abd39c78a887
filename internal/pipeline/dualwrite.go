package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"curator/internal/logging"
	"curator/internal/overrides"
	"curator/internal/services"
	"curator/internal/store"
)

// HierarchyStore is the relational half of the dual write.
type HierarchyStore interface {
	GetRecord(ctx context.Context, key store.Key) (*store.Record, error)
	ListChildren(ctx context.Context, parentExternalID string) ([]store.Child, error)
	UpsertHierarchy(ctx context.Context, rec *store.Record, children []store.Child) error
}

// Payload is the authoritative state written to both stores.
type Payload struct {
	Record   *store.Record
	Children []store.Child
}

// DualWriter keeps the relational record and the override files in step.
// The two writes are not atomic; a crash between them is repaired the next
// time the key is processed.
type DualWriter struct {
	records HierarchyStore
	files   *overrides.Cache
	logger  *slog.Logger
}

// NewDualWriter pairs a relational store with an override cache.
func NewDualWriter(records HierarchyStore, files *overrides.Cache, logger *slog.Logger) *DualWriter {
	return &DualWriter{
		records: records,
		files:   files,
		logger:  logging.NewComponentLogger(logger, "dualwrite"),
	}
}

// State reports which stores currently hold key, returning the record when
// present.
func (w *DualWriter) State(ctx context.Context, key store.Key) (StoreState, *store.Record, error) {
	var state StoreState
	rec, err := w.records.GetRecord(ctx, key)
	if err != nil {
		return state, nil, services.Wrap(services.ErrPersistence, "dualwrite", "load record", key.String(), err)
	}
	if rec != nil {
		state.Record = true
		state.RecordInLibrary = rec.InLibrary
	}
	exists, err := w.files.Exists(key)
	if err != nil {
		return state, rec, services.Wrap(services.ErrPersistence, "dualwrite", "stat overrides", key.String(), err)
	}
	state.File = exists
	return state, rec, nil
}

// Write stores the hierarchy in one short transaction, then writes the
// override tree from the stored rows so locked counts reach both stores.
// The returned payload is the stored view.
func (w *DualWriter) Write(ctx context.Context, p Payload) (Payload, error) {
	if p.Record == nil {
		return p, services.Wrap(services.ErrValidation, "dualwrite", "write", "payload has no record", nil)
	}
	key := p.Record.Key
	if err := w.records.UpsertHierarchy(ctx, p.Record, p.Children); err != nil {
		return p, services.Wrap(services.ErrPersistence, "dualwrite", "upsert hierarchy", key.String(), err)
	}
	stored, err := w.load(ctx, key)
	if err != nil {
		return p, err
	}
	if err := w.files.Write(overrides.FromRecord(stored.Record, stored.Children)); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "override files not written", "overrides_write_failed",
			logging.MediaKey(string(key.ItemType), key.ExternalID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "record saved; files regenerate on the next event for this item"),
		)
		return stored, services.Wrap(services.ErrPersistence, "dualwrite", "write overrides", key.String(), err)
	}
	return stored, nil
}

func (w *DualWriter) load(ctx context.Context, key store.Key) (Payload, error) {
	rec, err := w.records.GetRecord(ctx, key)
	if err != nil {
		return Payload{}, services.Wrap(services.ErrPersistence, "dualwrite", "reload record", key.String(), err)
	}
	if rec == nil {
		return Payload{}, services.Wrap(services.ErrPersistence, "dualwrite", "reload record", key.String()+" vanished after upsert", nil)
	}
	var children []store.Child
	if rec.ItemType == store.ItemSeries {
		if children, err = w.records.ListChildren(ctx, rec.ExternalID); err != nil {
			return Payload{}, services.Wrap(services.ErrPersistence, "dualwrite", "reload children", key.String(), err)
		}
	}
	return Payload{Record: rec, Children: children}, nil
}

// Materialize regenerates the override tree from the stored record and its
// children.
func (w *DualWriter) Materialize(ctx context.Context, rec *store.Record) (Payload, error) {
	children, err := w.records.ListChildren(ctx, rec.ExternalID)
	if err != nil {
		return Payload{}, services.Wrap(services.ErrPersistence, "dualwrite", "list children", rec.Key.String(), err)
	}
	if rec.ItemType != store.ItemSeries {
		children = nil
	}
	p := Payload{Record: rec, Children: children}
	if err := w.files.Write(overrides.FromRecord(rec, children)); err != nil {
		return p, services.Wrap(services.ErrPersistence, "dualwrite", "materialize", rec.Key.String(), err)
	}
	return p, nil
}

// Backfill rebuilds the relational hierarchy from the override tree. The
// record is bound to hostItemID and marked in library.
func (w *DualWriter) Backfill(ctx context.Context, key store.Key, hostItemID string) (Payload, error) {
	tree, err := w.files.Read(key)
	if err != nil {
		if errors.Is(err, overrides.ErrNotFound) {
			return Payload{}, services.Wrap(services.ErrNotFound, "dualwrite", "backfill", key.String(), err)
		}
		return Payload{}, services.Wrap(services.ErrPersistence, "dualwrite", "read overrides", key.String(), err)
	}
	rec, children := tree.ToRecord()
	rec.InLibrary = true
	if hostItemID != "" {
		rec.HostItemID = hostItemID
	}
	if err := w.records.UpsertHierarchy(ctx, rec, children); err != nil {
		return Payload{}, services.Wrap(services.ErrPersistence, "dualwrite", "backfill", key.String(), err)
	}
	return Payload{Record: rec, Children: children}, nil
}

package intake

import (
	"sort"
	"strings"
	"time"

	"curator/internal/host"
)

// Kind classifies a host change notification.
type Kind string

const (
	KindItemAdded         Kind = "item-added"
	KindItemRemoved       Kind = "item-removed"
	KindMetadataChanged   Kind = "metadata-changed"
	KindImageChanged      Kind = "image-changed"
	KindCollectionChanged Kind = "collection-membership-changed"
)

var kindAliases = map[string]Kind{
	"item-added":                    KindItemAdded,
	"library.new":                   KindItemAdded,
	"itemadded":                     KindItemAdded,
	"item-removed":                  KindItemRemoved,
	"library.deleted":               KindItemRemoved,
	"itemdeleted":                   KindItemRemoved,
	"metadata-changed":              KindMetadataChanged,
	"item.update":                   KindMetadataChanged,
	"metadata.update":               KindMetadataChanged,
	"image-changed":                 KindImageChanged,
	"image.update":                  KindImageChanged,
	"collection-membership-changed": KindCollectionChanged,
	"collection.update":             KindCollectionChanged,
}

// ParseKind maps host event names onto a Kind.
func ParseKind(raw string) (Kind, bool) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(raw))]
	return kind, ok
}

// Event is one decoded change notification.
type Event struct {
	ItemID        string
	ItemType      string
	Kind          Kind
	ReceivedAt    time.Time
	Name          string
	Path          string
	ExternalIDs   map[string]string
	ParentID      string
	StreamInvalid bool
}

// IsLeaf reports whether the event targets a child of a series.
func (e Event) IsLeaf() bool {
	return e.ItemType == host.TypeEpisode || e.ItemType == host.TypeSeason
}

// NeedsStreamCheck reports whether the item must be polled before enqueue.
func (e Event) NeedsStreamCheck() bool {
	return e.Kind == KindItemAdded && (e.ItemType == host.TypeMovie || e.ItemType == host.TypeEpisode)
}

// Key groups events that belong to the same unit of work.
type Key string

// WorkItem is the coalesced unit handed to the dispatcher.
type WorkItem struct {
	ParentID       string
	ParentType     string
	Name           string
	ExternalIDs    map[string]string
	ChildLeafIDs   map[string]struct{}
	InvalidStreams map[string]struct{}
	IsNewParent    bool
	DeepRefresh    bool
	Events         int
}

// NewWorkItem returns an empty item for parentID.
func NewWorkItem(parentID, parentType string) WorkItem {
	return WorkItem{
		ParentID:       parentID,
		ParentType:     parentType,
		ExternalIDs:    map[string]string{},
		ChildLeafIDs:   map[string]struct{}{},
		InvalidStreams: map[string]struct{}{},
	}
}

// ChildIDs returns the leaf ids in sorted order.
func (w WorkItem) ChildIDs() []string {
	return sortedKeys(w.ChildLeafIDs)
}

// InvalidIDs returns the ids whose streams never validated, sorted.
func (w WorkItem) InvalidIDs() []string {
	return sortedKeys(w.InvalidStreams)
}

func (w *WorkItem) absorb(ev Event) {
	w.Events++
	if ev.IsLeaf() {
		if w.ParentType == "" {
			w.ParentType = host.TypeSeries
		}
		w.ChildLeafIDs[ev.ItemID] = struct{}{}
	} else {
		w.ParentType = ev.ItemType
		if ev.Name != "" {
			w.Name = ev.Name
		}
		for k, v := range ev.ExternalIDs {
			if v != "" {
				w.ExternalIDs[k] = v
			}
		}
		if ev.Kind == KindItemAdded {
			w.IsNewParent = true
		}
	}
	if ev.StreamInvalid {
		w.InvalidStreams[ev.ItemID] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

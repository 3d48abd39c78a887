package cast

import (
	"context"
	"strconv"
	"strings"

	"curator/internal/provider/tmdb"
	"curator/internal/store"
)

// NoOrder marks a candidate without a billing position.
const NoOrder = -1

const missingOrder = 999

// External id keys used in member id maps.
const (
	IDTMDB   = "tmdb"
	IDIMDB   = "imdb"
	IDDouban = store.XrefDouban
)

// Member provenance tags.
const (
	ProvenanceHost      = "host"
	ProvenancePrimary   = "primary"
	ProvenanceSecondary = "secondary"
)

// Candidate is one actor entry produced by a metadata provider.
type Candidate struct {
	SourceID     string
	ExternalIDs  map[string]string
	Name         string
	OriginalName string
	Character    string
	Order        int
	ProfilePath  string
}

// HostActor is an actor as the library host currently lists it.
type HostActor struct {
	HostID      string
	Name        string
	Role        string
	ExternalIDs map[string]string
}

// SecondaryList is one secondary provider's unordered candidate list.
type SecondaryList struct {
	Source     string
	Candidates []Candidate
}

// Member is one reconciled cast entry.
type Member struct {
	HostID       string
	ExternalIDs  map[string]string
	Name         string
	OriginalName string
	Character    string
	Order        int
	ProfilePath  string
	Provenance   string
}

// TMDBID returns the member's TMDB person id, or 0.
func (m Member) TMDBID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(m.ExternalIDs[IDTMDB]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Entry converts the member into the persisted cast form.
func (m Member) Entry() store.CastEntry {
	var ids map[string]string
	if len(m.ExternalIDs) > 0 {
		ids = make(map[string]string, len(m.ExternalIDs))
		for k, v := range m.ExternalIDs {
			ids[k] = v
		}
	}
	return store.CastEntry{
		ID:           m.TMDBID(),
		Name:         m.Name,
		OriginalName: m.OriginalName,
		Character:    m.Character,
		Order:        m.Order,
		ProfilePath:  m.ProfilePath,
		HostID:       m.HostID,
		ExternalIDs:  ids,
		Provenance:   m.Provenance,
	}
}

// Entries converts a member list into persisted cast entries.
func Entries(members []Member) []store.CastEntry {
	out := make([]store.CastEntry, 0, len(members))
	for _, m := range members {
		out = append(out, m.Entry())
	}
	return out
}

// Input carries everything one reconciliation run consumes.
type Input struct {
	Host      []HostActor
	Primary   []Candidate
	Secondary []SecondaryList
	// Context is a title hint handed to contextual translation.
	Context string
}

// Result is the reconciled cast plus persistence counters.
type Result struct {
	Members   []Member
	Persisted int
	RowErrors int
	Discarded int
}

// Limits tunes the cap and image policy.
type Limits struct {
	MaxMembers       int
	DropWithoutImage bool
}

// ActorStore persists actors and identity cross-references.
type ActorStore interface {
	ActorByTMDB(ctx context.Context, tmdbID int64) (*store.Actor, error)
	UpsertActor(ctx context.Context, actor store.Actor) (int64, error)
	LookupXref(ctx context.Context, source, sourceID string) (int64, bool, error)
	SaveXref(ctx context.Context, source, sourceID string, tmdbID int64) error
}

// PersonDirectory is the primary provider's person lookup surface.
type PersonDirectory interface {
	FindByExternalID(ctx context.Context, source, id string) (*tmdb.FindResult, error)
	GetPerson(ctx context.Context, id int64) (*tmdb.Person, error)
}

// SecondaryDirectory resolves secondary person ids to IMDb ids.
type SecondaryDirectory interface {
	PersonExternalID(ctx context.Context, personID string) (string, error)
}

// Translator localizes names and exposes the reverse cache.
type Translator interface {
	Translate(ctx context.Context, terms []string, hint string) (map[string]string, error)
	ReverseLookup(display string) (string, bool)
	IsLocal(s string) bool
}

func sortOrder(order int) int {
	if order < 0 {
		return missingOrder
	}
	return order
}

func copyIDs(ids map[string]string) map[string]string {
	out := make(map[string]string, len(ids)+2)
	for k, v := range ids {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func mergeIDs(dst map[string]string, src map[string]string) {
	for k, v := range src {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ItemType names the kind of library item a record describes.
type ItemType string

const (
	ItemMovie   ItemType = "Movie"
	ItemSeries  ItemType = "Series"
	ItemSeason  ItemType = "Season"
	ItemEpisode ItemType = "Episode"
)

// ParseItemType maps host type strings onto ItemType, case-insensitively.
func ParseItemType(raw string) (ItemType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie":
		return ItemMovie, true
	case "series", "tv", "show":
		return ItemSeries, true
	case "season":
		return ItemSeason, true
	case "episode":
		return ItemEpisode, true
	}
	return "", false
}

// IsLeaf reports whether items of this type belong to a parent container.
func (t ItemType) IsLeaf() bool {
	return t == ItemSeason || t == ItemEpisode
}

// HasOwnFile reports whether items of this type are backed by a media file.
func (t ItemType) HasOwnFile() bool {
	return t == ItemMovie || t == ItemEpisode
}

// SubscriptionStatus tracks whether a record is wanted by the subscription
// workflow.
type SubscriptionStatus string

const (
	SubscriptionNone       SubscriptionStatus = "none"
	SubscriptionWanted     SubscriptionStatus = "wanted"
	SubscriptionSubscribed SubscriptionStatus = "subscribed"
	SubscriptionPaused     SubscriptionStatus = "paused"
	SubscriptionIgnored    SubscriptionStatus = "ignored"
)

// Key is the canonical media key shared by both stores.
type Key struct {
	ExternalID string   `json:"external_id"`
	ItemType   ItemType `json:"item_type"`
}

// String renders the key as "Type/ID", the form used in logs and review rows.
func (k Key) String() string {
	return string(k.ItemType) + "/" + k.ExternalID
}

// ParseKey is the inverse of Key.String.
func ParseKey(raw string) (Key, error) {
	typ, id, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok || strings.TrimSpace(id) == "" {
		return Key{}, fmt.Errorf("invalid media key %q", raw)
	}
	itemType, ok := ParseItemType(typ)
	if !ok {
		return Key{}, fmt.Errorf("invalid media key %q: unknown type", raw)
	}
	return Key{ExternalID: strings.TrimSpace(id), ItemType: itemType}, nil
}

// Valid reports whether both halves of the key are set.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.ExternalID) != "" && k.ItemType != ""
}

// CastEntry is one reconciled cast member as stored on a record and written
// into override documents. Field order is fixed so both stores serialise to
// identical bytes.
type CastEntry struct {
	ID           int64             `json:"id,omitempty"`
	Name         string            `json:"name"`
	OriginalName string            `json:"original_name,omitempty"`
	Character    string            `json:"character,omitempty"`
	Order        int               `json:"order"`
	ProfilePath  string            `json:"profile_path,omitempty"`
	HostID       string            `json:"emby_person_id,omitempty"`
	ExternalIDs  map[string]string `json:"external_ids,omitempty"`
	Provenance   string            `json:"provenance,omitempty"`
}

// EncodeCast returns the canonical serialisation of a cast list.
func EncodeCast(cast []CastEntry) ([]byte, error) {
	if cast == nil {
		cast = []CastEntry{}
	}
	return json.Marshal(cast)
}

// Record is the canonical relational row for one movie or series.
type Record struct {
	Key
	Title               string
	OriginalTitle       string
	Year                int
	Overview            string
	Genres              []string
	PosterPath          string
	BackdropPath        string
	Cast                []CastEntry
	ExpectedCast        int
	InLibrary           bool
	SubscriptionStatus  SubscriptionStatus
	HostItemID          string
	TotalEpisodes       int
	TotalEpisodesLocked bool
	LastSyncedAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayName renders "Title (Year)" for logs and review rows.
func (r *Record) DisplayName() string {
	if r == nil {
		return ""
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = r.Key.String()
	}
	if r.Year > 0 {
		return fmt.Sprintf("%s (%d)", title, r.Year)
	}
	return title
}

// Child is one season or episode row owned by a series record.
type Child struct {
	ParentExternalID string
	ItemType         ItemType
	SeasonNumber     int
	EpisodeNumber    int
	Title            string
	Overview         string
	AirDate          string
	AssetPath        string
	InLibrary        bool
	HostItemID       string
	EpisodeCount     int
	CountLocked      bool
	UpdatedAt        time.Time
}

// ChildRef addresses one season (EpisodeNumber 0) or episode row.
type ChildRef struct {
	SeasonNumber  int
	EpisodeNumber int
	HostItemID    string
}

// Actor is one row of the shared actor table.
type Actor struct {
	ID           int64
	TMDBID       int64
	IMDBID       string
	DoubanID     string
	HostID       string
	Name         string
	OriginalName string
	ProfilePath  string
	UpdatedAt    time.Time
}

// LogEntry is a processed or failed log row.
type LogEntry struct {
	Key         string
	DisplayName string
	Score       float64
	Reason      string
	At          time.Time
}

// ReviewEntry is one manual review queue row.
type ReviewEntry struct {
	Key         string
	DisplayName string
	Reason      string
	Score       float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats summarises table sizes for status reporting.
type Stats struct {
	Records   int
	InLibrary int
	Children  int
	Actors    int
	Processed int
	Failed    int
	Review    int
}

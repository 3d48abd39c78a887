package host

import "strings"

// Item mirrors the subset of the host item payload the pipeline consumes.
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	OriginalTitle     string            `json:"OriginalTitle,omitempty"`
	Type              string            `json:"Type"`
	Path              string            `json:"Path,omitempty"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	ProviderIDs       map[string]string `json:"ProviderIds,omitempty"`
	ParentID          string            `json:"ParentId,omitempty"`
	SeriesID          string            `json:"SeriesId,omitempty"`
	SeasonID          string            `json:"SeasonId,omitempty"`
	IndexNumber       int               `json:"IndexNumber,omitempty"`
	ParentIndexNumber int               `json:"ParentIndexNumber,omitempty"`
	Genres            []string          `json:"Genres,omitempty"`
	People            []Person          `json:"People,omitempty"`
	MediaStreams      []MediaStream     `json:"MediaStreams,omitempty"`
}

// Person is a cast or crew entry attached to an item.
type Person struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Role        string            `json:"Role,omitempty"`
	Type        string            `json:"Type,omitempty"`
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// MediaStream describes one stream of a media file.
type MediaStream struct {
	Type   string `json:"Type"`
	Codec  string `json:"Codec,omitempty"`
	Width  int    `json:"Width,omitempty"`
	Height int    `json:"Height,omitempty"`
}

// Item types reported by the host.
const (
	TypeMovie   = "Movie"
	TypeSeries  = "Series"
	TypeSeason  = "Season"
	TypeEpisode = "Episode"
)

// HasValidVideo reports whether at least one stream carries a decodable
// video track.
func (i *Item) HasValidVideo() bool {
	if i == nil {
		return false
	}
	for _, stream := range i.MediaStreams {
		if stream.Width > 0 && strings.TrimSpace(stream.Codec) != "" {
			return true
		}
	}
	return false
}

// ProviderID returns the provider id for name, matching keys case-insensitively.
func (i *Item) ProviderID(name string) string {
	if i == nil {
		return ""
	}
	return lookupProvider(i.ProviderIDs, name)
}

// ContainerID returns the id of the item that owns this one for grouping:
// the series for seasons and episodes, the item itself otherwise.
func (i *Item) ContainerID() string {
	if i == nil {
		return ""
	}
	switch i.Type {
	case TypeEpisode, TypeSeason:
		if i.SeriesID != "" {
			return i.SeriesID
		}
		return i.ParentID
	}
	return i.ID
}

// Actors returns the people credited as performers.
func (i *Item) Actors() []Person {
	if i == nil {
		return nil
	}
	out := make([]Person, 0, len(i.People))
	for _, p := range i.People {
		switch p.Type {
		case "Actor", "GuestStar", "":
			out = append(out, p)
		}
	}
	return out
}

// ProviderID returns the provider id for name, matching keys case-insensitively.
func (p Person) ProviderID(name string) string {
	return lookupProvider(p.ProviderIDs, name)
}

func lookupProvider(ids map[string]string, name string) string {
	if v, ok := ids[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range ids {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

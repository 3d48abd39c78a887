package overrides

import "curator/internal/store"

// Genre mirrors the provider genre object embedded in override documents.
type Genre struct {
	Name string `json:"name"`
}

// Credits wraps the cast array the host reads from every document.
type Credits struct {
	Cast []store.CastEntry `json:"cast"`
}

// Document is the primary override document (all.json for movies,
// series.json for series).
type Document struct {
	ID               string   `json:"id"`
	Title            string   `json:"title,omitempty"`
	OriginalTitle    string   `json:"original_title,omitempty"`
	Year             int      `json:"year,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	Genres           []Genre  `json:"genres,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	BackdropPath     string   `json:"backdrop_path,omitempty"`
	NumberOfEpisodes int      `json:"number_of_episodes,omitempty"`
	EpisodesLocked   bool     `json:"episodes_locked,omitempty"`
	ExpectedCast     int      `json:"expected_cast,omitempty"`
	HostItemID       string   `json:"host_item_id,omitempty"`
	Credits          Credits  `json:"credits"`
	Keywords         []string `json:"keywords,omitempty"`
}

// SeasonDocument is season-<n>.json.
type SeasonDocument struct {
	SeasonNumber int     `json:"season_number"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	AirDate      string  `json:"air_date,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	EpisodeCount int     `json:"episode_count,omitempty"`
	CountLocked  bool    `json:"episode_count_locked,omitempty"`
	InLibrary    bool    `json:"in_library,omitempty"`
	HostItemID   string  `json:"host_item_id,omitempty"`
	Credits      Credits `json:"credits"`
}

// EpisodeDocument is season-<n>-episode-<m>.json.
type EpisodeDocument struct {
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	AirDate       string  `json:"air_date,omitempty"`
	StillPath     string  `json:"still_path,omitempty"`
	InLibrary     bool    `json:"in_library,omitempty"`
	HostItemID    string  `json:"host_item_id,omitempty"`
	Credits       Credits `json:"credits"`
}

// Tree is every document stored for one canonical key.
type Tree struct {
	Key      store.Key
	Primary  Document
	Seasons  []SeasonDocument
	Episodes []EpisodeDocument
}

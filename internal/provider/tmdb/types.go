package tmdb

import (
	"strconv"
	"strings"
)

// Media types accepted by the API.
const (
	MediaMovie = "movie"
	MediaTV    = "tv"
)

// Result represents a single TMDB search match.
type Result struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
	MediaType     string  `json:"media_type"`
	Popularity    float64 `json:"popularity"`
	VoteCount     int64   `json:"vote_count"`
}

// DisplayTitle returns the localized title for movies or shows.
func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Year returns the release year, or 0 when unknown.
func (r Result) Year() int {
	return parseYear(firstNonEmpty(r.ReleaseDate, r.FirstAirDate))
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Genre is a TMDB genre label.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CastMember is one credited performer.
type CastMember struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	OriginalName       string `json:"original_name"`
	Character          string `json:"character"`
	Order              int    `json:"order"`
	ProfilePath        string `json:"profile_path"`
	KnownForDepartment string `json:"known_for_department,omitempty"`
}

// AggregateRole is one role an actor played across a series.
type AggregateRole struct {
	Character    string `json:"character"`
	EpisodeCount int    `json:"episode_count"`
}

// AggregateCastMember is a performer credited across all seasons of a show.
type AggregateCastMember struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	OriginalName      string          `json:"original_name"`
	ProfilePath       string          `json:"profile_path"`
	Order             int             `json:"order"`
	Roles             []AggregateRole `json:"roles"`
	TotalEpisodeCount int             `json:"total_episode_count"`
}

// Credits wraps the cast list attached to a detail response.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// AggregateCredits wraps the series-wide cast list.
type AggregateCredits struct {
	Cast []AggregateCastMember `json:"cast"`
}

// ExternalIDs lists the ids other databases use for the same entity.
type ExternalIDs struct {
	IMDbID string `json:"imdb_id"`
	TVDBID int64  `json:"tvdb_id,omitempty"`
}

// SeasonSummary is the short season entry embedded in TV details.
type SeasonSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"`
	AirDate      string `json:"air_date"`
}

// Details is the movie or TV detail payload with credits appended.
type Details struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	Name             string            `json:"name"`
	OriginalTitle    string            `json:"original_title"`
	OriginalName     string            `json:"original_name"`
	Overview         string            `json:"overview"`
	ReleaseDate      string            `json:"release_date"`
	FirstAirDate     string            `json:"first_air_date"`
	PosterPath       string            `json:"poster_path"`
	BackdropPath     string            `json:"backdrop_path"`
	Genres           []Genre           `json:"genres"`
	NumberOfEpisodes int               `json:"number_of_episodes"`
	NumberOfSeasons  int               `json:"number_of_seasons"`
	Seasons          []SeasonSummary   `json:"seasons"`
	Credits          Credits           `json:"credits"`
	AggregateCredits *AggregateCredits `json:"aggregate_credits,omitempty"`
	ExternalIDs      ExternalIDs       `json:"external_ids"`
	MediaType        string            `json:"media_type"`
}

// DisplayTitle returns the localized title.
func (d *Details) DisplayTitle() string {
	return firstNonEmpty(d.Title, d.Name)
}

// Original returns the original-language title.
func (d *Details) Original() string {
	return firstNonEmpty(d.OriginalTitle, d.OriginalName)
}

// Year returns the release or first-air year, or 0 when unknown.
func (d *Details) Year() int {
	return parseYear(firstNonEmpty(d.ReleaseDate, d.FirstAirDate))
}

// GenreNames flattens the genre list.
func (d *Details) GenreNames() []string {
	out := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		if g.Name != "" {
			out = append(out, g.Name)
		}
	}
	return out
}

// Episode describes a single TMDB episode entry.
type Episode struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Runtime       int    `json:"runtime"`
	AirDate       string `json:"air_date"`
	StillPath     string `json:"still_path"`
}

// SeasonDetails captures the full TMDB season payload (episodes included).
type SeasonDetails struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview"`
	SeasonNumber int       `json:"season_number"`
	PosterPath   string    `json:"poster_path"`
	AirDate      string    `json:"air_date"`
	Episodes     []Episode `json:"episodes"`
}

// SeriesAggregate bundles show details with every season's episode list.
type SeriesAggregate struct {
	Details *Details
	Seasons []SeasonDetails
}

// FindResult is the response of a lookup by foreign id.
type FindResult struct {
	MovieResults  []Result       `json:"movie_results"`
	TVResults     []Result       `json:"tv_results"`
	PersonResults []PersonResult `json:"person_results"`
}

// PersonResult is a person match returned by a foreign id lookup.
type PersonResult struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
}

// Person is the detail payload for a performer.
type Person struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	AlsoKnownAs []string    `json:"also_known_as"`
	ProfilePath string      `json:"profile_path"`
	IMDbID      string      `json:"imdb_id"`
	ExternalIDs ExternalIDs `json:"external_ids"`
}

// IMDb returns the person's IMDb id from whichever field carries it.
func (p *Person) IMDb() string {
	return firstNonEmpty(p.IMDbID, p.ExternalIDs.IMDbID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

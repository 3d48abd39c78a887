package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"curator/internal/services"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the attempt count and base backoff.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.retryDelay = delay
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: defaultTimeout},
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Language returns the default response language.
func (c *Client) Language() string {
	return c.language
}

// GetDetails fetches movie or TV details with the cast attached. For TV the
// series-wide aggregate cast is flattened into Credits.Cast. An empty language
// uses the client default.
func (c *Client) GetDetails(ctx context.Context, id int64, mediaType, language string) (*Details, error) {
	if id <= 0 {
		return nil, errors.New("tmdb id must be positive")
	}
	mediaType, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	appended := "credits,external_ids"
	if mediaType == MediaTV {
		appended = "aggregate_credits,external_ids"
	}
	params.Set("append_to_response", appended)
	if language != "" {
		params.Set("language", language)
	}

	var payload Details
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d", mediaType, id), params, "details", &payload); err != nil {
		return nil, err
	}
	payload.MediaType = mediaType
	if payload.AggregateCredits != nil && len(payload.Credits.Cast) == 0 {
		payload.Credits.Cast = flattenAggregate(payload.AggregateCredits.Cast)
	}
	return &payload, nil
}

// Search runs a movie or TV title search with an optional year filter.
func (c *Client) Search(ctx context.Context, query, mediaType string, year int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	mediaType, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("query", query)
	if year > 0 {
		if mediaType == MediaMovie {
			params.Set("primary_release_year", strconv.Itoa(year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(year))
		}
	}
	var payload Response
	if err := c.getJSON(ctx, "/search/"+mediaType, params, mediaType+" search", &payload); err != nil {
		return nil, err
	}
	for i := range payload.Results {
		payload.Results[i].MediaType = mediaType
	}
	return &payload, nil
}

// GetSeasonDetails fetches the full season metadata for a TV show, including episodes.
func (c *Client) GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*SeasonDetails, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	if seasonNumber < 0 {
		return nil, errors.New("season number must not be negative")
	}
	var payload SeasonDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/tv/%d/season/%d", showID, seasonNumber), nil, "season fetch", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// AggregateSeriesData fetches show details followed by every listed season.
// Specials (season 0) are included when the show lists them.
func (c *Client) AggregateSeriesData(ctx context.Context, showID int64) (*SeriesAggregate, error) {
	details, err := c.GetDetails(ctx, showID, MediaTV, "")
	if err != nil {
		return nil, err
	}
	agg := &SeriesAggregate{Details: details}
	for _, summary := range details.Seasons {
		if err := ctx.Err(); err != nil {
			return nil, services.Cancelled(err)
		}
		season, err := c.GetSeasonDetails(ctx, showID, summary.SeasonNumber)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("season %d: %w", summary.SeasonNumber, err)
		}
		agg.Seasons = append(agg.Seasons, *season)
	}
	sort.Slice(agg.Seasons, func(i, j int) bool {
		return agg.Seasons[i].SeasonNumber < agg.Seasons[j].SeasonNumber
	})
	return agg, nil
}

// FindByExternalID resolves a foreign id (source such as "imdb_id").
func (c *Client) FindByExternalID(ctx context.Context, source, id string) (*FindResult, error) {
	source = strings.TrimSpace(source)
	id = strings.TrimSpace(id)
	if source == "" || id == "" {
		return nil, errors.New("external source and id required")
	}
	params := url.Values{}
	params.Set("external_source", source)
	var payload FindResult
	if err := c.getJSON(ctx, "/find/"+url.PathEscape(id), params, "find", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetPerson fetches person details including external ids.
func (c *Client) GetPerson(ctx context.Context, id int64) (*Person, error) {
	if id <= 0 {
		return nil, errors.New("person id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "external_ids")
	var payload Person
	if err := c.getJSON(ctx, fmt.Sprintf("/person/%d", id), params, "person", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, label string, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if params.Get("language") == "" && c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	err = retry.Do(
		func() error {
			return c.fetch(ctx, endpoint.String(), label, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, services.ErrTransient) }),
	)
	if err != nil && ctx.Err() != nil {
		return services.Cancelled(ctx.Err())
	}
	return err
}

func (c *Client) fetch(ctx context.Context, endpoint, label string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("%w: execute request (latency=%v): %w", services.ErrTransient, latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: tmdb %s returned 404", services.ErrNotFound, label)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: tmdb %s returned %d (latency=%v)", services.ErrTransient, label, resp.StatusCode, latency)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("tmdb %s returned %d (latency=%v)", label, resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb %s response: %w", label, err)
	}
	return nil
}

func normalizeMediaType(mediaType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case MediaMovie, "movies":
		return MediaMovie, nil
	case MediaTV, "series", "show":
		return MediaTV, nil
	default:
		return "", fmt.Errorf("unsupported tmdb media type %q", mediaType)
	}
}

// flattenAggregate converts the series-wide cast into per-title credits,
// keeping each actor's most-played role first.
func flattenAggregate(members []AggregateCastMember) []CastMember {
	out := make([]CastMember, 0, len(members))
	for _, m := range members {
		roles := append([]AggregateRole(nil), m.Roles...)
		sort.SliceStable(roles, func(i, j int) bool { return roles[i].EpisodeCount > roles[j].EpisodeCount })
		names := make([]string, 0, len(roles))
		for _, r := range roles {
			if r.Character = strings.TrimSpace(r.Character); r.Character != "" {
				names = append(names, r.Character)
			}
		}
		out = append(out, CastMember{
			ID:           m.ID,
			Name:         m.Name,
			OriginalName: m.OriginalName,
			Character:    strings.Join(names, " / "),
			Order:        m.Order,
			ProfilePath:  m.ProfilePath,
		})
	}
	return out
}

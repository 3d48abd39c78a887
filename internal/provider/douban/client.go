package douban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"curator/internal/config"
	"curator/internal/services"
	"curator/internal/textutil"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Subject is a matched title on the provider.
type Subject struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	Year          string `json:"year"`
	Type          string `json:"type"`
}

// Credit is one performer in a subject's cast list.
type Credit struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LatinName string `json:"latin_name"`
	Character string `json:"character"`
	Avatar    struct {
		Large string `json:"large"`
	} `json:"avatar"`
}

// Person is the celebrity detail payload.
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IMDbID string `json:"imdb"`
}

// Client talks to the provider's JSON API.
type Client struct {
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
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

// WithLimiter replaces the request limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New constructs a client from configuration.
func New(cfg config.Douban, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("douban base url required")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MatchIdentity finds the provider subject for a title. An IMDb id, when
// known, is tried first; otherwise the best title search hit whose year
// agrees wins. No match returns services.ErrNotFound.
func (c *Client) MatchIdentity(ctx context.Context, name, imdbID, mediaType string, year int) (*Subject, error) {
	if imdbID = strings.TrimSpace(imdbID); imdbID != "" {
		var subject Subject
		err := c.getJSON(ctx, "/imdb/"+url.PathEscape(imdbID), nil, &subject)
		if err == nil && subject.ID != "" {
			return &subject, nil
		}
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: douban subject without title", services.ErrNotFound)
	}
	params := url.Values{}
	params.Set("q", name)
	if kind := subjectKind(mediaType); kind != "" {
		params.Set("type", kind)
	}
	var payload struct {
		Items []Subject `json:"items"`
	}
	if err := c.getJSON(ctx, "/search/subjects", params, &payload); err != nil {
		return nil, err
	}
	for _, item := range payload.Items {
		if !textutil.EqualNames(item.Title, name) && !textutil.EqualNames(item.OriginalTitle, name) {
			continue
		}
		if year > 0 && item.Year != "" && item.Year != strconv.Itoa(year) {
			continue
		}
		match := item
		return &match, nil
	}
	return nil, fmt.Errorf("%w: douban subject %q", services.ErrNotFound, name)
}

// GetCredits returns the performer list for a matched subject.
func (c *Client) GetCredits(ctx context.Context, subjectID, mediaType string) ([]Credit, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, errors.New("subject id required")
	}
	kind := subjectKind(mediaType)
	if kind == "" {
		kind = "movie"
	}
	var payload struct {
		Actors []Credit `json:"actors"`
	}
	if err := c.getJSON(ctx, "/"+kind+"/"+url.PathEscape(subjectID)+"/celebrities", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Actors, nil
}

// PersonExternalID returns the IMDb id recorded for a performer, or "" when
// the provider has none.
func (c *Client) PersonExternalID(ctx context.Context, personID string) (string, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return "", errors.New("person id required")
	}
	var person Person
	if err := c.getJSON(ctx, "/celebrity/"+url.PathEscape(personID), nil, &person); err != nil {
		return "", err
	}
	return strings.TrimSpace(person.IMDbID), nil
}

// getJSON waits on the limiter before every attempt, so retries of 429 and
// 5xx responses still respect the request rate.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(fmt.Errorf("%w: douban rate limit wait: %w", services.ErrCancelled, err))
			}
			return c.fetch(ctx, endpoint, path, out)
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

func (c *Client) fetch(ctx context.Context, endpoint, path string, out any) error {
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
		return fmt.Errorf("%w: douban %s", services.ErrNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: douban %s returned %d (latency=%v)", services.ErrTransient, path, resp.StatusCode, latency)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("douban %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode douban response: %w", err)
	}
	return nil
}

func subjectKind(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "movie":
		return "movie"
	case "tv", "series", "season", "episode":
		return "tv"
	}
	return ""
}

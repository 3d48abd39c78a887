package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"curator/internal/config"
	"curator/internal/services"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
	defaultPageSize   = 200
)

// DefaultFields are requested on every detail lookup.
var DefaultFields = []string{"ProviderIds", "Path", "Genres", "People", "MediaStreams", "OriginalTitle"}

// HTTPDoer describes the HTTP client used by the host client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin Emby/Jellyfin REST client.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	pageSize   int
	attempts   uint
	retryDelay time.Duration
	client     HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRetryDelay overrides the base backoff between attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// New constructs a host client from configuration.
func New(cfg config.Host, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: host url required", services.ErrConfiguration)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: host api key required", services.ErrConfiguration)
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	attempts := uint(1)
	if cfg.MaxRetries > 0 {
		attempts += uint(cfg.MaxRetries)
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		userID:     strings.TrimSpace(cfg.UserID),
		pageSize:   pageSize,
		attempts:   attempts,
		retryDelay: defaultRetryDelay,
		client:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PageSize returns the configured library page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// GetItemDetails fetches one item. A missing item returns services.ErrNotFound.
func (c *Client) GetItemDetails(ctx context.Context, id string, fields ...string) (*Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: item id required", services.ErrValidation)
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}
	params := url.Values{}
	params.Set("Fields", strings.Join(fields, ","))
	var item Item
	if err := c.getJSON(ctx, c.itemsPath()+"/"+url.PathEscape(id), params, &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, fmt.Errorf("%w: host item %s", services.ErrNotFound, id)
	}
	return &item, nil
}

// GetItemsByIDs fetches several items in one request. Unknown ids are
// silently absent from the result.
func (c *Client) GetItemsByIDs(ctx context.Context, ids []string, fields ...string) ([]Item, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}
	params := url.Values{}
	params.Set("Ids", strings.Join(clean, ","))
	params.Set("Fields", strings.Join(fields, ","))
	var payload itemsResponse
	if err := c.getJSON(ctx, c.itemsPath(), params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// ListItems pages through the library for the given item types.
func (c *Client) ListItems(ctx context.Context, types []string, start, limit int) ([]Item, int, error) {
	if limit <= 0 {
		limit = c.pageSize
	}
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", strings.Join(types, ","))
	params.Set("StartIndex", strconv.Itoa(start))
	params.Set("Limit", strconv.Itoa(limit))
	params.Set("Fields", "ProviderIds,Path")
	params.Set("SortBy", "SortName")
	var payload itemsResponse
	if err := c.getJSON(ctx, c.itemsPath(), params, &payload); err != nil {
		return nil, 0, err
	}
	return payload.Items, payload.TotalRecordCount, nil
}

// RefreshByID asks the host to re-read metadata for one item, picking up the
// override files written for it.
func (c *Client) RefreshByID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: item id required", services.ErrValidation)
	}
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("MetadataRefreshMode", "FullRefresh")
	params.Set("ImageRefreshMode", "Default")
	params.Set("ReplaceAllMetadata", "false")
	return c.send(ctx, http.MethodPost, "/Items/"+url.PathEscape(id)+"/Refresh", params, nil)
}

// RefreshByPath notifies the host that a filesystem path changed.
func (c *Client) RefreshByPath(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: path required", services.ErrValidation)
	}
	body := map[string]any{
		"Updates": []map[string]string{{"Path": path, "UpdateType": "Modified"}},
	}
	return c.send(ctx, http.MethodPost, "/Library/Media/Updated", nil, body)
}

type virtualFolder struct {
	Name      string   `json:"Name"`
	ItemID    string   `json:"ItemId"`
	Locations []string `json:"Locations"`
}

// FindNearestKnownAncestor returns the library folder that contains path,
// preferring the deepest matching location.
func (c *Client) FindNearestKnownAncestor(ctx context.Context, path string) (string, string, bool, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return "", "", false, fmt.Errorf("%w: path required", services.ErrValidation)
	}
	var folders []virtualFolder
	if err := c.getJSON(ctx, "/Library/VirtualFolders", nil, &folders); err != nil {
		return "", "", false, err
	}
	var bestID, bestName string
	bestLen := -1
	for _, folder := range folders {
		for _, loc := range folder.Locations {
			loc = filepath.Clean(loc)
			if !withinDir(path, loc) || len(loc) <= bestLen {
				continue
			}
			bestID, bestName, bestLen = folder.ItemID, folder.Name, len(loc)
		}
	}
	return bestID, bestName, bestLen >= 0, nil
}

// HealthCheck verifies the host answers authenticated requests.
func (c *Client) HealthCheck(ctx context.Context) error {
	var info map[string]any
	return c.getJSON(ctx, "/System/Info", nil, &info)
}

func withinDir(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c *Client) itemsPath() string {
	if c.userID != "" {
		return "/Users/" + url.PathEscape(c.userID) + "/Items"
	}
	return "/Items"
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, body any) error {
	return c.do(ctx, method, path, params, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode host request: %w", err)
		}
		payload = encoded
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	err := retry.Do(
		func() error {
			return c.attempt(ctx, method, endpoint, payload, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		if ctx.Err() != nil {
			return services.Cancelled(ctx.Err())
		}
		return err
	}
	return nil
}

type statusError struct {
	method string
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	msg := fmt.Sprintf("host %s %s returned %d", e.method, e.path, e.status)
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build host request: %w", err))
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: host request: %w", services.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: host item at %s", services.ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &statusError{method: method, path: req.URL.Path, status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", services.ErrTransient, statusErr)
		}
		return statusErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode host response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, services.ErrTransient)
}

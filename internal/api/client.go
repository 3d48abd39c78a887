package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultClientTimeout = 15 * time.Second

// ErrDaemonUnavailable is returned when nothing listens on the API address.
var ErrDaemonUnavailable = errors.New("daemon api unavailable")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for the daemon bound at bind ("host:port" or a
// full URL). token is sent as a bearer token when non-empty.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is not configured")
	}
	base := bind
	if !strings.Contains(base, "://") {
		host, port, err := net.SplitHostPort(bind)
		if err != nil {
			return nil, fmt.Errorf("parse api bind %q: %w", bind, err)
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		base = "http://" + net.JoinHostPort(host, port)
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

// Status fetches the daemon status snapshot.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", &out)
	return out, err
}

// ListReview fetches the review queue.
func (c *Client) ListReview(ctx context.Context) ([]ReviewItem, error) {
	var out ReviewListResponse
	if err := c.do(ctx, http.MethodGet, "/api/review", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ClearReview removes one review row.
func (c *Client) ClearReview(ctx context.Context, itemType, externalID string) (ReviewClearResponse, error) {
	var out ReviewClearResponse
	path := "/api/review/" + url.PathEscape(itemType) + "/" + url.PathEscape(externalID)
	err := c.do(ctx, http.MethodDelete, path, &out)
	return out, err
}

// Reprocess dispatches the host item for processing.
func (c *Client) Reprocess(ctx context.Context, hostItemID string, deep bool) (ReprocessResponse, error) {
	var out ReprocessResponse
	path := "/api/reprocess/" + url.PathEscape(hostItemID)
	if deep {
		path += "?deep=1"
	}
	err := c.do(ctx, http.MethodPost, path, &out)
	return out, err
}

// Scan starts a library scan.
func (c *Client) Scan(ctx context.Context, deep bool) (ScanResponse, error) {
	var out ScanResponse
	path := "/api/scan"
	if deep {
		path += "?deep=1"
	}
	err := c.do(ctx, http.MethodPost, path, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w at %s: %w", ErrDaemonUnavailable, c.baseURL, err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

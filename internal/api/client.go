package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/usage"
)

// Client talks to a running server's local API. Command-line tools use it
// while the server holds the store open.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL (e.g. http://127.0.0.1:8765).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Health returns nil when the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Today returns progress toward every goal.
func (c *Client) Today(ctx context.Context) ([]usage.Progress, error) {
	var resp struct {
		Goals []usage.Progress `json:"goals"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/usage/today", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Goals, nil
}

// Goals returns the stored goals.
func (c *Client) Goals(ctx context.Context) (storage.Goals, error) {
	var resp struct {
		Goals storage.Goals `json:"goals"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/goals", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Goals, nil
}

// SetGoal stores the daily limit for a domain. A zero limit removes it.
func (c *Client) SetGoal(ctx context.Context, name string, limit time.Duration) error {
	ms := limit.Milliseconds()
	return c.do(ctx, http.MethodPut, "/api/goals/"+url.PathEscape(name), goalRequest{Limit: &ms}, nil)
}

// DeleteGoal removes a goal, returning storage.ErrNotFound when none is set.
func (c *Client) DeleteGoal(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/goals/"+url.PathEscape(name), nil, nil)
}

// List returns the domains in a stored list.
func (c *Client) List(ctx context.Context, key string) ([]string, error) {
	var resp struct {
		Domains []string `json:"domains"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/"+key, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

// AddToList adds a domain to a stored list.
func (c *Client) AddToList(ctx context.Context, key, name string) error {
	return c.do(ctx, http.MethodPost, "/api/"+key, listRequest{Domain: name}, nil)
}

// RemoveFromList removes a domain, returning storage.ErrNotFound when it is
// not in the list.
func (c *Client) RemoveFromList(ctx context.Context, key, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/"+key+"/"+url.PathEscape(name), nil, nil)
}

// TimeRange returns the stored report window in days.
func (c *Client) TimeRange(ctx context.Context) (int, error) {
	var resp timeRangeRequest
	if err := c.do(ctx, http.MethodGet, "/api/time-range", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Days, nil
}

// Report returns the server's report. Non-positive days uses the stored
// time range; non-positive limit returns every entry.
func (c *Client) Report(ctx context.Context, days, limit int) (report.Report, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/report"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var rep report.Report
	if err := c.do(ctx, http.MethodGet, path, nil, &rep); err != nil {
		return report.Report{}, err
	}
	rep.Total = time.Duration(rep.TotalMS) * time.Millisecond
	return rep, nil
}

// Check explains what a tick would do for rawURL.
func (c *Client) Check(ctx context.Context, rawURL string) (usage.Check, error) {
	var check usage.Check
	path := "/api/check?" + url.Values{"url": {rawURL}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &check); err != nil {
		return usage.Check{}, err
	}
	return check, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Message)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

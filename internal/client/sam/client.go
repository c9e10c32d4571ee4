// Package sam is a minimal client for the SAM.gov opportunities search API
// (v2, GET with query parameters). It owns rate-limit and server-error
// retries so callers only ever see a page of records or a fatal error.
package sam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultHost is the v2 search endpoint (no /prod prefix).
	DefaultHost = "https://api.sam.gov/opportunities/v2/search"

	// dateFormat is the upstream contract: both window bounds are
	// zero-padded MM/DD/YYYY.
	dateFormat = "01/02/2006"
)

type Client struct {
	host        string
	apiKey      string
	httpClient  *http.Client
	logger      *zap.Logger
	maxTries    int
	backoffBase time.Duration
	backoffMax  time.Duration
}

type Options struct {
	Host        string
	APIKey      string
	MaxTries    int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *zap.Logger
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	host := strings.TrimRight(opts.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	maxTries := opts.MaxTries
	if maxTries <= 0 {
		maxTries = 8
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	max := opts.BackoffMax
	if max <= 0 {
		max = 60 * time.Second
	}
	return &Client{
		host:        host,
		apiKey:      opts.APIKey,
		httpClient:  httpClient,
		logger:      opts.Logger,
		maxTries:    maxTries,
		backoffBase: base,
		backoffMax:  max,
	}
}

// SearchParams bounds one page request. PostedFrom/PostedTo are calendar
// dates (PostedTo must not precede PostedFrom); Zip, NAICS and SetAside are
// optional narrowing filters.
type SearchParams struct {
	PostedFrom time.Time
	PostedTo   time.Time
	Limit      int
	Offset     int
	Zip        string
	NAICS      string
	SetAside   string
}

func (p SearchParams) values(apiKey string) url.Values {
	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("postedFrom", p.PostedFrom.Format(dateFormat))
	q.Set("postedTo", p.PostedTo.Format(dateFormat))
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	if p.Zip != "" {
		q.Set("zipcode", p.Zip)
	}
	if p.NAICS != "" {
		q.Set("naics", p.NAICS)
	}
	if p.SetAside != "" {
		q.Set("setAside", p.SetAside)
	}
	return q
}

// SearchPage fetches one page of notices. 429s and 5xx are retried with
// jittered exponential backoff, each under its own attempt budget; any other
// non-success status fails immediately with *APIError. The total count is a
// best-effort upstream hint, falling back to the page length.
func (c *Client) SearchPage(ctx context.Context, p SearchParams) ([]map[string]any, int, error) {
	body, err := c.getWithBackoff(ctx, p.values(c.apiKey))
	if err != nil {
		return nil, 0, err
	}
	return decodeEnvelope(body)
}

func (c *Client) getWithBackoff(ctx context.Context, query url.Values) ([]byte, error) {
	fullURL := c.host + "?" + query.Encode()
	target := redactKey(fullURL)

	rateTries, serverTries, attempt := 0, 0, 0
	lastStatus := 0
	lastBody := ""
	for rateTries < c.maxTries && serverTries < c.maxTries {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		status := resp.StatusCode
		lastStatus = status
		lastBody = string(body)
		c.logAttempt(status, attempt, target)

		switch {
		case status == http.StatusTooManyRequests:
			rateTries++
			delay := retryDelay(c.backoffBase, c.backoffMax, rateTries-1, resp.Header.Get("Retry-After"), rand.Float64)
			c.logBackoff("sam rate limited", status, rateTries, delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		case status >= 500 && status < 600:
			serverTries++
			delay := retryDelay(c.backoffBase, c.backoffMax, serverTries-1, "", rand.Float64)
			c.logBackoff("sam server error", status, serverTries, delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		case status < 200 || status >= 300:
			return nil, &APIError{Status: status, Body: truncateBody(lastBody, 500)}
		default:
			return body, nil
		}
	}
	return nil, fmt.Errorf("gave up after %d attempts; last status %d: %s", c.maxTries, lastStatus, truncateBody(lastBody, 500))
}

// retryDelay picks the next pause: an explicit Retry-After wins when
// parseable (floored at one second), otherwise exponential growth from base;
// either way ±30% jitter is applied and the result never exceeds max.
func retryDelay(base, max time.Duration, attempt int, retryAfter string, jitter func() float64) time.Duration {
	var d time.Duration
	if ra := strings.TrimSpace(retryAfter); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			if secs < 1 {
				secs = 1
			}
			d = time.Duration(secs) * time.Second
		}
	}
	if d == 0 {
		d = base
		for i := 0; i < attempt && d < max; i++ {
			d *= 2
		}
	}
	if jitter != nil {
		d = time.Duration(float64(d) * (1.0 + jitter()*0.6 - 0.3))
	}
	if d > max {
		d = max
	}
	if d < 0 {
		d = 0
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// decodeEnvelope tolerates the envelope shapes SAM has shipped over time:
// an optional "result" wrapper, items under opportunitiesData, searchResults
// or data, and a total under totalRecords or totalrecords.
func decodeEnvelope(body []byte) ([]map[string]any, int, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	result := payload
	if nested, ok := payload["result"].(map[string]any); ok && len(nested) > 0 {
		result = nested
	}

	var items []map[string]any
	for _, key := range []string{"opportunitiesData", "searchResults", "data"} {
		arr, ok := result[key].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		items = make([]map[string]any, 0, len(arr))
		for _, it := range arr {
			if m, ok := it.(map[string]any); ok {
				items = append(items, m)
			}
		}
		break
	}

	total := len(items)
	for _, key := range []string{"totalRecords", "totalrecords"} {
		switch n := result[key].(type) {
		case float64:
			if n != 0 {
				total = int(n)
			} else {
				continue
			}
		case string:
			v, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil || v == 0 {
				continue
			}
			total = v
		default:
			continue
		}
		break
	}
	return items, total, nil
}

func (c *Client) logAttempt(status, attempt int, target string) {
	if c.logger == nil {
		return
	}
	c.logger.Info("sam search",
		zap.Int("status", status),
		zap.Int("attempt", attempt),
		zap.Int("max_tries", c.maxTries),
		zap.String("url", target),
	)
}

func (c *Client) logBackoff(msg string, status, attempt int, delay time.Duration) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg,
		zap.Int("status", status),
		zap.Int("attempt", attempt),
		zap.Duration("sleep", delay),
	)
}

// redactKey blanks the api_key query value so request URLs are loggable.
func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api_key") != "" {
		q.Set("api_key", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

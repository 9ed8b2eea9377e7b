/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultBaseURL = "http://cluebase.lukelav.in"

	maxResponseSize int64 = 8 << 20
)

// Source is the remote trivia service as seen by the Builder.
type Source interface {
	Categories(ctx context.Context, limit, offset int) ([]CategoryEntry, error)
	Clues(ctx context.Context, category string) ([]ClueEntry, error)
}

type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client

	// MaxTries bounds attempts per request, including the first.
	MaxTries uint

	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration
}

// Client talks to a cluebase-compatible HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	maxTries   uint
	interval   time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}

	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: opts.HTTPClient,
		maxTries:   opts.MaxTries,
		interval:   opts.RetryInterval,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.maxTries == 0 {
		c.maxTries = 3
	}
	if c.interval <= 0 {
		c.interval = 250 * time.Millisecond
	}

	return c, nil
}

func (c *Client) Categories(ctx context.Context, limit, offset int) ([]CategoryEntry, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	body, err := c.get(ctx, "/categories", q)
	if err != nil {
		return nil, err
	}

	entries, err := parseCategories(body)
	if err != nil {
		return nil, fmt.Errorf("%w: categories: %w", ErrSourceUnavailable, err)
	}

	return entries, nil
}

func (c *Client) Clues(ctx context.Context, category string) ([]ClueEntry, error) {
	q := url.Values{}
	q.Set("category", category)

	body, err := c.get(ctx, "/clues", q)
	if err != nil {
		return nil, err
	}

	entries, err := parseClues(body)
	if err != nil {
		return nil, fmt.Errorf("%w: clues: %w", ErrSourceUnavailable, err)
	}

	return entries, nil
}

// get fetches path with retries. Transport errors, 429 and 5xx are retried;
// any other non-200 status is final.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	target := u.String()

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return nil, fmt.Errorf("GET %s: %s", path, resp.Status)
		default:
			return nil, backoff.Permanent(fmt.Errorf("GET %s: %s", path, resp.Status))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	return body, nil
}

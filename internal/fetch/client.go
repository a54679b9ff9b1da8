// Package fetch is the HTTP boundary for all remote OGC requests. It
// memoizes GET responses per URL and cache duration, collapses
// concurrent identical requests into one in-flight fetch, optionally
// rewrites URLs through a caching proxy and keeps an on-disk response
// cache.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/ports/output"
)

// maxResponseBytes bounds a single response body (64 MiB). Capabilities
// documents larger than this are a server problem, not a client one.
const maxResponseBytes = 64 << 20

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	ProxyBase string // when set, requests are rewritten through the proxy
	Cache     *Cache // optional on-disk response cache
	Metrics   output.MetricsCollector
	Logger    *slog.Logger
}

// Client performs remote fetches for capabilities documents and other
// OGC requests.
type Client struct {
	http      *http.Client
	userAgent string
	proxyBase string
	cache     *Cache
	metrics   output.MetricsCollector
	logger    *slog.Logger

	group singleflight.Group

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	body      []byte
	fetchedAt time.Time
	ttl       time.Duration
}

func (e memoEntry) fresh(now time.Time) bool {
	if e.ttl <= 0 {
		return true // no expiry configured: valid for the process lifetime
	}
	return now.Sub(e.fetchedAt) < e.ttl
}

// New creates a fetch client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = &output.NoOpMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		proxyBase: opts.ProxyBase,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		memo:      make(map[string]memoEntry),
	}
}

// Get fetches a URL, memoizing the response. cacheDuration controls both
// the memo lifetime and the proxy cache segment; zero means "cache for
// the process lifetime". protocol labels metrics only. Concurrent calls
// for the same URL converge on one network request.
func (c *Client) Get(ctx context.Context, rawURL string, cacheDuration time.Duration, protocol string) ([]byte, error) {
	if rawURL == "" {
		return nil, domain.ErrMissingURL
	}
	key := rawURL + "|" + cacheDuration.String()

	c.mu.Lock()
	if e, ok := c.memo[key]; ok && e.fresh(time.Now()) {
		c.mu.Unlock()
		c.metrics.IncCacheHit()
		return e.body, nil
	}
	c.mu.Unlock()
	c.metrics.IncCacheMiss()

	body, err, _ := c.group.Do(key, func() (interface{}, error) {
		if c.cache != nil {
			if cached, ok, err := c.cache.Get(rawURL, cacheDuration); err != nil {
				c.logger.Warn("response cache read failed", "url", rawURL, "error", err)
			} else if ok {
				c.remember(key, cached, cacheDuration)
				return cached, nil
			}
		}

		data, err := c.do(ctx, http.MethodGet, c.requestURL(rawURL, cacheDuration), "", nil, protocol)
		if err != nil {
			return nil, err
		}
		c.remember(key, data, cacheDuration)
		if c.cache != nil {
			if err := c.cache.Put(rawURL, data); err != nil {
				c.logger.Warn("response cache write failed", "url", rawURL, "error", err)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// Post sends a request body and returns the response. POST requests are
// never memoized.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, payload []byte, protocol string) ([]byte, error) {
	if rawURL == "" {
		return nil, domain.ErrMissingURL
	}
	return c.do(ctx, http.MethodPost, c.requestURL(rawURL, 0), contentType, payload, protocol)
}

// Invalidate drops any memoized response for the URL, forcing the next
// Get to hit the network (or the on-disk cache).
func (c *Client) Invalidate(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.memo {
		if strings.HasPrefix(key, rawURL+"|") {
			delete(c.memo, key)
		}
	}
}

func (c *Client) remember(key string, body []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memo[key] = memoEntry{body: body, fetchedAt: time.Now(), ttl: ttl}
}

func (c *Client) do(ctx context.Context, method, url, contentType string, payload []byte, protocol string) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, &domain.ConfigError{Field: "url", Message: err.Error()}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveFetchDuration(protocol, time.Since(start))
	if err != nil {
		c.metrics.IncFetch(protocol, false)
		return nil, domain.NetworkError(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncFetch(protocol, false)
		return nil, domain.NetworkError(url, fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.IncFetch(protocol, false)
		return nil, domain.NetworkError(url, err)
	}

	c.metrics.IncFetch(protocol, true)
	return data, nil
}

// requestURL rewrites rawURL through the proxy when one is configured.
// The cache duration becomes a path segment the proxy uses for its own
// cache policy: <proxyBase>_<duration>/<url>.
func (c *Client) requestURL(rawURL string, cacheDuration time.Duration) string {
	if c.proxyBase == "" {
		return rawURL
	}
	base := strings.TrimSuffix(c.proxyBase, "/")
	if cacheDuration > 0 {
		return base + "/_" + FormatCacheDuration(cacheDuration) + "/" + rawURL
	}
	return base + "/" + rawURL
}

// ParseCacheDuration parses durations as written in catalog definition
// files: time.ParseDuration syntax plus a "d" suffix for days ("1d",
// "2d"). Empty input means zero (no expiry).
func ParseCacheDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("cache duration %q: %w", s, err)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("cache duration %q: %w", s, err)
	}
	return d, nil
}

// FormatCacheDuration renders a duration in the shortest of the forms
// ParseCacheDuration accepts.
func FormatCacheDuration(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return strconv.Itoa(int(d/(24*time.Hour))) + "d"
	}
	return d.String()
}

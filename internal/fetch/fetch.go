// Package fetch retrieves remote documents for extraction.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/goextract/internal/cache"
	"github.com/hyperifyio/goextract/internal/textio"
)

// ErrCacheMiss is returned in cache-only mode when a URL has no cached body.
var ErrCacheMiss = errors.New("fetch: not in cache")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	if e.Code >= 500 {
		return fmt.Sprintf("server error: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Client wraps http.Client with timeouts, bounded retries on transient
// errors, a redirect cap and an optional on-disk cache.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	// RetryBackoff is the first wait between attempts; later waits grow
	// exponentially with jitter. Zero means 200ms.
	RetryBackoff time.Duration

	Cache *cache.HTTPCache
	// BypassCache skips conditional headers and cached bodies but still
	// stores fresh responses.
	BypassCache bool
	// CacheOnly serves exclusively from Cache and never touches the network.
	CacheOnly bool

	// RedirectMaxHops caps redirects. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// RequestsPerSecond paces outgoing requests, retries included. Zero
	// means unpaced.
	RequestsPerSecond float64

	limiter     chan struct{}
	limiterOnce sync.Once
	pacer       *rate.Limiter
	pacerOnce   sync.Once
}

// Response is a fetched document. It implements boundary.FieldReader so it
// can be handed straight to a post-processor.
type Response struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
	FromCache   bool

	etag         string
	lastModified string
}

// Text returns the body decoded to UTF-8 according to its content type.
func (r *Response) Text() (string, error) {
	return textio.Decode(r.Body, r.ContentType)
}

// Field exposes text (decoded body), body (raw body), url, status and
// contentType by name.
func (r *Response) Field(name string) (any, bool) {
	switch name {
	case "text":
		s, err := r.Text()
		if err != nil {
			return nil, false
		}
		return s, true
	case "body":
		return string(r.Body), true
	case "url":
		return r.URL, true
	case "status":
		return r.Status, true
	case "contentType":
		return r.ContentType, true
	}
	return nil, false
}

// Request adapts Get to the boundary.Requester signature.
func (c *Client) Request(ctx context.Context, target string) (any, error) {
	return c.Get(ctx, target)
}

// Get fetches target, revalidating against the cache when one is configured.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	if c.CacheOnly {
		return c.fromCache(ctx, target)
	}
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, target); err == nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryBackoff
	if b.InitialInterval <= 0 {
		b.InitialInterval = 200 * time.Millisecond
	}
	b.MaxElapsedTime = 0
	b.Reset()

	var resp *Response
	attempt := 0
	op := func() error {
		attempt++
		r, err := c.tryOnce(ctx, target, etag, lastMod)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Str("url", target).Int("attempt", attempt).Dur("wait", wait).Err(err).Msg("fetch retry")
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return c.settle(ctx, resp)
}

// settle stores fresh responses and resolves 304s from the cache.
func (c *Client) settle(ctx context.Context, resp *Response) (*Response, error) {
	if c.Cache == nil {
		return resp, nil
	}
	if resp.Status == http.StatusNotModified {
		cached, err := c.fromCache(ctx, resp.URL)
		if err != nil {
			return nil, fmt.Errorf("not modified but cache unreadable: %w", err)
		}
		log.Debug().Str("url", resp.URL).Str("cache", "revalidated").Msg("fetch")
		return cached, nil
	}
	if err := c.Cache.Save(ctx, resp.URL, resp.ContentType, resp.etag, resp.lastModified, resp.Body); err != nil {
		log.Warn().Err(err).Str("url", resp.URL).Msg("cache save failed")
	}
	return resp, nil
}

func (c *Client) fromCache(ctx context.Context, target string) (*Response, error) {
	if c.Cache == nil {
		return nil, ErrCacheMiss
	}
	body, err := c.Cache.LoadBody(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, target)
	}
	resp := &Response{URL: target, Status: http.StatusOK, Body: body, FromCache: true}
	if meta, err := c.Cache.LoadMeta(ctx, target); err == nil {
		resp.ContentType = meta.ContentType
	}
	return resp, nil
}

func (c *Client) tryOnce(ctx context.Context, target, etag, lastMod string) (*Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{
		URL:          target,
		Status:       resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
	if resp.StatusCode == http.StatusNotModified {
		return out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if !isAllowedContentType(out.ContentType) {
		return nil, fmt.Errorf("unsupported content type: %s", out.ContentType)
	}
	out.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		// Copy so the redirect policy does not leak into the caller's client.
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirect
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirect}
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	if len(via) >= max {
		return errors.New("too many redirects")
	}
	if !isHTTPScheme(req.URL) {
		return errors.New("redirect to unsupported scheme")
	}
	return nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// isAllowedContentType accepts textual media types: text/*, JSON, XML and
// their structured-syntax suffixes. A missing header is accepted.
func isAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case ct == "application/json", ct == "application/xml", ct == "application/xhtml+xml":
		return true
	case strings.HasSuffix(ct, "+json"), strings.HasSuffix(ct, "+xml"):
		return true
	}
	return false
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}

func (c *Client) wait(ctx context.Context) error {
	if c.RequestsPerSecond <= 0 {
		return nil
	}
	c.pacerOnce.Do(func() {
		c.pacer = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	})
	return c.pacer.Wait(ctx)
}

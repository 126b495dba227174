package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goextract/internal/boundary"
	"github.com/hyperifyio/goextract/internal/cache"
)

func newClient() *Client {
	return &Client{UserAgent: "goextract-test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, RetryBackoff: time.Millisecond}
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "goextract-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	resp, err := newClient().Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ContentType == "" || len(resp.Body) == 0 || resp.Status != 200 {
		t.Fatalf("expected content type, body and 200; got %+v", resp)
	}
}

func TestGet_RetryOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(502)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient()
	c.MaxAttempts = 2
	if _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGet_NoRetryOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(404)
	}))
	defer srv.Close()

	c := newClient()
	c.MaxAttempts = 3
	_, err := c.Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 404 {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestGet_Conditional304_UsesCache(t *testing.T) {
	var calls int32
	etag := `"abc123"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("first"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		fmt.Fprintln(w, "unexpected")
	}))
	defer srv.Close()

	c := newClient()
	c.Cache = &cache.HTTPCache{Dir: t.TempDir()}

	r1, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("first get error: %v", err)
	}
	if string(r1.Body) != "first" {
		t.Fatalf("unexpected body1: %q", string(r1.Body))
	}

	r2, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second get error: %v", err)
	}
	if string(r2.Body) != "first" || !r2.FromCache {
		t.Fatalf("expected cached body, got %q fromCache=%v", string(r2.Body), r2.FromCache)
	}
}

func TestGet_BypassCacheRefetchesAndStores(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/plain")
		if inm := r.Header.Get("If-None-Match"); inm != "" {
			w.Header().Set("ETag", inm)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", fmt.Sprintf(`"v%d"`, n))
		fmt.Fprintf(w, "body%d", n)
	}))
	defer srv.Close()

	c := newClient()
	c.Cache = &cache.HTTPCache{Dir: t.TempDir()}
	if _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("first get: %v", err)
	}

	c.BypassCache = true
	r2, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("bypass get: %v", err)
	}
	if string(r2.Body) != "body2" || r2.FromCache {
		t.Fatalf("expected fresh body2, got %q fromCache=%v", r2.Body, r2.FromCache)
	}

	c.BypassCache = false
	r3, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("third get: %v", err)
	}
	if string(r3.Body) != "body2" || !r3.FromCache {
		t.Fatalf("expected revalidated body2 from cache, got %q fromCache=%v", r3.Body, r3.FromCache)
	}
}

func TestGet_CacheOnly(t *testing.T) {
	dir := t.TempDir()
	hc := &cache.HTTPCache{Dir: dir}
	if err := hc.Save(context.Background(), "https://example.com/doc", "text/plain", "", "", []byte("cached")); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := newClient()
	c.Cache = hc
	c.CacheOnly = true

	resp, err := c.Get(context.Background(), "https://example.com/doc")
	if err != nil || string(resp.Body) != "cached" || resp.ContentType != "text/plain" {
		t.Fatalf("unexpected cache-only result: %+v err=%v", resp, err)
	}
	if _, err := c.Get(context.Background(), "https://example.com/missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestGet_RejectsNonHTTP(t *testing.T) {
	if _, err := newClient().Get(context.Background(), "file:///etc/hosts"); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestGet_ContentTypeGating(t *testing.T) {
	for ct, ok := range map[string]bool{
		"application/pdf":         false,
		"image/png":               false,
		"application/json":        true,
		"application/ld+json":     true,
		"text/csv; charset=utf-8": true,
		"application/atom+xml":    true,
		"application/javascript":  false,
	} {
		ct, ok := ct, ok
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", ct)
			_, _ = w.Write([]byte("x"))
		}))
		_, err := newClient().Get(context.Background(), srv.URL)
		srv.Close()
		if ok && err != nil {
			t.Fatalf("%s: unexpected error %v", ct, err)
		}
		if !ok && err == nil {
			t.Fatalf("%s: expected unsupported content type error", ct)
		}
	}
}

func TestGet_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient()
	c.RedirectMaxHops = 1
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected redirect limit error")
	}
}

func TestGet_MaxConcurrent(t *testing.T) {
	var inFlight, maxObserved int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		curr := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxObserved)
			if curr <= prev || atomic.CompareAndSwapInt32(&maxObserved, prev, curr) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient()
	c.MaxConcurrent = 2

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = c.Get(context.Background(), srv.URL)
		}()
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&maxObserved); got > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", got)
	}
}

func TestResponse_DecodesCharsetForText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		_, _ = w.Write([]byte{'[', 'c', 'a', 'f', 0xe9, ']'})
	}))
	defer srv.Close()

	resp, err := newClient().Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, ok := resp.Field("text")
	if !ok || v != "[caf\u00e9]" {
		t.Fatalf("unexpected text field %q ok=%v", v, ok)
	}
}

func TestClient_AttachScanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title> Docs </title></head><body><result>1</result><result>2</result></body></html>"))
	}))
	defer srv.Close()

	cfg := boundary.DefaultConfig()
	cfg.Start, cfg.End = boundary.Literal("<result>"), boundary.Literal("</result>")
	get, err := boundary.Attach(newClient().Request, cfg)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	res, err := get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got := res.Strings()
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected results %v", got)
	}
}

func TestGet_RetriesStopAtMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient()
	c.MaxAttempts = 3
	_, err := c.Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestGet_RequestsPerSecondPacesCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient()
	c.RequestsPerSecond = 20
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), srv.URL); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	// Burst of one: the second and third calls each wait about 50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("requests not paced: %v", elapsed)
	}
}

package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns a client for fetching inputs in parallel. Concurrency
// is bounded by fetch.Client, so the transport keeps generous idle pools.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// A backstop behind the per-attempt deadline set by fetch.Client.
	return &http.Client{Transport: transport, Timeout: 4 * timeout}
}

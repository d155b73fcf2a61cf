// Package httpclient configures the outbound HTTP client used to call
// remote data sources (spec.md §4.7/§6): connection pooling and
// timeouts tuned for many short-lived tile/info/locate requests
// against a small number of upstream hosts.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound builds an *http.Client with pooled, keep-alive
// connections sized for a worker pool making concurrent per-tile
// requests to the same data source host.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

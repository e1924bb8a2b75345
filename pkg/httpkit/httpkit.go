// Package httpkit provides the shared HTTP client construction used by the
// classifier and embedding clients. It centralises dial/TLS timeouts and
// connection pool limits instead of letting each call site default
// net/http's zero-value client. The LLM provider clients do not use it.
package httpkit

import (
	"io"
	"net"
	"net/http"
	"time"
)

// Default timeouts and connection pool limits for the shared transport.
const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultKeepAlive           = 30 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 5
)

// NewTransport builds an http.Transport with sensible, explicit timeouts so
// a slow or wedged external service cannot stall a pipeline stage
// indefinitely.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}
}

// NewClient builds an *http.Client sharing NewTransport, with the given
// overall request timeout. A timeout of 0 disables the client-side deadline
// (callers should then rely on a context deadline instead).
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewTransport(),
		Timeout:   timeout,
	}
}

// ReadErrorBody reads up to max bytes of an error response body for
// inclusion in a wrapped error, without risking unbounded memory use on a
// misbehaving server.
func ReadErrorBody(r io.Reader, max int64) string {
	b, err := io.ReadAll(io.LimitReader(r, max))
	if err != nil {
		return ""
	}
	return string(b)
}

// Package httpclient invokes a form-encoded, JSON-returning web service.
// A Client owns the transport handle, the endpoint URI and the default
// parameters merged into every call, and runs each logical call through a
// bounded retry loop that understands the service's error envelope.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Doer is the transport handle used to send requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// TransportFactory creates a fresh transport handle. It is called once when
// the client is created and again whenever the client reconnects.
type TransportFactory func() Doer

// DefaultConnectTimeout bounds connection setup on the default transport.
const DefaultConnectTimeout = 20 * time.Second

// DefaultTransport returns an *http.Client with its own connection state.
func DefaultTransport() Doer {
	dialer := &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: DefaultConnectTimeout,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

type idleCloser interface {
	CloseIdleConnections()
}

// Verify that the transports shipped with this package implement Doer.
var _ Doer = &http.Client{}
var _ Doer = DoerFunc(nil)
var _ Doer = &HandlerDoer{}

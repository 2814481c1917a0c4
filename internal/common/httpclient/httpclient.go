package httpclient

import (
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tansive/moodleauth/pkg/phpquery"
)

const (
	// DefaultMaxAttempts is the number of guarded attempts before the final one.
	DefaultMaxAttempts = 10

	// DefaultRetryDelay is the pause before retrying after a transport error.
	DefaultRetryDelay = time.Second
)

// DefaultTransientErrorCodes lists the remote error codes that are retried
// in place. The service reports ex_unabletolock when it cannot obtain an
// internal lock under concurrent writes.
var DefaultTransientErrorCodes = []string{"ex_unabletolock"}

// Client invokes a single service endpoint. It is not safe for concurrent
// use; each client serves one logical caller at a time.
type Client struct {
	uri            *url.URL
	defaultParams  *phpquery.Params
	newTransport   TransportFactory
	transport      Doer
	maxAttempts    uint
	retryDelay     time.Duration
	transientCodes map[string]struct{}
	logger         zerolog.Logger
	closed         atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithTransportFactory sets how transport handles are created.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Client) {
		if f != nil {
			c.newTransport = f
		}
	}
}

// WithMaxAttempts sets the number of guarded attempts. One final unguarded
// attempt always follows an exhausted loop.
func WithMaxAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause taken after a transport error.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithTransientErrorCodes replaces the set of remote error codes retried in place.
func WithTransientErrorCodes(codes ...string) Option {
	return func(c *Client) {
		c.transientCodes = codeSet(codes)
	}
}

// WithLogger sets the logger used for retry and reconnect diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDefaultParams sets the parameters merged ahead of every call's query.
func WithDefaultParams(p *phpquery.Params) Option {
	return func(c *Client) {
		c.defaultParams = phpquery.Clone(p)
	}
}

// NewClient creates a client for the endpoint at uri.
func NewClient(uri *url.URL, opts ...Option) *Client {
	c := &Client{
		uri:            cloneURL(uri),
		defaultParams:  phpquery.New(),
		newTransport:   DefaultTransport,
		maxAttempts:    DefaultMaxAttempts,
		retryDelay:     DefaultRetryDelay,
		transientCodes: codeSet(DefaultTransientErrorCodes),
		logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = c.newTransport()
	return c
}

// SetURI points the client at another endpoint.
func (c *Client) SetURI(uri *url.URL) *Client {
	c.uri = cloneURL(uri)
	return c
}

// URI returns a copy of the endpoint URI.
func (c *Client) URI() *url.URL {
	return cloneURL(c.uri)
}

// SetDefaultParams replaces the default parameters with a copy of p.
func (c *Client) SetDefaultParams(p *phpquery.Params) *Client {
	c.defaultParams = phpquery.Clone(p)
	return c
}

// DefaultParams returns a copy of the default parameters.
func (c *Client) DefaultParams() *phpquery.Params {
	return phpquery.Clone(c.defaultParams)
}

// IsTransient reports whether code is retried in place.
func (c *Client) IsTransient(code string) bool {
	_, ok := c.transientCodes[code]
	return ok
}

// Close releases the transport handle. It is idempotent and never fails;
// every later call on the client fails with ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	releaseTransport(c.transport)
	c.transport = nil
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// reconnect replaces the transport handle with a fresh one.
func (c *Client) reconnect() {
	releaseTransport(c.transport)
	c.transport = c.newTransport()
}

func releaseTransport(d Doer) {
	if ic, ok := d.(idleCloser); ok {
		ic.CloseIdleConnections()
	}
}

func codeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	cp := *u
	if u.User != nil {
		user := *u.User
		cp.User = &user
	}
	return &cp
}

package httpclient

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/tansive/moodleauth/internal/common/logtrace"
	"github.com/tansive/moodleauth/pkg/phpquery"
)

// FunctionParam is the query parameter naming the remote function.
const FunctionParam = "wsfunction"

// Invoke performs one logical call. The client's default parameters are
// merged with query (query wins) and sent on the URI, data is sent as the
// form-encoded POST body, and the response is decoded into T.
//
// A call makes up to maxAttempts guarded attempts followed by one final
// attempt whose error is returned unchanged. Remote errors with a transient
// code are retried immediately on the same transport. Transport errors
// replace the transport and wait retryDelay before the next attempt. Every
// other error ends the call.
//
// An empty response body yields a nil result and no error.
func Invoke[T any](ctx context.Context, c *Client, query, data *phpquery.Params) (*T, error) {
	if c == nil || c.Closed() {
		return nil, ErrClientClosed
	}
	merged := phpquery.Merge(c.defaultParams, query)
	cl := &call{
		client: c,
		query:  phpquery.Encode(merged),
		body:   phpquery.Encode(data),
	}
	fn, _ := merged.Get(FunctionParam)
	logger := c.logger.With().
		Interface(FunctionParam, fn).
		Str("invocation_id", logtrace.InvocationID(ctx)).
		Logger()
	cl.logger = &logger

	attempt := func() (*T, error) {
		return invokeAttempt[T](ctx, cl)
	}

	result, err := retry.DoWithData(attempt,
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(c.retryable),
		retry.DelayType(c.delay),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().Uint("attempt", n+1).Err(err).Msg("web service attempt failed")
		}),
	)
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, canceled(ctxErr)
	}
	if !c.retryable(err) {
		return nil, err
	}

	// the guarded attempts are used up; one more attempt reports its own error
	if errors.Is(err, ErrTransport) {
		if werr := sleep(ctx, c.retryDelay); werr != nil {
			return nil, canceled(werr)
		}
	}
	logger.Debug().Msg("retries exhausted, making final attempt")
	result, err = attempt()
	if err != nil && ctx.Err() != nil {
		return nil, canceled(ctx.Err())
	}
	return result, err
}

type call struct {
	client        *Client
	query         string
	body          string
	needReconnect bool
	logger        *zerolog.Logger
}

func invokeAttempt[T any](ctx context.Context, cl *call) (*T, error) {
	c := cl.client
	if c.Closed() {
		return nil, ErrClientClosed
	}
	if cl.needReconnect {
		c.reconnect()
		cl.needReconnect = false
		cl.logger.Debug().Msg("transport replaced")
	}
	result, err := send[T](ctx, c, cl.query, cl.body)
	if err != nil && errors.Is(err, ErrTransport) {
		cl.needReconnect = true
	}
	return result, err
}

// retryable reports whether err warrants another guarded attempt.
func (c *Client) retryable(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return c.IsTransient(remote.Code())
	}
	return errors.Is(err, ErrTransport)
}

// delay is zero for transient remote errors and retryDelay for transport errors.
func (c *Client) delay(_ uint, err error, _ *retry.Config) time.Duration {
	if errors.Is(err, ErrTransport) {
		return c.retryDelay
	}
	return 0
}

func canceled(err error) error {
	return ErrCanceled.Err(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package httpclient

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// send makes a single attempt: it posts body to the endpoint with query on
// the URI and decodes the response.
func send[T any](ctx context.Context, c *Client, query, body string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(query), strings.NewReader(body))
	if err != nil {
		return nil, ErrInvalidArgument.MsgErr("unable to build request", err)
	}
	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.transport.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx.Err())
		}
		return nil, ErrTransport.MsgErr("request failed: "+err.Error(), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, ErrServerStatus.Msg("server responded with status " + strconv.Itoa(resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, ErrRequestRejected.Msg("server responded with status " + strconv.Itoa(resp.StatusCode))
	}

	return decodeResult[T](resp.Body)
}

func (c *Client) requestURL(query string) string {
	u := *c.uri
	u.RawQuery = query
	return u.String()
}

// decodeResult reads a result of type T from r. When T is a sequence the
// first significant character decides: '[' is the result, '{' is an error
// envelope and anything else is malformed. Object results report errors
// through ErrorReporter.
func decodeResult[T any](r io.Reader) (*T, error) {
	br := bufio.NewReader(r)
	first, err := peekSignificant(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrTransport.MsgErr("unable to read response", err)
	}

	if isSequence[T]() && first != '[' {
		if first != '{' {
			return nil, ErrMalformedResponse.Msg("expected a JSON array, got " + strconv.Quote(string(first)))
		}
		var envelope ErrorEnvelope
		if err := json.NewDecoder(br).Decode(&envelope); err != nil {
			return nil, ErrMalformedResponse.Err(err)
		}
		return nil, &RemoteError{Envelope: envelope}
	}

	result := new(T)
	if err := json.NewDecoder(br).Decode(result); err != nil {
		return nil, ErrMalformedResponse.Err(err)
	}
	if reporter, ok := any(result).(ErrorReporter); ok {
		if envelope := reporter.Failure(); envelope != nil {
			return nil, &RemoteError{Envelope: *envelope}
		}
	}
	return result, nil
}

// peekSignificant skips whitespace and a leading byte order mark and returns
// the next byte without consuming it.
func peekSignificant(br *bufio.Reader) (byte, error) {
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

func isSequence[T any]() bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

package moodle

import (
	"context"
	"net/url"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/tansive/moodleauth/internal/common/httpclient"
	"github.com/tansive/moodleauth/pkg/phpquery"
	"github.com/tansive/moodleauth/pkg/types"
)

// Session is an authenticated connection to a site. It is meant for one
// caller at a time and must be closed when no longer needed.
type Session struct {
	client *httpclient.Client
	site   *url.URL
	user   *UserRecord
	info   *SiteInfo
	logger zerolog.Logger
	closed atomic.Bool
}

// User returns the authenticated user.
func (s *Session) User() *UserRecord {
	return s.user
}

// SiteInfo returns the site info fetched during Connect.
func (s *Session) SiteInfo() *SiteInfo {
	return s.info
}

// SiteURL returns the normalized site base URI.
func (s *Session) SiteURL() *url.URL {
	u := *s.site
	return &u
}

// DefaultParams returns a copy of the parameters sent with every call.
func (s *Session) DefaultParams() *phpquery.Params {
	return s.client.DefaultParams()
}

// Invoke calls the named function with params as the form body and returns
// the decoded JSON result: map[string]any, []any, a scalar, or nil for an
// empty response.
func (s *Session) Invoke(ctx context.Context, fn string, params *phpquery.Params) (any, error) {
	raw, err := s.InvokeRaw(ctx, fn, params)
	if err != nil || raw == nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, ErrMalformedResponse.Err(err)
	}
	return v, nil
}

// InvokeRaw calls the named function and returns the response as received.
func (s *Session) InvokeRaw(ctx context.Context, fn string, params *phpquery.Params) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if fn == "" {
		return nil, ErrInvalidArgument.Msg("function name is required")
	}
	result, err := httpclient.Invoke[genericResult](ctx, s.client, function(fn), params)
	if err != nil {
		if s.closed.Load() {
			return nil, ErrSessionClosed
		}
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.raw, nil
}

// InvokeInto calls the named function and decodes the result into out,
// which must be a pointer. Fields are matched by their json tags and
// scalars are converted where the service's typing is loose.
func (s *Session) InvokeInto(ctx context.Context, fn string, params *phpquery.Params, out any) error {
	v, err := s.Invoke(ctx, fn, params)
	if err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ErrInvalidArgument.MsgErr("unusable result target", err)
	}
	if err := decoder.Decode(v); err != nil {
		return ErrMalformedResponse.Err(err)
	}
	return nil
}

// LookupUser resolves a single user by username.
func (s *Session) LookupUser(ctx context.Context, username string) (*UserRecord, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return lookupUser(ctx, s.client, username)
}

// RefreshSiteInfo fetches the site info again and replaces the cached copy.
func (s *Session) RefreshSiteInfo(ctx context.Context) (*SiteInfo, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	info, err := fetchSiteInfo(ctx, s.client)
	if err != nil {
		return nil, err
	}
	s.info = info
	return info, nil
}

// Close releases the transport. It is idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = s.client.Close()
	s.logger.Debug().Str("site", s.site.String()).Msg("session closed")
	return nil
}

// genericResult keeps an arbitrary response and reports the service's
// exception object as a failure.
type genericResult struct {
	raw []byte
}

func (g *genericResult) UnmarshalJSON(b []byte) error {
	g.raw = append([]byte(nil), b...)
	return nil
}

func (g *genericResult) Failure() *ErrorEnvelope {
	r := gjson.ParseBytes(g.raw)
	if !r.IsObject() {
		return nil
	}
	exception, code := r.Get("exception"), r.Get("errorcode")
	if !exception.Exists() || !code.Exists() {
		return nil
	}
	env := &ErrorEnvelope{}
	env.Exception.Set(exception.String())
	env.ErrorCode.Set(code.String())
	setIfPresent(&env.Error, r.Get("error"))
	setIfPresent(&env.Message, r.Get("message"))
	return env
}

func setIfPresent(ns *types.NullableString, r gjson.Result) {
	if r.Exists() && r.Type != gjson.Null {
		ns.Set(r.String())
	}
}

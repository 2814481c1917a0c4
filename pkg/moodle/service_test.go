package moodle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansive/moodleauth/internal/common/httpclient"
	"github.com/tansive/moodleauth/internal/common/moodletest"
)

func newFake(opts ...moodletest.Option) *moodletest.Server {
	srv := moodletest.New(opts...)
	srv.AddUser(7, "alice", "secret", map[string]any{"firstname": "Alice", "lastname": "Liddell"})
	return srv
}

func newTestService(srv *moodletest.Server, opts ...Option) *Service {
	return NewService(append([]Option{
		WithTransportFactory(httpclient.HandlerTransport(srv)),
		WithRetryDelay(time.Millisecond),
	}, opts...)...)
}

func TestConnect(t *testing.T) {
	srv := newFake(moodletest.WithToken("T"))
	svc := newTestService(srv)

	session, err := svc.Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("secret"))
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "alice", session.User().Username)
	assert.Equal(t, int64(7), session.User().ID)
	assert.Equal(t, "Test Site", session.SiteInfo().SiteName)
	assert.Equal(t, "https://moodle.example.org/", session.SiteURL().String())

	token, ok := session.DefaultParams().Get(ParamToken)
	require.True(t, ok)
	assert.Equal(t, "T", token)
	format, _ := session.DefaultParams().Get(ParamFormat)
	assert.Equal(t, "json", format)

	calls := srv.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, moodletest.TokenPath, calls[0].Path)
	assert.Equal(t, "alice", calls[0].Form.Get("username"))
	assert.Equal(t, "secret", calls[0].Form.Get("password"))
	assert.Equal(t, DefaultServiceName, calls[0].Form.Get("service"))
	assert.Empty(t, calls[0].Query)

	assert.Equal(t, "username", calls[1].Form.Get("field"))
	assert.Equal(t, "alice", calls[1].Form.Get("values[0]"))
	assert.Equal(t, []string{FuncGetUsersByField, FuncGetSiteInfo}, srv.Functions())
}

func TestConnectAuthFailed(t *testing.T) {
	srv := newFake()
	_, err := newTestService(srv).Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("wrong"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.ErrorIs(t, err, ErrMoodle)
	assert.Equal(t, "Invalid login", err.Error())
	assert.Len(t, srv.Calls(), 1, "no calls after a rejected token exchange")
}

func TestConnectServiceName(t *testing.T) {
	srv := newFake(moodletest.WithService("local_sso"))

	_, err := newTestService(srv).Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("secret"))
	assert.ErrorIs(t, err, ErrAuthFailed)

	session, err := newTestService(srv, WithServiceName("local_sso")).
		Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("secret"))
	require.NoError(t, err)
	require.NoError(t, session.Close())
}

func TestConnectUserLookup(t *testing.T) {
	t.Run("ambiguous", func(t *testing.T) {
		srv := newFake()
		srv.AddUser(8, "alice", "other", nil)
		_, err := newTestService(srv).Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("other"))
		assert.ErrorIs(t, err, ErrAmbiguousUser)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, []string{FuncGetUsersByField}, srv.Functions())
	})
	t.Run("missing", func(t *testing.T) {
		srv := newFake()
		srv.Handle(FuncGetUsersByField, func(moodletest.Call) any { return []any{} })
		_, err := newTestService(srv).Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("secret"))
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
	t.Run("lock error is retried", func(t *testing.T) {
		srv := newFake()
		srv.Handle(FuncGetUsersByField, moodletest.LockedFor(2, srv.Builtin(FuncGetUsersByField)))
		session, err := newTestService(srv).Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("secret"))
		require.NoError(t, err)
		defer session.Close()
		assert.Equal(t, []string{FuncGetUsersByField, FuncGetUsersByField, FuncGetUsersByField, FuncGetSiteInfo}, srv.Functions())
	})
}

func TestConnectSiteInfoFailure(t *testing.T) {
	srv := newFake()
	srv.Handle(FuncGetSiteInfo, func(moodletest.Call) any {
		return moodletest.Exception("webservice_access_exception", "accessexception", "Access control exception")
	})
	_, err := newTestService(srv).Connect(context.Background(), "moodle.example.org", "alice", PasswordFromString("secret"))

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "accessexception", remote.Code())
	assert.ErrorIs(t, err, ErrRemote)
}

func TestConnectInvalidInput(t *testing.T) {
	srv := newFake()
	svc := newTestService(srv)
	tests := []struct {
		name     string
		site     string
		username string
		err      error
	}{
		{"empty site", " ", "alice", ErrInvalidArgument},
		{"empty username", "moodle.example.org", "", ErrInvalidArgument},
		{"unsupported scheme", "ftp://moodle.example.org", "alice", ErrInvalidSite},
		{"no host", "https://", "alice", ErrInvalidSite},
		{"unparsable", "https://moodle example.org:x", "alice", ErrInvalidSite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Connect(context.Background(), tt.site, tt.username, PasswordFromString("secret"))
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	assert.Empty(t, srv.Calls())
}

func TestNormalizeSite(t *testing.T) {
	tests := []struct {
		site     string
		expected string
	}{
		{"moodle.example.org", "https://moodle.example.org/"},
		{"moodle.example.org:8443", "https://moodle.example.org:8443/"},
		{"http://moodle.example.org", "http://moodle.example.org/"},
		{"https://example.org/moodle", "https://example.org/moodle/"},
		{"https://example.org/moodle/", "https://example.org/moodle/"},
		{"HTTPS://example.org/?x=1#top", "https://example.org/"},
	}
	for _, tt := range tests {
		u, err := NormalizeSite(tt.site)
		require.NoError(t, err, tt.site)
		assert.Equal(t, tt.expected, u.String(), tt.site)
	}
}

func TestConnectSubdirectoryInstall(t *testing.T) {
	srv := newFake(moodletest.WithBasePath("/moodle"))
	session, err := newTestService(srv).Connect(context.Background(), "example.org/moodle", "alice", PasswordFromString("secret"))
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, "https://example.org/moodle/", session.SiteURL().String())
}

func TestConnectOverNetwork(t *testing.T) {
	srv := newFake()
	site := srv.Start(t)

	session, err := Connect(context.Background(), site, "alice", PasswordFromString("secret"))
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, "Alice Liddell", session.User().DisplayName(session.SiteInfo()))
}

func TestConnectCanceled(t *testing.T) {
	srv := newFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestService(srv).Connect(ctx, "moodle.example.org", "alice", PasswordFromString("secret"))
	assert.ErrorIs(t, err, ErrCanceled)
}

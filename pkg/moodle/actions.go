package moodle

import (
	"context"
	"strconv"

	"github.com/tansive/moodleauth/internal/common/httpclient"
	"github.com/tansive/moodleauth/pkg/phpquery"
)

// Functions called by the handshake.
const (
	FuncGetUsersByField = "core_user_get_users_by_field"
	FuncGetSiteInfo     = "core_webservice_get_site_info"
)

func function(name string) *phpquery.Params {
	return phpquery.New(phpquery.P(httpclient.FunctionParam, name))
}

// lookupUser returns the only user whose username is username.
func lookupUser(ctx context.Context, client *httpclient.Client, username string) (*UserRecord, error) {
	users, err := httpclient.Invoke[[]UserRecord](ctx, client,
		function(FuncGetUsersByField),
		phpquery.New(
			phpquery.P("field", "username"),
			phpquery.P("values", []string{username}),
		))
	if err != nil {
		return nil, err
	}
	if users == nil || len(*users) == 0 {
		return nil, ErrUserNotFound.Msg("no user named " + strconv.Quote(username))
	}
	if n := len(*users); n > 1 {
		return nil, ErrAmbiguousUser.Msg(strconv.Itoa(n) + " users named " + strconv.Quote(username))
	}
	return &(*users)[0], nil
}

func fetchSiteInfo(ctx context.Context, client *httpclient.Client) (*SiteInfo, error) {
	info, err := httpclient.Invoke[SiteInfo](ctx, client, function(FuncGetSiteInfo), nil)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrMalformedResponse.Msg("empty site info response")
	}
	return info, nil
}

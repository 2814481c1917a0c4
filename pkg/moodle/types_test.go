package moodle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenResult(t *testing.T) {
	var ok TokenResult
	require.NoError(t, json.Unmarshal([]byte(`{"token":"T","privatetoken":null}`), &ok))
	assert.False(t, ok.Failed())
	assert.Equal(t, "T", ok.Token.String())
	assert.True(t, ok.PrivateToken.IsNil())

	var failed TokenResult
	require.NoError(t, json.Unmarshal([]byte(`{"errorcode":"invalidlogin","error":"Invalid login"}`), &failed))
	assert.True(t, failed.Failed())
	assert.Equal(t, "Invalid login", failed.Error.String())
	assert.True(t, failed.Token.IsNil())
}

func TestUserRecord(t *testing.T) {
	var users []UserRecord
	require.NoError(t, json.Unmarshal([]byte(`[{
		"id": 7, "username": "alice", "firstname": " ", "lastname": "Liddell",
		"suspended": false, "confirmed": true,
		"customfields": [{"shortname": "dept", "value": "Maths"}]
	}]`), &users))
	require.Len(t, users, 1)
	u := users[0]

	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "Maths", u.Field("customfields.0.value").String())
	assert.False(t, u.Field("nope").Exists())

	site := &SiteInfo{FirstName: "Site", LastName: "Owner"}
	assert.Equal(t, "Site", u.GivenName(site))
	assert.Equal(t, "Liddell", u.FamilyName(site))
	assert.Equal(t, "", u.GivenName(nil))
	assert.Equal(t, "Site Liddell", u.DisplayName(site))

	bare := UserRecord{Username: "bob"}
	assert.Equal(t, "bob", bare.DisplayName(nil))
	bare.FullName = "Bob B."
	assert.Equal(t, "Bob B.", bare.DisplayName(nil))
}

func TestSiteInfo(t *testing.T) {
	var info SiteInfo
	require.NoError(t, json.Unmarshal([]byte(`{
		"sitename": "Campus", "firstname": "Ada", "userid": 7,
		"functions": [{"name": "core_webservice_get_site_info", "version": "2023100900"}],
		"release": "4.1.2+ (Build: 20230302)", "advancedfeatures": [{"name": "usecomments", "value": 1}]
	}`), &info))

	assert.Nil(t, info.Failure())
	assert.Equal(t, int64(7), info.UserID)
	assert.True(t, info.HasFunction(FuncGetSiteInfo))
	assert.False(t, info.HasFunction(FuncGetUsersByField))
	assert.Equal(t, int64(1), info.Field("advancedfeatures.0.value").Int())

	v, err := info.ReleaseVersion()
	require.NoError(t, err)
	assert.Equal(t, "4.1.2", v.String())
}

func TestReleaseVersion(t *testing.T) {
	tests := []struct {
		release  string
		expected string
		ok       bool
	}{
		{"4.3.2+ (Build: 20240112)", "4.3.2", true},
		{"3.9 (Build: 20200615)", "3.9.0", true},
		{"4.0dev (Build: 20210520)", "4.0.0", true},
		{"", "", false},
		{"unknown", "", false},
	}
	for _, tt := range tests {
		info := SiteInfo{Release: tt.release}
		v, err := info.ReleaseVersion()
		if !tt.ok {
			assert.ErrorIs(t, err, ErrUnknownRelease, tt.release)
			continue
		}
		require.NoError(t, err, tt.release)
		assert.Equal(t, tt.expected, v.String())
	}
}

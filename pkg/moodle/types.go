package moodle

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/tansive/moodleauth/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenResult is the response of the token endpoint. It carries either a
// token or an error code with its text, never both.
type TokenResult struct {
	Token        types.NullableString `json:"token"`
	PrivateToken types.NullableString `json:"privatetoken"`
	ErrorCode    types.NullableString `json:"errorcode"`
	Error        types.NullableString `json:"error"`
}

// Failed reports whether the token endpoint rejected the credentials.
func (t *TokenResult) Failed() bool {
	return !t.ErrorCode.IsNil()
}

// UserRecord is a user profile as returned by the user lookup function.
// Fields beyond the modelled ones are available through Field.
type UserRecord struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	FullName        string `json:"fullname"`
	Email           string `json:"email"`
	Auth            string `json:"auth"`
	Suspended       bool   `json:"suspended"`
	Confirmed       bool   `json:"confirmed"`
	Lang            string `json:"lang"`
	ProfileImageURL string `json:"profileimageurl"`

	raw []byte
}

// UnmarshalJSON decodes the modelled fields and keeps b for Field and Raw.
func (u *UserRecord) UnmarshalJSON(b []byte) error {
	type plain UserRecord
	if err := json.Unmarshal(b, (*plain)(u)); err != nil {
		return err
	}
	u.raw = append([]byte(nil), b...)
	return nil
}

// Field returns the value at path in the record as received, e.g.
// "customfields.0.value".
func (u *UserRecord) Field(path string) gjson.Result {
	return gjson.GetBytes(u.raw, path)
}

// Raw returns the record as received.
func (u *UserRecord) Raw() []byte {
	return u.raw
}

// GivenName returns the user's first name, falling back to the site's
// first name when the profile has none.
func (u *UserRecord) GivenName(site *SiteInfo) string {
	if name := strings.TrimSpace(u.FirstName); name != "" || site == nil {
		return name
	}
	return strings.TrimSpace(site.FirstName)
}

// FamilyName returns the user's last name, falling back to the site's last
// name when the profile has none.
func (u *UserRecord) FamilyName(site *SiteInfo) string {
	if name := strings.TrimSpace(u.LastName); name != "" || site == nil {
		return name
	}
	return strings.TrimSpace(site.LastName)
}

// DisplayName joins the given and family names. It falls back to the full
// name and then the username.
func (u *UserRecord) DisplayName(site *SiteInfo) string {
	name := strings.TrimSpace(u.GivenName(site) + " " + u.FamilyName(site))
	switch {
	case name != "":
		return name
	case strings.TrimSpace(u.FullName) != "":
		return strings.TrimSpace(u.FullName)
	}
	return u.Username
}

// SiteFunction is a web-service function available to the token.
type SiteFunction struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SiteInfo is the site metadata returned for the authenticated token.
// Fields beyond the modelled ones are available through Field.
type SiteInfo struct {
	ErrorEnvelope

	SiteName       string         `json:"sitename"`
	Username       string         `json:"username"`
	FirstName      string         `json:"firstname"`
	LastName       string         `json:"lastname"`
	FullName       string         `json:"fullname"`
	Lang           string         `json:"lang"`
	UserID         int64          `json:"userid"`
	SiteURL        string         `json:"siteurl"`
	UserPictureURL string         `json:"userpictureurl"`
	Functions      []SiteFunction `json:"functions"`
	Release        string         `json:"release"`
	Version        string         `json:"version"`

	raw []byte
}

// UnmarshalJSON decodes the modelled fields and keeps b for Field and Raw.
func (s *SiteInfo) UnmarshalJSON(b []byte) error {
	type plain SiteInfo
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	s.raw = append([]byte(nil), b...)
	return nil
}

// Field returns the value at path in the site info as received.
func (s *SiteInfo) Field(path string) gjson.Result {
	return gjson.GetBytes(s.raw, path)
}

// Raw returns the site info as received.
func (s *SiteInfo) Raw() []byte {
	return s.raw
}

// HasFunction reports whether the token may call the named function.
func (s *SiteInfo) HasFunction(name string) bool {
	for _, fn := range s.Functions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

var releasePrefix = regexp.MustCompile(`^\s*v?(\d+(?:\.\d+){0,2})`)

// ReleaseVersion parses the leading version of the release string, e.g.
// 4.1.2 from "4.1.2+ (Build: 20230302)".
func (s *SiteInfo) ReleaseVersion() (*semver.Version, error) {
	m := releasePrefix.FindStringSubmatch(s.Release)
	if m == nil {
		return nil, ErrUnknownRelease.Msg("unrecognised release " + strconv.Quote(s.Release))
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, ErrUnknownRelease.Err(err)
	}
	return v, nil
}

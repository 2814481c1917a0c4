package moodle

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansive/moodleauth/pkg/phpquery"
)

func TestPasswordRedaction(t *testing.T) {
	p := PasswordFromString("s3cr3t&=")

	assert.Equal(t, redacted, p.String())
	assert.Equal(t, redacted, fmt.Sprintf("%v", p))
	assert.NotContains(t, fmt.Sprintf("%#v", p), "s3cr3t")

	b, err := json.Marshal(map[string]any{"password": p})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "s3cr3t")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("password", p).Msg("login")
	assert.NotContains(t, buf.String(), "s3cr3t")
	assert.Contains(t, buf.String(), `"set":true`)
}

func TestPasswordEncoding(t *testing.T) {
	p := PasswordFromString("s3cr3t&=")
	assert.Equal(t, "username=alice&password=s3cr3t%26%3D",
		phpquery.Encode(phpquery.New(phpquery.P("username", "alice"), phpquery.P("password", p))))
}

func TestPasswordWipe(t *testing.T) {
	buf := []byte("secret")
	p := NewPassword(buf)
	assert.Equal(t, 6, p.Len())

	p.Wipe()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, make([]byte, 6), buf, "the caller's buffer is zeroed")

	var nilPassword *Password
	nilPassword.Wipe()
	assert.Equal(t, 0, nilPassword.Len())
	assert.Equal(t, "", nilPassword.QueryValue())
}

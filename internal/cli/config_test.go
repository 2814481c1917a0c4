package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigYAML(t *testing.T) {
	t.Setenv("MA_TEST_PASSWORD", "s3cret")
	raw := []byte(`
version: 0.1.0
site: moodle.example.org
username: alice
password: "{{ .ENV.MA_TEST_PASSWORD }}"
retry_delay: 250ms
log_level: debug
`)
	cfg, err := ParseConfig(raw, false)
	require.NoError(t, err)
	assert.Equal(t, "moodle.example.org", cfg.Site)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.GetRetryDelay())
}

func TestParseConfigTOML(t *testing.T) {
	raw := []byte(`
site = "https://school.example.org/moodle"
username = "bob"
service = "local_mobile"
`)
	cfg, err := ParseConfig(raw, true)
	require.NoError(t, err)
	assert.Equal(t, "https://school.example.org/moodle", cfg.Site)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "local_mobile", cfg.Service)
	assert.Zero(t, cfg.GetRetryDelay())
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"missing site", "username: alice", `invalid config: site failed on "required"`},
		{"missing username", "site: moodle.example.org", `invalid config: username failed on "required"`},
		{"bad retry delay", "site: a.example.org\nusername: alice\nretry_delay: soon", `retrydelay failed on "duration"`},
		{"bad log level", "site: a.example.org\nusername: alice\nlog_level: loud", `loglevel failed on "oneof"`},
		{"unsupported scheme", "site: ftp://a.example.org\nusername: alice", `unsupported scheme "ftp"`},
		{"not yaml", "site: [", "unable to parse config file"},
		{"missing placeholder", "site: a.example.org\nusername: '{{ .ENV.MA_TEST_NOPE }}'", "missing environment variable: MA_TEST_NOPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.raw), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteAndLoadConfig(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "nested", name)
			cfg := &Config{
				Version:    configVersion,
				Site:       "moodle.example.org",
				Username:   "alice",
				Service:    "local_mobile",
				RetryDelay: "2s",
			}
			require.NoError(t, cfg.WriteConfig(file))
			require.NoError(t, LoadConfig(file))
			t.Cleanup(func() { config = nil })

			got := GetConfig()
			require.NotNil(t, got)
			assert.Equal(t, *cfg, *got)
		})
	}
}

func TestWriteConfigEmptyPath(t *testing.T) {
	err := (&Config{}).WriteConfig("")
	assert.EqualError(t, err, "file path cannot be empty")
}

func TestRedactedConfig(t *testing.T) {
	cfg := &Config{Site: "a.example.org", Username: "alice", Password: "s3cret"}
	assert.Equal(t, "[REDACTED]", cfg.redacted().Password)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Empty(t, (&Config{}).redacted().Password)
}

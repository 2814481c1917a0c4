package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestExpandPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
		wantErr  string
	}{
		{
			name:     "single variable",
			input:    "password: {{ .ENV.MA_TEST_PASSWORD }}",
			envVars:  map[string]string{"MA_TEST_PASSWORD": "s3cret"},
			expected: "password: s3cret",
		},
		{
			name:     "several variables",
			input:    "site: {{ .ENV.MA_TEST_SITE }}\nusername: {{ .ENV.MA_TEST_USER }}",
			envVars:  map[string]string{"MA_TEST_SITE": "moodle.example.org", "MA_TEST_USER": "alice"},
			expected: "site: moodle.example.org\nusername: alice",
		},
		{
			name:     "special characters and equals signs",
			input:    "password: '{{ .ENV.MA_TEST_PASSWORD }}'",
			envVars:  map[string]string{"MA_TEST_PASSWORD": "p@ss=w0rd!&x"},
			expected: "password: 'p@ss=w0rd!&x'",
		},
		{
			name:     "empty value",
			input:    "password: {{ .ENV.MA_TEST_EMPTY }}",
			envVars:  map[string]string{"MA_TEST_EMPTY": ""},
			expected: "password: ",
		},
		{
			name:     "no placeholders",
			input:    "site: moodle.example.org",
			expected: "site: moodle.example.org",
		},
		{
			name:    "missing variable",
			input:   "password: {{ .ENV.MA_TEST_MISSING }}",
			wantErr: "missing environment variable: MA_TEST_MISSING",
		},
		{
			name:    "invalid template",
			input:   "password: {{ .ENV.MA_TEST_PASSWORD }",
			wantErr: "template error",
		},
	}

	inTempDir(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			result, err := ExpandPlaceholders([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestExpandPlaceholdersWithEnvFile(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile(DotEnvFile, []byte("MA_TEST_SITE=from-file.example.org\nMA_TEST_USER=alice\n"), 0o600))
	t.Setenv("MA_TEST_SITE", "from-env.example.org")

	result, err := ExpandPlaceholders([]byte("site: {{ .ENV.MA_TEST_SITE }}\nusername: {{ .ENV.MA_TEST_USER }}"))
	require.NoError(t, err)
	assert.Equal(t, "site: from-env.example.org\nusername: alice", string(result))

	_, set := os.LookupEnv("MA_TEST_USER")
	assert.False(t, set, ".env values do not leak into the process environment")
}

func TestExpandPlaceholdersEmptyInput(t *testing.T) {
	result, err := ExpandPlaceholders(nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

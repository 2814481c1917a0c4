package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
)

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

type placeholderContext struct {
	ENV map[string]string
}

var missingKeyRegex = regexp.MustCompile(`map has no entry for key "(.*?)"`)

// ExpandPlaceholders replaces {{ .ENV.VAR }} placeholders in raw. Values come
// from the process environment, then from a .env file in the working
// directory. A placeholder without a value is an error.
func ExpandPlaceholders(raw []byte) ([]byte, error) {
	if !bytes.Contains(raw, []byte("{{")) {
		return raw, nil
	}

	env, err := godotenv.Read(DotEnvFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("unable to read %s: %w", DotEnvFile, err)
		}
		env = map[string]string{}
	}
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	tmpl, err := template.New("config").Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("template error: %w", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, placeholderContext{ENV: env}); err != nil {
		if m := missingKeyRegex.FindStringSubmatch(err.Error()); len(m) == 2 {
			return nil, fmt.Errorf("missing environment variable: %s (set it in your shell or %s file)", m[1], DotEnvFile)
		}
		return nil, fmt.Errorf("template error: %w", err)
	}
	return out.Bytes(), nil
}

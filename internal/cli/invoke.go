package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"sigs.k8s.io/yaml"

	"github.com/tansive/moodleauth/pkg/phpquery"
)

func newInvokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke WSFUNCTION [KEY=VALUE ...] [flags]",
		Short: "Call a web-service function",
		Long: `Sign in and call a web-service function with the resulting token.

Parameters are given as KEY=VALUE pairs where KEY is a dotted path, or as a
JSON document with --data. Nested objects and arrays are sent the way PHP
decodes them, so options.ids.0=2 is sent as options[ids][0]=2.

The result is printed as YAML, or as JSON with --json. --select picks a part
of the result with a gjson path.

Examples:
  moodleauth invoke core_webservice_get_site_info --select sitename
  moodleauth invoke core_course_get_courses options.ids.0=2 options.ids.1=3
  moodleauth invoke core_user_get_users --data '{"criteria":[{"key":"email","value":"%@example.org"}]}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInvoke,
	}
	cmd.Flags().String("data", "", "Parameters as a JSON object")
	cmd.Flags().String("select", "", "gjson path selecting part of the result")
	cmd.Flags().Bool("password-stdin", false, "Read the password from standard input")
	return cmd
}

func runInvoke(cmd *cobra.Command, args []string) error {
	data, _ := cmd.Flags().GetString("data")
	selectPath, _ := cmd.Flags().GetString("select")

	params, err := parseParams(data, args[1:])
	if err != nil {
		return err
	}

	session, err := connect(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	raw, err := session.InvokeRaw(commandContext(cmd), args[0], params)
	if err != nil {
		return err
	}
	out, err := renderResult(raw, selectPath, jsonOutput)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(out), "\n"))
	return nil
}

// parseParams builds call parameters from a JSON object and KEY=VALUE
// pairs. Pairs are applied on top of data in order.
func parseParams(data string, pairs []string) (*phpquery.Params, error) {
	doc := []byte("{}")
	if strings.TrimSpace(data) != "" {
		doc = []byte(data)
		if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
			return nil, fmt.Errorf("--data must be a JSON object")
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected KEY=VALUE", pair)
		}
		var err error
		if doc, err = sjson.SetBytes(doc, key, value); err != nil {
			return nil, fmt.Errorf("invalid parameter %q: %w", pair, err)
		}
	}
	params, _ := toParam(gjson.ParseBytes(doc)).(*phpquery.Params)
	if params == nil {
		params = phpquery.New()
	}
	return params, nil
}

// toParam converts a JSON value into encoder input, keeping object key order.
func toParam(r gjson.Result) any {
	switch {
	case r.IsObject():
		p := phpquery.New()
		r.ForEach(func(k, v gjson.Result) bool {
			p.Set(k.String(), toParam(v))
			return true
		})
		return p
	case r.IsArray():
		var list []any
		r.ForEach(func(_, v gjson.Result) bool {
			list = append(list, toParam(v))
			return true
		})
		return list
	}
	switch r.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return r.Raw
	case gjson.Null:
		return nil
	}
	return r.String()
}

// renderResult selects part of raw and formats it as JSON or YAML.
func renderResult(raw []byte, selectPath string, asJSON bool) ([]byte, error) {
	if len(raw) == 0 {
		raw = []byte("null")
	}
	if selectPath != "" {
		r := gjson.GetBytes(raw, selectPath)
		if !r.Exists() {
			return nil, fmt.Errorf("nothing matches %q in the result", selectPath)
		}
		raw = []byte(r.Raw)
	}
	if asJSON {
		out, err := sjson.SetRawBytes([]byte(`{"result":1}`), "value", raw)
		if err != nil {
			return nil, fmt.Errorf("failed to format JSON output: %w", err)
		}
		return []byte(gjson.GetBytes(out, "@pretty").Raw), nil
	}
	out, err := yaml.JSONToYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to YAML: %w", err)
	}
	return out, nil
}

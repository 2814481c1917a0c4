package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tansive/moodleauth/internal/common/logtrace"
	"github.com/tansive/moodleauth/pkg/moodle"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

const configVersion = "0.1.0"

// Config holds the site and account the CLI signs in with. Values may use
// {{ .ENV.VAR }} placeholders, resolved from the environment or a .env file.
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" toml:"version"`
	// Site is the Moodle site, a bare host or a URL
	Site string `yaml:"site" toml:"site" validate:"required"`
	// Username to sign in with
	Username string `yaml:"username" toml:"username" validate:"required"`
	// Password is optional; prefer a placeholder or --password-stdin
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
	// Service is the external service the token is requested for
	Service string `yaml:"service,omitempty" toml:"service,omitempty"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level,omitempty" toml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	// RetryDelay is the pause after a network failure, e.g. 1s
	RetryDelay string `yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty" validate:"omitempty,duration"`
}

var config *Config

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/moodleauth on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "moodleauth", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file. Files ending in .toml are
// read as TOML, everything else as YAML.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	c, err := ParseConfig(raw, isTOML(file))
	if err != nil {
		return err
	}
	config = c
	return nil
}

// ParseConfig resolves placeholders in raw, decodes it and validates the result.
func ParseConfig(raw []byte, asTOML bool) (*Config, error) {
	processed, err := ExpandPlaceholders(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve config placeholders: %w", err)
	}

	var c Config
	if asTOML {
		if _, err := toml.NewDecoder(bytes.NewReader(processed)).Decode(&c); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(processed, &c); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to file, creating its directory.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	var out []byte
	if isTOML(file) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("unable to generate configuration: %w", err)
		}
		out = buf.Bytes()
	} else {
		out, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("unable to generate configuration: %w", err)
		}
	}

	if err := os.WriteFile(file, out, 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}

// ValidateConfig checks required fields and that the site is usable.
func (cfg *Config) ValidateConfig() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed on %q", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := moodle.NormalizeSite(cfg.Site); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := logtrace.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetRetryDelay returns the configured retry delay, or zero when unset.
func (cfg *Config) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(cfg.RetryDelay)
	if err != nil {
		return 0
	}
	return d
}

func isTOML(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".toml")
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Manage the site, username and connection settings used by the other commands.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create or replace the configuration file",
		Long: `Create or replace the configuration file.

The password is not written unless given with --password. Use a placeholder
such as '{{ .ENV.MOODLE_PASSWORD }}' to keep it out of the file.

Example:
  moodleauth config create --site moodle.example.org --username alice`,
		RunE: runConfigCreate,
	}
	createCmd.Flags().String("site", "", "Moodle site, e.g. moodle.example.org")
	createCmd.Flags().String("username", "", "Username to sign in with")
	createCmd.Flags().String("password", "", "Password or {{ .ENV.VAR }} placeholder")
	createCmd.Flags().String("service", "", "External service name (default moodle_mobile_app)")
	createCmd.Flags().String("retry-delay", "", "Pause after a network failure, e.g. 1s")
	createCmd.Flags().String("log-level", "", "Log level stored in the file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadConfig(configFile); err != nil {
				return err
			}
			cfg := GetConfig()
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), cfg.redacted())
				return nil
			}
			cfg.Print(cmd)
			return nil
		},
	}

	configCmd.AddCommand(createCmd, showCmd)
	return configCmd
}

func runConfigCreate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	cfg := &Config{Version: configVersion}
	cfg.Site, _ = flags.GetString("site")
	cfg.Username, _ = flags.GetString("username")
	cfg.Password, _ = flags.GetString("password")
	cfg.Service, _ = flags.GetString("service")
	cfg.RetryDelay, _ = flags.GetString("retry-delay")
	cfg.LogLevel, _ = flags.GetString("log-level")

	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	if err := cfg.WriteConfig(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]any{
			"result":      1,
			"site":        cfg.Site,
			"config_file": configFile,
		})
	} else {
		okLabel.Fprintf(cmd.OutOrStdout(), "✓ Site configured: %s\n", cfg.Site)
		cmd.Printf("Config file: %s\n", configFile)
	}
	return nil
}

func (cfg *Config) redacted() Config {
	c := *cfg
	if c.Password != "" {
		c.Password = "[REDACTED]"
	}
	return c
}

// Print prints the configuration in a human-readable format
func (cfg *Config) Print(cmd *cobra.Command) {
	c := cfg.redacted()
	cmd.Printf("Site: %s\n", c.Site)
	cmd.Printf("Username: %s\n", c.Username)
	if c.Password != "" {
		cmd.Printf("Password: %s\n", c.Password)
	}
	if c.Service != "" {
		cmd.Printf("Service: %s\n", c.Service)
	}
	if c.RetryDelay != "" {
		cmd.Printf("Retry delay: %s\n", c.RetryDelay)
	}
	if c.LogLevel != "" {
		cmd.Printf("Log level: %s\n", c.LogLevel)
	}
}

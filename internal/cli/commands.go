package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/tansive/moodleauth/internal/common/logtrace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Global flags
	jsonOutput bool
	configFile string
	logLevel   string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moodleauth [command] [flags]",
	Short: "moodleauth - authenticate against a Moodle site and call its web services",
	Long: `moodleauth signs in to a Moodle site with a username and password through the
site's web-service token endpoint, and calls web-service functions with the
resulting token.

Examples:
  # Configure the site and user
  moodleauth config create --site moodle.example.org --username alice

  # Check the credentials
  moodleauth login --password-stdin < password.txt

  # Call a web-service function
  moodleauth invoke core_course_get_courses options.ids.0=2`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newInvokeCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// It returns false when the command failed.
func Execute(ctx context.Context) bool {
	return execute(ctx, os.Stdout, os.Stderr, os.Args[1:]) == nil
}

func execute(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil || errors.Is(err, ErrAlreadyHandled) {
		return err
	}
	if jsonOutput {
		printJSON(stdout, map[string]any{"result": 0, "error": err.Error()})
	} else {
		errorLabel.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}

// preRunHandlePersistents sets up logging and loads the configuration
// before any command that needs it.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	needsConfig := true
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" {
			needsConfig = false
			break
		}
	}

	level := logLevel
	if needsConfig {
		if err := LoadConfig(configFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file not found, configure moodleauth with \"moodleauth config create\" first")
			}
			return err
		}
		if level == "" {
			level = GetConfig().LogLevel
		}
	}
	if level == "" {
		level = "warn"
	}
	return logtrace.InitLogger(level, true)
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of moodleauth",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, err := GetDefaultConfigPath()
			if err != nil {
				configPath = "unknown"
			}

			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			} else {
				cmd.Printf("moodleauth %s\n", getCLIVersion())
				cmd.Printf("Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints data as indented JSON
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}

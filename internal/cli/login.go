package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/tansive/moodleauth/pkg/moodle"
)

// PasswordEnv is read when neither --password-stdin nor the config supplies a password.
const PasswordEnv = "MOODLE_PASSWORD"

// Messages shown for failed sign-ins.
const (
	msgInvalidCredentials = "invalid credentials"
	msgTemporaryFailure   = "temporary failure, please try again later"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the configured Moodle site",
		Long: `Sign in to the configured Moodle site and print the resolved account.

The password is taken from, in order:
- standard input, with --password-stdin
- the password field of the config file
- the MOODLE_PASSWORD environment variable

Example:
  moodleauth login --password-stdin < password.txt
  moodleauth login --min-release 4.1`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("password-stdin", false, "Read the password from standard input")
	cmd.Flags().String("min-release", "", "Fail unless the site runs at least this Moodle release")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	session, err := connect(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	minRelease, _ := cmd.Flags().GetString("min-release")
	if err := checkRelease(session.SiteInfo(), minRelease); err != nil {
		return err
	}

	out, err := loginSummary(session)
	if err != nil {
		return err
	}
	if jsonOutput {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	user, site := session.User(), session.SiteInfo()
	okLabel.Fprintln(cmd.OutOrStdout(), "✓ Login successful")
	cmd.Printf("User: %s (%s, id %d)\n", user.DisplayName(site), user.Username, user.ID)
	if user.Email != "" {
		cmd.Printf("Email: %s\n", user.Email)
	}
	cmd.Printf("Site: %s (%s)\n", site.SiteName, session.SiteURL())
	if site.Release != "" {
		cmd.Printf("Release: %s\n", site.Release)
	}
	return nil
}

// loginSummary renders the signed-in account as JSON.
func loginSummary(session *moodle.Session) ([]byte, error) {
	user, site := session.User(), session.SiteInfo()
	out := []byte(`{"result":1}`)
	fields := []struct {
		path  string
		value any
	}{
		{"user.id", user.ID},
		{"user.username", user.Username},
		{"user.firstname", user.GivenName(site)},
		{"user.lastname", user.FamilyName(site)},
		{"user.displayname", user.DisplayName(site)},
		{"user.email", user.Email},
		{"site.name", site.SiteName},
		{"site.url", session.SiteURL().String()},
		{"site.release", site.Release},
	}
	var err error
	for _, f := range fields {
		if out, err = sjson.SetBytes(out, f.path, f.value); err != nil {
			return nil, fmt.Errorf("unable to render login result: %w", err)
		}
	}
	return out, nil
}

func checkRelease(site *moodle.SiteInfo, minRelease string) error {
	if minRelease == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + minRelease)
	if err != nil {
		return fmt.Errorf("invalid --min-release %q: %w", minRelease, err)
	}
	v, err := site.ReleaseVersion()
	if err != nil {
		return fmt.Errorf("unable to determine the site release: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("site runs Moodle %s, %s or later is required", v, minRelease)
	}
	return nil
}

// connect signs in with the loaded configuration. Sign-in failures are
// reported to the user here and returned as ErrAlreadyHandled.
func connect(cmd *cobra.Command) (*moodle.Session, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}

	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	secret, err := readPassword(cmd.InOrStdin(), fromStdin, cfg)
	if err != nil {
		return nil, err
	}
	password := moodle.NewPassword(secret)
	defer password.Wipe()

	opts := []moodle.Option{
		moodle.WithLogger(log.Logger),
		moodle.WithServiceName(cfg.Service),
	}
	if d := cfg.GetRetryDelay(); d > 0 {
		opts = append(opts, moodle.WithRetryDelay(d))
	}

	session, err := moodle.NewService(opts...).Connect(commandContext(cmd), cfg.Site, cfg.Username, password)
	if err != nil {
		log.Debug().Err(err).Msg("sign-in failed")
		reportSignInFailure(cmd, err)
		return nil, ErrAlreadyHandled
	}
	return session, nil
}

func readPassword(stdin io.Reader, fromStdin bool, cfg *Config) ([]byte, error) {
	if fromStdin {
		line, err := bufio.NewReader(stdin).ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("unable to read password: %w", err)
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			return nil, errors.New("no password on standard input")
		}
		return line, nil
	}
	if cfg.Password != "" {
		return []byte(cfg.Password), nil
	}
	if p, ok := os.LookupEnv(PasswordEnv); ok && p != "" {
		return []byte(p), nil
	}
	return nil, fmt.Errorf("no password provided; use --password-stdin, the config file or %s", PasswordEnv)
}

// signInMessage maps a sign-in error to what the user is told.
func signInMessage(err error) string {
	switch {
	case errors.Is(err, moodle.ErrAuthFailed):
		return msgInvalidCredentials
	case errors.Is(err, moodle.ErrInvalidSite):
		return "invalid site: " + err.Error()
	case errors.Is(err, moodle.ErrCanceled):
		return "canceled"
	}
	return msgTemporaryFailure
}

func reportSignInFailure(cmd *cobra.Command, err error) {
	msg := signInMessage(err)
	if jsonOutput {
		out, _ := sjson.SetBytes([]byte(`{"result":0}`), "error", msg)
		if code := statusCode(err); code != 0 {
			out, _ = sjson.SetBytes(out, "status", code)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return
	}
	errorLabel.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", msg)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func statusCode(err error) int {
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return 0
}

// ABOUTME: Root command for the postsctl CLI
// ABOUTME: Handles global flags, configuration and client construction

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/config"
	"github.com/woragis/woragis-posts-frontend/sdk"
)

// Exit codes shared by all commands.
const (
	exitOK       = 0
	exitAuth     = 1 // not signed in, or credentials rejected
	exitFailure  = 2
	signInAdvice = "Run 'postsctl login' to sign in."
)

var (
	postsURL   string
	authURL    string
	jsonOutput bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "postsctl",
	Short: "CLI for the woragis posts and auth services",
	Long: `postsctl signs in to the woragis auth service and manages content on the posts service.

Expired access tokens are refreshed transparently; when the refresh token is
rejected the stored credentials are cleared and you must sign in again.

Environment Variables:
  PUBLIC_POSTS_API_URL  Posts service URL (default: http://localhost:3013)
  PUBLIC_AUTH_API_URL   Auth service URL (default: http://localhost:3010)
  CREDENTIAL_STORE      file, memory, cookie or redis (default: file)
  CREDENTIALS_FILE      Token file for the file store
  REDIS_URL             Redis URL for the redis store
  REQUEST_TIMEOUT       Request timeout in seconds (default: 30)
  API_ALL_PROXY         ssh+socks5://user@host:port?private-key=/path
  LOG_LEVEL, LOG_FORMAT Logging to stderr (default: info, text)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&postsURL, "api-url", "", "Posts API URL (overrides PUBLIC_POSTS_API_URL)")
	rootCmd.PersistentFlags().StringVar(&authURL, "auth-url", "", "Auth API URL (overrides PUBLIC_AUTH_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if postsURL != "" {
		cfg.PostsAPIURL = config.APIBaseURL(postsURL)
	}
	if authURL != "" {
		cfg.AuthAPIURL = config.APIBaseURL(authURL)
	}
	return cfg, nil
}

// newClient builds the library client from configuration.
func newClient(ctx context.Context) (*sdk.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sdk.New(ctx, cfg, sdk.WithLogger(slog.Default()))
}

// withClient runs fn with a fresh client and reports setup failures.
func withClient(ctx context.Context, w io.Writer, fn func(c *sdk.Client) int) int {
	c, err := newClient(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitFailure
	}
	defer c.Close()
	return fn(c)
}

// reportError prints the user-facing message for err and picks the exit code.
func reportError(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %s\n", apierror.Message(err))
	if isAuthError(err) {
		fmt.Fprintln(w, signInAdvice)
		return exitAuth
	}
	return exitFailure
}

func isAuthError(err error) bool {
	return errors.Is(err, apierror.ErrRefreshRejected) ||
		errors.Is(err, apierror.ErrMissingCredential) ||
		errors.Is(err, apierror.ErrAuthRejected)
}

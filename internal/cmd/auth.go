// ABOUTME: Sign-in commands for postsctl: login, register, logout and whoami
// ABOUTME: Prompts for missing credentials on a terminal and reports the stored session

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/woragis/woragis-posts-frontend/auth"
	"github.com/woragis/woragis-posts-frontend/credentials"
	"github.com/woragis/woragis-posts-frontend/internal/tui/prompt"
	"github.com/woragis/woragis-posts-frontend/internal/tui/styles"
	"github.com/woragis/woragis-posts-frontend/sdk"
)

var (
	loginEmail    string
	loginPassword string
	registerInput auth.RegisterRequest
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the auth service",
	Long: `Sign in with email and password. Missing values are prompted for when
stdin is a terminal. The issued tokens are kept in the configured credential store.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		in := auth.LoginRequest{Email: loginEmail, Password: loginPassword}
		if stdinIsTerminal() {
			if err := prompt.Login(&in); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(exitFailure)
			}
		}
		if code := runLogin(ctx, os.Stdout, in); code != exitOK {
			os.Exit(code)
		}
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		in := registerInput
		if stdinIsTerminal() {
			if err := prompt.Register(&in); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(exitFailure)
			}
		}
		if code := runRegister(ctx, os.Stdout, in); code != exitOK {
			os.Exit(code)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear stored credentials",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runLogout(ctx, os.Stdout); code != exitOK {
			os.Exit(code)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and token expiry",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runWhoami(ctx, os.Stdout); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")

	registerCmd.Flags().StringVar(&registerInput.Email, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerInput.Password, "password", "", "Account password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerInput.Username, "username", "", "Username")
	registerCmd.Flags().StringVar(&registerInput.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerInput.LastName, "last-name", "", "Last name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// runLogin signs in and returns the exit code.
func runLogin(ctx context.Context, w io.Writer, in auth.LoginRequest) int {
	if in.Email == "" || in.Password == "" {
		fmt.Fprintln(w, "Error: --email and --password are required when stdin is not a terminal")
		return exitFailure
	}
	return withClient(ctx, w, func(c *sdk.Client) int {
		resp, err := c.Session.Login(ctx, in.Email, in.Password)
		if err != nil {
			return reportError(w, err)
		}
		fmt.Fprintln(w, formatSignedIn(&resp.User, resp.TTL))
		return exitOK
	})
}

// runRegister creates the account and returns the exit code.
func runRegister(ctx context.Context, w io.Writer, in auth.RegisterRequest) int {
	var missing []string
	for _, f := range []struct{ flag, value string }{
		{"--email", in.Email},
		{"--username", in.Username},
		{"--password", in.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.flag)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(w, "Error: %s required when stdin is not a terminal\n", strings.Join(missing, ", "))
		return exitFailure
	}
	return withClient(ctx, w, func(c *sdk.Client) int {
		resp, err := c.Session.Register(ctx, in)
		if err != nil {
			return reportError(w, err)
		}
		fmt.Fprintln(w, formatSignedIn(&resp.User, resp.TTL))
		return exitOK
	})
}

// runLogout always succeeds locally; the remote call is best effort.
func runLogout(ctx context.Context, w io.Writer) int {
	return withClient(ctx, w, func(c *sdk.Client) int {
		if err := c.Session.Logout(ctx); err != nil {
			return reportError(w, err)
		}
		fmt.Fprintln(w, "Signed out.")
		return exitOK
	})
}

// sessionInfo is the session summary printed by whoami and status.
type sessionInfo struct {
	User             *auth.User `json:"user,omitempty"`
	Authenticated    bool       `json:"authenticated"`
	AccessExpiresAt  *time.Time `json:"accessExpiresAt,omitempty"`
	HasRefreshToken  bool       `json:"hasRefreshToken"`
	CredentialStore  string     `json:"credentialStore"`
	SessionErrorText string     `json:"error,omitempty"`
}

// runWhoami restores the session and prints it. Signed out is exit 1.
func runWhoami(ctx context.Context, w io.Writer) int {
	return withClient(ctx, w, func(c *sdk.Client) int {
		info := describeSession(ctx, c)
		if IsJSONOutput() {
			fmt.Fprintln(w, formatWhoamiJSON(info))
		} else {
			fmt.Fprintln(w, formatWhoamiHuman(info))
		}
		if !info.Authenticated {
			return exitAuth
		}
		return exitOK
	})
}

func describeSession(ctx context.Context, c *sdk.Client) sessionInfo {
	state := c.Session.Initialize(ctx)
	info := sessionInfo{
		User:             state.User,
		Authenticated:    state.Authenticated,
		CredentialStore:  c.Config.CredentialStore,
		SessionErrorText: state.Error,
	}
	if token, ok := c.Store.AccessToken(ctx); ok {
		if claims, err := credentials.Inspect(token); err == nil && !claims.ExpiresAt.IsZero() {
			exp := claims.ExpiresAt
			info.AccessExpiresAt = &exp
		}
	}
	_, info.HasRefreshToken = c.Store.RefreshToken(ctx)
	return info
}

func formatSignedIn(u *auth.User, ttl time.Duration) string {
	msg := fmt.Sprintf("Signed in as %s <%s>", u.DisplayName(), u.Email)
	if ttl > 0 {
		msg += fmt.Sprintf(" (access token valid for %s)", ttl.Round(time.Second))
	}
	return msg
}

// formatWhoamiHuman formats the session for human readability
func formatWhoamiHuman(info sessionInfo) string {
	if !info.Authenticated {
		msg := "Not signed in."
		if info.SessionErrorText != "" {
			msg += "\n" + styles.Field("Error", info.SessionErrorText)
		}
		return msg + "\n" + signInAdvice
	}

	lines := []string{
		styles.Field("User", info.User.DisplayName()),
		styles.Field("Email", info.User.Email),
		styles.Field("ID", info.User.ID),
		styles.Field("Store", info.CredentialStore),
	}
	if info.AccessExpiresAt != nil {
		lines = append(lines, styles.Field("Token expires", info.AccessExpiresAt.Local().Format(time.RFC1123)))
	}
	refresh := "no"
	if info.HasRefreshToken {
		refresh = "yes"
	}
	lines = append(lines, styles.Field("Refreshable", refresh))
	return strings.Join(lines, "\n")
}

// formatWhoamiJSON formats the session as JSON
func formatWhoamiJSON(info sessionInfo) string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}

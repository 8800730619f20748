package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verval/verval-cli/api"
	"github.com/verval/verval-cli/tui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	r := &runner{
		flags:      &flagValues{},
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		isTerminal: isTerminal,
	}
	err := newRootCommand(r).ExecuteContext(context.Background())
	if err != nil {
		var shown reported
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if exitCode(err) == 2 {
			fmt.Fprintln(os.Stderr, "Run `verval login` to sign in again.")
		}
	}
	os.Exit(exitCode(err))
}

// isTerminal reports whether w is a character device (interactive terminal).
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func newRootCommand(r *runner) *cobra.Command {
	root := &cobra.Command{
		Use:           "verval",
		Short:         "Terminal client for the verval finance backend",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	r.flags.register(root)

	root.AddCommand(
		newLoginCommand(r),
		newLogoutCommand(r),
		newStatusCommand(r),
		newTokenCommand(r),
		newRefreshCommand(r),
		newDashboardCommand(r),
		newTransactionsCommand(r),
		newRecurringCommand(r),
		newEmployeesCommand(r),
		newUsersCommand(r),
	)
	return root
}

func newLoginCommand(r *runner) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
		remember      bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (default: the remembered one)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or VERVAL_PASSWORD env)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&remember, "remember", false, "Remember the email for the next login")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		if passwordStdin {
			lines, err := readLines(cmd.InOrStdin(), 1)
			if err != nil {
				return err
			}
			password = lines[0]
		}
		password = getConfig(password, "VERVAL_PASSWORD", "")
		return nil
	}
	cmd.RunE = r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
		if email == "" {
			remembered, ok, err := a.auth.RememberedEmail(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.New("no email given and none remembered; pass --email")
			}
			email = remembered
		}

		a.d.LoggingIn(email)
		user, err := a.auth.Login(ctx, email, password, remember)
		if err != nil {
			a.d.LoginFailed(err)
			return nil, err
		}
		a.d.LoginOK(displayName(user))

		return &tui.Result{
			Title: "Logged in",
			Fields: []tui.Field{
				{Label: "User", Value: displayName(user)},
				{Label: "Email", Value: user.Email},
				{Label: "Profile", Value: string(user.Profile())},
			},
		}, nil
	})
	return cmd
}

func newLogoutCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if err := a.auth.Logout(ctx); err != nil {
				return nil, err
			}
			a.d.LoggedOut()
			return nil, nil
		}),
	}
}

func newStatusCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show the stored session",
		Args:    cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			user, err := a.requireSession(ctx)
			if err != nil {
				return nil, err
			}

			fields := []tui.Field{
				{Label: "User", Value: displayName(user)},
				{Label: "Email", Value: user.Email},
				{Label: "User ID", Value: user.ID},
				{Label: "Profile", Value: string(user.Profile())},
				{Label: "Server", Value: a.client.BaseURL()},
				{Label: "Store", Value: a.cfg.store},
				{Label: "Access token", Value: describeToken(a.client.Session().Token(), a.now())},
			}
			if email, ok, _ := a.auth.RememberedEmail(ctx); ok {
				fields = append(fields, tui.Field{Label: "Remembered", Value: email})
			}
			return &tui.Result{Title: "Session", Fields: fields}, nil
		}),
	}
}

// describeToken summarizes what can be read from an access token locally.
func describeToken(token string, now time.Time) string {
	if token == "" {
		return "none"
	}
	claims, ok := api.InspectToken(token)
	if !ok || claims.ExpiresAt.IsZero() {
		return "present (opaque)"
	}
	left := claims.ExpiresAt.Sub(now).Round(time.Second)
	if left <= 0 {
		return fmt.Sprintf("expired at %s", claims.ExpiresAt.Local().Format(time.DateTime))
	}
	return fmt.Sprintf("valid for %s", left)
}

func newTokenCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it first if needed",
		Args:  cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			tok, err := a.client.TokenSource(ctx).Token()
			if err != nil {
				return nil, err
			}
			return &tui.Result{Raw: tok.AccessToken}, nil
		}),
	}
}

func newRefreshCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			if err := a.auth.RefreshSession(ctx); err != nil {
				return nil, err
			}
			return &tui.Result{
				Title:  "Token refreshed",
				Fields: []tui.Field{{Label: "Access token", Value: describeToken(a.client.Session().Token(), a.now())}},
			}, nil
		}),
	}
}

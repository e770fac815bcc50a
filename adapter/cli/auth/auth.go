// Package auth holds the login commands.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tweetsweep/adapter/cli"
	identityOAuth "github.com/felixgeelhaar/tweetsweep/internal/identity/application/oauth"
	sharedCrypto "github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/crypto"
)

// Cmd is the auth command group.
var Cmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with X",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize tweetsweep with OAuth 2.0 and store the token",
	Long: `Starts an OAuth 2.0 authorization code flow with PKCE.

Open the printed URL, approve access, then paste the URL your browser was
redirected to (or only the code parameter). The token is stored encrypted
with TWEETSWEEP_ENCRYPTION_KEY and refreshed automatically.

Requires X_CLIENT_ID (and X_CLIENT_SECRET for confidential clients).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		container := cli.GetContainer()

		service, err := container.AuthService()
		if err != nil {
			return err
		}

		req := service.StartAuth()
		fmt.Fprintln(out, "Open this URL in your browser and authorize tweetsweep:")
		fmt.Fprintf(out, "\n  %s\n\n", req.URL)

		prompter := cli.NewPrompter(cmd.InOrStdin(), out)
		input, err := prompter.Ask(ctx, "Paste the redirect URL (or code): ")
		if err != nil {
			return err
		}
		code, err := identityOAuth.ParseCallback(input, req.State)
		if err != nil {
			return err
		}

		token, err := service.ExchangeAndStore(ctx, req, code)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Token stored in %s\n", container.TokenRepo.Path())
		if !token.Expiry.IsZero() {
			fmt.Fprintf(out, "Access token expires %s\n", token.Expiry.Local().Format(time.RFC1123))
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which credentials a run would use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		container := cli.GetContainer()

		if container.Config.HasEnvToken() {
			fmt.Fprintln(out, "Using tokens from the environment (X_ACCESS_TOKEN / X_REFRESH_TOKEN).")
			return nil
		}
		if !container.HasStoredToken() {
			fmt.Fprintln(out, "Not logged in. Run 'tweetsweep auth login' or set X_ACCESS_TOKEN.")
			return nil
		}

		service, err := container.AuthService()
		if err != nil {
			return err
		}
		status, err := service.Status(cmd.Context())
		if errors.Is(err, identityOAuth.ErrTokenNotFound) {
			fmt.Fprintln(out, "Not logged in. Run 'tweetsweep auth login'.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Token file: %s\n", container.TokenRepo.Path())
		fmt.Fprintf(out, "Saved:      %s\n", status.SavedAt.Local().Format(time.RFC1123))
		switch {
		case status.Expiry.IsZero():
			fmt.Fprintln(out, "Expires:    never")
		case status.Expired:
			fmt.Fprintf(out, "Expired:    %s\n", status.Expiry.Local().Format(time.RFC1123))
		default:
			fmt.Fprintf(out, "Expires:    %s\n", status.Expiry.Local().Format(time.RFC1123))
		}
		fmt.Fprintf(out, "Refresh:    %t\n", status.CanRefresh)
		fmt.Fprintf(out, "Scopes:     %s\n", strings.Join(status.Scopes, " "))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := cli.GetContainer().APIClient(ctx)
		if err != nil {
			return err
		}
		user, err := client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "@%s (id %s)\n", user.Handle, user.ID)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a key for TWEETSWEEP_ENCRYPTION_KEY",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := sharedCrypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "TWEETSWEEP_ENCRYPTION_KEY=%s\n", key)
		return nil
	},
}

func init() {
	Cmd.AddCommand(loginCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(whoamiCmd)
	Cmd.AddCommand(keygenCmd)
}

package cmd

import (
	"errors"
	"time"

	"github.com/meepleboard/meeple/auth"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/spf13/cobra"
)

// authCmd inspects and refreshes the stored session.
func authCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect or refresh the stored session",
	}
	cmd.AddCommand(authStatusCmd(a), authRefreshCmd(a))
	return cmd
}

func authStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.tokens.Status(cmd.Context())
			if err != nil {
				return err
			}
			if !st.LoggedIn {
				cmd.Println("Not logged in.")
				return nil
			}

			expires := "-"
			if !st.ExpiresAt.IsZero() {
				expires = st.ExpiresAt.Local().Format(time.RFC1123)
			}
			table := newTable(cmd.OutOrStdout(), "Field", "Value")
			table.AppendBulk([][]string{
				{"User", orDash(st.UserName)},
				{"User ID", orDash(st.UserID)},
				{"Remember me", yesNo(st.RememberMe)},
				{"Refresh token", yesNo(st.HasRefreshToken)},
				{"Expires", expires},
				{"Expired", yesNo(st.Expired)},
			})
			table.Render()
			return nil
		},
	}
}

func authRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.tokens.RefreshAccessToken(cmd.Context())
			switch {
			case errors.Is(err, auth.ErrNotPersistent):
				return clierr.New(clierr.Auth, "This session is not remembered. Log in again with `meeple login --remember`.", err)
			case err != nil:
				a.expired.Store(true)
				return clierr.New(clierr.Auth, "Token refresh failed; the session was cleared.", err)
			}

			if claims, cerr := auth.DecodeClaims(token); cerr == nil && !claims.ExpiresAt.IsZero() {
				success(cmd, "Access token refreshed, valid until %s.", claims.ExpiresAt.Local().Format(time.RFC1123))
				return nil
			}
			success(cmd, "Access token refreshed.")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user as the server sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := a.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if me.Email != "" {
				cmd.Printf("%s <%s> (%s)\n", me.UserName, me.Email, me.ID)
				return nil
			}
			cmd.Printf("%s (%s)\n", me.UserName, me.ID)
			return nil
		},
	}
}

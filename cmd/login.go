package cmd

import (
	"github.com/meepleboard/meeple/client"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/meepleboard/meeple/pkg/redact"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// loginCmd signs in and stores the session.
func loginCmd(a *app) *cobra.Command {
	var email string
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to MeepleBoard",
		Long:  "Log in with your email and password. With --remember the session is refreshed automatically until you log out.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if email == "" {
				if email, err = p.input("Email: "); err != nil {
					return err
				}
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}

			log.Info().Str("email", redact.Email(email)).Msg("Logging in")
			res, err := a.account.Login(cmd.Context(), email, password, remember)
			if err != nil {
				return err
			}
			if !res.Success {
				return authFailure(res)
			}

			user, err := a.tokens.CurrentUser(cmd.Context())
			if err != nil || user == nil {
				success(cmd, "Login was successful.")
				return nil
			}
			success(cmd, "Logged in as %s.", user.UserName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when omitted)")
	cmd.Flags().BoolVarP(&remember, "remember", "r", false, "Keep the session across restarts")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := a.account.LogoutAllDevices(cmd.Context()); err != nil {
					return err
				}
				success(cmd, "Logged out of all devices.")
				return nil
			}
			if err := a.account.Logout(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Logged out.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Also revoke the sessions of every other device")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a MeepleBoard account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if req.UserName == "" {
				if req.UserName, err = p.input("Username: "); err != nil {
					return err
				}
			}
			if req.Email == "" {
				if req.Email, err = p.input("Email: "); err != nil {
					return err
				}
			}
			if req.Password, err = p.password("Password: "); err != nil {
				return err
			}

			res, err := a.account.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !res.Success {
				return authFailure(res)
			}
			success(cmd, "Account created. Check your inbox to confirm your email.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.UserName, "username", "u", "", "Username (prompted when omitted)")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Email (prompted when omitted)")
	return cmd
}

func confirmEmailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-email [email] [token]",
		Short: "Confirm an email address with the token from the confirmation link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.account.ConfirmEmail(cmd.Context(), args[1], args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				return authFailure(res)
			}
			success(cmd, "Email confirmed. You can now log in.")
			return nil
		},
	}
}

func forgotPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password [email]",
		Short: "Send a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.account.ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				return authFailure(res)
			}
			success(cmd, "If the account exists, a reset link is on its way.")
			return nil
		},
	}
}

func resetPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [email] [token]",
		Short: "Choose a new password with the token from the reset link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			password, err := p.password("New password: ")
			if err != nil {
				return err
			}
			confirm, err := p.password("Repeat new password: ")
			if err != nil {
				return err
			}

			res, err := a.account.ResetPassword(cmd.Context(), client.ResetPasswordRequest{
				Email:           args[0],
				Token:           args[1],
				Password:        password,
				ConfirmPassword: confirm,
			})
			if err != nil {
				return err
			}
			if !res.Success {
				return authFailure(res)
			}
			success(cmd, "Password updated. You can now log in.")
			return nil
		},
	}
}

// authFailure turns a rejected account operation into a CLI error.
func authFailure(res client.AuthResult) error {
	msg := res.Message
	switch res.Code {
	case client.CodeEmailNotConfirmed:
		msg += " Use the link in your inbox, or run `meeple confirm-email`."
	case client.CodeInvalidToken:
		msg += " The link may have expired; request a new one."
	}
	return clierr.New(clierr.Auth, msg, nil)
}

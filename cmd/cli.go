package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"github.com/fatih/color"
	"github.com/meepleboard/meeple/auth"
	"github.com/meepleboard/meeple/client"
	"github.com/meepleboard/meeple/config"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// skipSetup marks commands that run without config, store or API client.
const skipSetup = "meeple/skip-setup"

// Execute runs the CLI and exits with a non-zero code on failure.
func Execute(ctx context.Context) {
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{}
	rootCmd := createRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		log.Error().Err(cerr).Msg("Failed to shut down cleanly")
	}
	if err != nil {
		log.Error().Err(err).Str("kind", string(clierr.TypeOf(cliError(err)))).Msg("Command execution failed.")
		reportError(stderr, err, a.sessionExpired())
		return 1
	}
	return 0
}

func createRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meeple",
		Short:         "A command-line client for MeepleBoard",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			return a.setup(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the config file (default $MEEPLE_HOME/config.yml)")
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	rootCmd.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		registerCmd(a),
		confirmEmailCmd(a),
		forgotPasswordCmd(a),
		resetPasswordCmd(a),
		authCmd(a),
		whoamiCmd(a),
		gamesCmd(a),
		libraryCmd(a),
		sessionsCmd(a),
		matchesCmd(a),
		friendsCmd(a),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// cliError maps an error from the lower layers onto a user-facing one.
func cliError(err error) *clierr.Error {
	var ce *clierr.Error
	if errors.As(err, &ce) {
		return ce
	}

	var apiErr *client.APIError
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.Is(err, client.ErrValidation):
		return clierr.New(clierr.Validation, err.Error(), err)
	case errors.Is(err, auth.ErrNotLoggedIn), client.IsUnauthorized(err):
		return clierr.New(clierr.Auth, "You are not logged in. Run `meeple login` first.", err)
	case client.IsNotFound(err):
		return clierr.New(clierr.NotFound, "Not found.", err)
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return clierr.New(clierr.Internal, msg, err)
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return clierr.New(clierr.Network, "Cannot reach the MeepleBoard API. Check your connection and the api.url setting.", err)
	default:
		return clierr.New(clierr.Internal, err.Error(), err)
	}
}

func reportError(w io.Writer, err error, expired bool) {
	ce := cliError(err)
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprint(w, "Error: ")
	_, _ = fmt.Fprintln(w, ce.Message)
	if expired {
		_, _ = color.New(color.FgYellow).Fprintln(w, "Your session has expired. Run `meeple login` to sign in again.")
	}
}

// configFile resolves the --config flag against the default location.
func (a *app) configFile() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.Path()
}

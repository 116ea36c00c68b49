package cmd

import (
	"strings"

	"github.com/meepleboard/meeple/client"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func libraryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage your game library",
	}
	cmd.AddCommand(libraryListCmd(a), libraryAddCmd(a), libraryUpdateCmd(a), libraryRemoveCmd(a))
	return cmd
}

func libraryListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the games in your library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.currentUserID(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := a.client.Library().List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cmd.Println("Your library is empty. Use `meeple library add` to add games.")
				return nil
			}

			table := newTable(cmd.OutOrStdout(), "Game ID", "Name", "Status", "Price", "Added")
			for _, e := range entries {
				table.Append([]string{e.GameID, strings.ReplaceAll(e.GameName, "\n", " "), e.Status.String(), formatPrice(e.PricePaid), orDash(e.AddedAt)})
			}
			table.Render()
			return nil
		},
	}
}

func libraryAddCmd(a *app) *cobra.Command {
	var status string
	var price float64

	cmd := &cobra.Command{
		Use:   "add [gameId]",
		Short: "Add a game to your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatus(status)
			if err != nil {
				return err
			}
			userID, err := a.currentUserID(cmd.Context())
			if err != nil {
				return err
			}
			game, err := a.client.Games().GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			entry := client.AddLibraryEntry{GameID: game.ID, GameName: game.Name, Status: st, PricePaid: price}
			if err := a.client.Library().Add(cmd.Context(), userID, entry); err != nil {
				return err
			}
			success(cmd, "Added %s to your library as %s.", game.Name, st)
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "owned", "Library status [owned, played, wishlist]")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "Price paid")
	return cmd
}

func libraryUpdateCmd(a *app) *cobra.Command {
	var status string
	var price float64

	cmd := &cobra.Command{
		Use:   "update [gameId]",
		Short: "Change the status or price of a library entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatus(status)
			if err != nil {
				return err
			}
			userID, err := a.currentUserID(cmd.Context())
			if err != nil {
				return err
			}

			upd := client.UpdateLibraryEntry{Status: st}
			if cmd.Flags().Changed("price") {
				upd.PricePaid = &price
			}
			if err := a.client.Library().Update(cmd.Context(), userID, args[0], upd); err != nil {
				return err
			}
			success(cmd, "Library entry updated.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Library status [owned, played, wishlist]")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "Price paid")
	if err := cmd.MarkFlagRequired("status"); err != nil {
		log.Error().Err(err).Msg("Failed to mark 'status' flag as required")
	}
	return cmd
}

func libraryRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [gameId]",
		Short: "Remove a game from your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.currentUserID(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.client.Library().Remove(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			success(cmd, "Removed from your library.")
			return nil
		},
	}
}

func parseStatus(s string) (client.LibraryStatus, error) {
	st, err := client.ParseLibraryStatus(s)
	if err != nil {
		return 0, clierr.New(clierr.Validation, err.Error(), err)
	}
	return st, nil
}

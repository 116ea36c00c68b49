package cmd

import (
	"strings"
	"time"

	"github.com/meepleboard/meeple/client"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func matchesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "matches",
		Aliases: []string{"match"},
		Short:   "Record and review matches",
	}
	cmd.AddCommand(matchRegisterCmd(a), matchLastCmd(a))
	return cmd
}

func matchRegisterCmd(a *app) *cobra.Command {
	var (
		gameID   string
		players  []string
		winner   string
		date     string
		session  string
		mode     string
		location string
		duration int
		solo     bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Record a finished match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := a.client.Games().GetByID(cmd.Context(), gameID)
			if err != nil {
				return err
			}

			if len(players) == 0 {
				me, err := a.currentUserID(cmd.Context())
				if err != nil {
					return err
				}
				players = []string{me}
			}
			form := client.MatchForm{
				GameID:     game.ID,
				GameName:   game.Name,
				SessionID:  session,
				MatchDate:  date,
				WinnerID:   winner,
				IsSoloGame: solo || len(players) == 1,
				Location:   location,
				GameMode:   client.GameMode(strings.ToUpper(mode)),
			}
			if form.MatchDate == "" {
				form.MatchDate = time.Now().Format(time.DateOnly)
			}
			if duration > 0 {
				form.DurationInMinutes = &duration
			}
			for _, id := range players {
				form.Players = append(form.Players, client.MatchPlayer{UserID: id, IsWinner: id == winner})
			}

			if session != "" {
				if err := a.client.Sessions().AddMatch(cmd.Context(), session, form); err != nil {
					return err
				}
				success(cmd, "Match of %s recorded in session %s.", game.Name, session)
				return nil
			}
			m, err := a.client.Matches().Register(cmd.Context(), form)
			if err != nil {
				return err
			}
			if m.WinnerName != "" {
				success(cmd, "Match of %s recorded. Winner: %s.", game.Name, m.WinnerName)
				return nil
			}
			success(cmd, "Match of %s recorded.", game.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&gameID, "game", "g", "", "MeepleBoard id of the game played")
	cmd.Flags().StringSliceVarP(&players, "players", "p", nil, "User ids of the players (defaults to you)")
	cmd.Flags().StringVarP(&winner, "winner", "w", "", "User id of the winner")
	cmd.Flags().StringVarP(&date, "date", "d", "", "Match date, YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVarP(&session, "session", "s", "", "Record the match in this session")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Game mode [solo, cooperative, competitive]")
	cmd.Flags().StringVar(&location, "location", "", "Where the match was played")
	cmd.Flags().IntVar(&duration, "duration", 0, "Duration in minutes")
	cmd.Flags().BoolVar(&solo, "solo", false, "Mark the match as a solo game")
	if err := cmd.MarkFlagRequired("game"); err != nil {
		log.Error().Err(err).Msg("Failed to mark 'game' flag as required")
	}
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if date != "" {
			if _, err := time.Parse(time.DateOnly, date); err != nil {
				return clierr.New(clierr.Validation, "Invalid --date. Use the YYYY-MM-DD format.", err)
			}
		}
		return nil
	}
	return cmd
}

func matchLastCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show your most recent match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			last, err := a.client.Matches().Last(cmd.Context())
			if err != nil {
				return err
			}
			if last == nil {
				cmd.Println("No matches recorded yet.")
				return nil
			}
			cmd.Printf("%s on %s, won by %s\n", last.Name, last.Date, orDash(last.Winner))
			return nil
		},
	}
}

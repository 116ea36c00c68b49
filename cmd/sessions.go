package cmd

import (
	"strconv"

	"github.com/meepleboard/meeple/client"
	"github.com/spf13/cobra"
)

// sessionsCmd manages game nights.
func sessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage game sessions",
	}

	cmd.AddCommand(
		sessionListCmd(a),
		sessionShowCmd(a),
		sessionCreateCmd(a),
		sessionCloseCmd(a),
		sessionAddPlayerCmd(a),
		sessionRemovePlayerCmd(a),
	)

	return cmd
}

func sessionListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.client.Sessions().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("No sessions yet. Use `meeple sessions create` to start one.")
				return nil
			}

			table := newTable(cmd.OutOrStdout(), "ID", "Name", "Organizer", "Players", "Matches", "Active")
			for _, s := range sessions {
				table.Append([]string{s.ID, s.Name, s.Organizer, strconv.Itoa(len(s.Players)), strconv.Itoa(len(s.Matches)), yesNo(s.IsActive)})
			}
			table.Render()
			return nil
		},
	}
}

func sessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a session with its players and matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Sessions().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSession(cmd, s)
			return nil
		},
	}
}

func sessionCreateCmd(a *app) *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Start a session organized by you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.currentUserID(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.client.Sessions().Create(cmd.Context(), client.CreateSessionRequest{
				Name:        args[0],
				OrganizerID: userID,
				Location:    location,
			})
			if err != nil {
				return err
			}
			success(cmd, "Session %q created with id %s.", s.Name, s.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "Where the session takes place")
	return cmd
}

func sessionCloseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close [id]",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Sessions().Close(cmd.Context(), args[0]); err != nil {
				return err
			}
			success(cmd, "Session closed.")
			return nil
		},
	}
}

func sessionAddPlayerCmd(a *app) *cobra.Command {
	var organizer bool

	cmd := &cobra.Command{
		Use:   "add-player [sessionId] [userId]",
		Short: "Add a player to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Sessions().AddPlayer(cmd.Context(), args[0], args[1], organizer); err != nil {
				return err
			}
			success(cmd, "Player added.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&organizer, "organizer", false, "Make the player a co-organizer")
	return cmd
}

func sessionRemovePlayerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-player [sessionId] [userId]",
		Short: "Remove a player from a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Sessions().RemovePlayer(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			success(cmd, "Player removed.")
			return nil
		},
	}
}

func printSession(cmd *cobra.Command, s *client.Session) {
	cmd.Printf("Session: %s (%s)\n", s.Name, s.ID)
	cmd.Printf("Organizer: %s\n", s.Organizer)
	if s.Location != nil {
		cmd.Printf("Location: %s\n", *s.Location)
	}
	cmd.Printf("Started: %s\n", s.StartDate)
	if s.EndDate != nil {
		cmd.Printf("Ended: %s\n", *s.EndDate)
	}
	cmd.Printf("Active: %s\n", yesNo(s.IsActive))

	players := newTable(cmd.OutOrStdout(), "Player", "User ID", "Organizer")
	for _, p := range s.Players {
		players.Append([]string{p.UserName, p.UserID, yesNo(p.IsOrganizer)})
	}
	players.Render()

	if len(s.Matches) == 0 {
		return
	}
	matches := newTable(cmd.OutOrStdout(), "Game", "Date", "Winner")
	for _, m := range s.Matches {
		matches.Append([]string{m.GameName, m.MatchDate, orDash(m.WinnerName)})
	}
	matches.Render()
}
